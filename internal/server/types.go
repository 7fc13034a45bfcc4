package server

import (
	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
)

// SubmitOrderRequest is the order-entry payload. Price is a decimal string
// and is required for limit orders only.
type SubmitOrderRequest struct {
	Account    string `json:"account"`
	Instrument string `json:"instrument"`
	Operation  string `json:"operation"` // "buy" or "sell"
	Type       string `json:"type"`      // "market" or "limit"
	Price      string `json:"price,omitempty"`
	Quantity   int64  `json:"quantity"`
	ClientID   int64  `json:"client_id,omitempty"`
}

// AccountsResponse lists the accounts the broker serves.
type AccountsResponse struct {
	Accounts []string `json:"accounts"`
}

// PositionsResponse lists current positions.
type PositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// QuoteResponse is the latest cached tick for one instrument and kind.
type QuoteResponse struct {
	Instrument string          `json:"instrument"`
	Kind       string          `json:"kind"`
	Value      decimal.Decimal `json:"value"`
	Volume     int64           `json:"volume,omitempty"`
	Timestamp  int64           `json:"timestamp"`
	Useconds   uint32          `json:"useconds,omitempty"`
}

// TradesResponse lists journaled trades.
type TradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}
