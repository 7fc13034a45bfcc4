package domain

import "github.com/shopspring/decimal"

// Trade is the immutable record emitted on every fill.
type Trade struct {
	OrderID    int64           `json:"order_id"` // client-assigned id of the filled order
	Account    string          `json:"account"`
	Instrument string          `json:"instrument"`
	Operation  Operation       `json:"operation"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	Volume     decimal.Decimal `json:"volume"` // price * quantity
	Currency   string          `json:"currency"`
	Timestamp  int64           `json:"timestamp"` // Unix seconds
	Useconds   uint32          `json:"useconds"`
	SignalID   int64           `json:"signal_id,omitempty"`
}

// Position is the running signed quantity held in one instrument. It is
// derived from executed trades, never persisted independently.
type Position struct {
	Instrument string `json:"instrument"`
	Quantity   int64  `json:"quantity"`
}
