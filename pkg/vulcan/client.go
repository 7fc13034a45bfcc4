// Package vulcan provides a Go client for the vulcan-server HTTP API.
package vulcan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"
	"vulcan/internal/server"
)

// Client talks to a vulcan-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitMarketOrder submits a market order and returns the resulting order
// snapshot.
func (c *Client) SubmitMarketOrder(ctx context.Context, account, instrument, operation string, quantity int64) (*domain.OrderSnapshot, error) {
	return c.submitOrder(ctx, server.SubmitOrderRequest{
		Account:    account,
		Instrument: instrument,
		Operation:  operation,
		Type:       "market",
		Quantity:   quantity,
	})
}

// SubmitLimitOrder submits a limit order and returns the resulting order
// snapshot.
func (c *Client) SubmitLimitOrder(ctx context.Context, account, instrument, operation string, price decimal.Decimal, quantity int64) (*domain.OrderSnapshot, error) {
	return c.submitOrder(ctx, server.SubmitOrderRequest{
		Account:    account,
		Instrument: instrument,
		Operation:  operation,
		Type:       "limit",
		Price:      price.String(),
		Quantity:   quantity,
	})
}

func (c *Client) submitOrder(ctx context.Context, req server.SubmitOrderRequest) (*domain.OrderSnapshot, error) {
	var snap domain.OrderSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetOrder fetches the order with the given local id.
func (c *Client) GetOrder(ctx context.Context, localID int64) (*domain.OrderSnapshot, error) {
	var snap domain.OrderSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/orders/%d", localID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CancelOrder requests cancellation of the order with the given local id.
func (c *Client) CancelOrder(ctx context.Context, localID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/orders/%d", localID), nil, nil)
}

// GetAccounts lists the accounts the server's broker serves.
func (c *Client) GetAccounts(ctx context.Context) ([]string, error) {
	var resp server.AccountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/accounts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// GetPositions retrieves current positions.
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	var resp server.PositionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetQuote fetches the latest cached tick for the instrument and kind.
func (c *Client) GetQuote(ctx context.Context, instrument, kind string) (*server.QuoteResponse, error) {
	path := "/api/quotes/" + url.PathEscape(instrument) + "?kind=" + url.QueryEscape(kind)
	var resp server.QuoteResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTrades lists journaled trades, optionally filtered by instrument.
func (c *Client) GetTrades(ctx context.Context, instrument string) ([]domain.Trade, error) {
	path := "/api/trades"
	if instrument != "" {
		path += "?instrument=" + url.QueryEscape(instrument)
	}
	var resp server.TradesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// do performs one request, encoding body as JSON when present and decoding
// the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
