// Package journal persists order state transitions and trades to SQLite as an
// append-only event log. It plugs into a broker as a reactor, so everything
// the broker reports is on disk before the triggering call returns.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"vulcan/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS order_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	local_id    INTEGER NOT NULL,
	client_id   INTEGER NOT NULL,
	account     TEXT    NOT NULL,
	instrument  TEXT    NOT NULL,
	operation   TEXT    NOT NULL,
	type        TEXT    NOT NULL,
	price       TEXT    NOT NULL,
	quantity    INTEGER NOT NULL,
	state       TEXT    NOT NULL,
	executed    INTEGER NOT NULL,
	message     TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_order_events_local_id ON order_events(local_id);

CREATE TABLE IF NOT EXISTS trades (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id    INTEGER NOT NULL,
	account     TEXT    NOT NULL,
	instrument  TEXT    NOT NULL,
	operation   TEXT    NOT NULL,
	price       TEXT    NOT NULL,
	quantity    INTEGER NOT NULL,
	volume      TEXT    NOT NULL,
	currency    TEXT    NOT NULL,
	timestamp   INTEGER NOT NULL,
	useconds    INTEGER NOT NULL,
	signal_id   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument);
`

// Journal records every order transition and fill it observes. Reads and
// writes go through database/sql, which serializes access itself; the journal
// adds no locking of its own.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

// NewJournal opens (or creates) a SQLite database at dbPath and ensures the
// event tables exist.
func NewJournal(dbPath string, log *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db, log: log.With("component", "journal")}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// OrderCallback appends the order's current state as one event row. Failures
// are logged, not surfaced; a broker callback has no error channel.
func (j *Journal) OrderCallback(order *domain.Order) {
	snap := order.Snapshot()
	_, err := j.db.Exec(
		`INSERT INTO order_events
			(local_id, client_id, account, instrument, operation, type, price, quantity, state, executed, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.LocalID, snap.ClientID, snap.Account, snap.Instrument,
		snap.Operation, snap.Type, snap.Price.String(), snap.Quantity,
		snap.State, snap.ExecutedQuantity, snap.Message,
	)
	if err != nil {
		j.log.Error("writing order event", "localID", snap.LocalID, "error", err)
	}
}

// TradeCallback appends one trade row.
func (j *Journal) TradeCallback(trade domain.Trade) {
	_, err := j.db.Exec(
		`INSERT INTO trades
			(order_id, account, instrument, operation, price, quantity, volume, currency, timestamp, useconds, signal_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.OrderID, trade.Account, trade.Instrument, trade.Operation.String(),
		trade.Price.String(), trade.Quantity, trade.Volume.String(),
		trade.Currency, trade.Timestamp, trade.Useconds, trade.SignalID,
	)
	if err != nil {
		j.log.Error("writing trade", "orderID", trade.OrderID, "error", err)
	}
}

// OrderEvents returns every recorded state of the order with the given local
// id, oldest first.
func (j *Journal) OrderEvents(ctx context.Context, localID int64) ([]domain.OrderSnapshot, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT local_id, client_id, account, instrument, operation, type, price, quantity, state, executed, message
		 FROM order_events WHERE local_id = ? ORDER BY seq`, localID)
	if err != nil {
		return nil, fmt.Errorf("querying order events: %w", err)
	}
	defer rows.Close()

	var events []domain.OrderSnapshot
	for rows.Next() {
		var snap domain.OrderSnapshot
		var price string
		if err := rows.Scan(&snap.LocalID, &snap.ClientID, &snap.Account,
			&snap.Instrument, &snap.Operation, &snap.Type, &price,
			&snap.Quantity, &snap.State, &snap.ExecutedQuantity, &snap.Message); err != nil {
			return nil, fmt.Errorf("scanning order event: %w", err)
		}
		snap.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parsing order price %q: %w", price, err)
		}
		events = append(events, snap)
	}
	return events, rows.Err()
}

// Trades returns all recorded trades for the instrument, oldest first. An
// empty instrument returns everything.
func (j *Journal) Trades(ctx context.Context, instrument string) ([]domain.Trade, error) {
	query := `SELECT order_id, account, instrument, operation, price, quantity, volume, currency, timestamp, useconds, signal_id
		 FROM trades`
	args := []any{}
	if instrument != "" {
		query += ` WHERE instrument = ?`
		args = append(args, instrument)
	}
	query += ` ORDER BY seq`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var trade domain.Trade
		var operation, price, volume string
		if err := rows.Scan(&trade.OrderID, &trade.Account, &trade.Instrument,
			&operation, &price, &trade.Quantity, &volume, &trade.Currency,
			&trade.Timestamp, &trade.Useconds, &trade.SignalID); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trade.Operation = domain.ParseOperation(operation)
		if trade.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parsing trade price %q: %w", price, err)
		}
		if trade.Volume, err = decimal.NewFromString(volume); err != nil {
			return nil, fmt.Errorf("parsing trade volume %q: %w", volume, err)
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}
