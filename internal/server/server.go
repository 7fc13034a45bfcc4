// Package server exposes the trading core over HTTP: order entry and lookup,
// accounts, positions, quotes, the trade journal, and a WebSocket stream of
// order and trade events.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"vulcan/internal/broker"
	"vulcan/internal/domain"
	"vulcan/internal/journal"
	"vulcan/internal/quote"
)

// Server serves the trading HTTP API. The journal is optional; without it the
// trade history endpoint reports 404.
type Server struct {
	broker  broker.Broker
	table   *quote.Cache
	journal *journal.Journal
	hub     *Hub
	log     *slog.Logger
}

// NewServer wires the API against the given broker and quote cache. The
// returned server's Hub must be started with Hub().Run before serving.
func NewServer(b broker.Broker, table *quote.Cache, j *journal.Journal, log *slog.Logger) *Server {
	s := &Server{
		broker:  b,
		table:   table,
		journal: j,
		log:     log.With("component", "server"),
	}
	s.hub = NewHub(s.snapshotMessage, log)
	b.RegisterReactor(s.hub)
	return s
}

// Hub returns the WebSocket hub for lifecycle management.
func (s *Server) Hub() *Hub {
	return s.hub
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", s.handleSubmitOrder)
	mux.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/quotes/{instrument}", s.handleQuote)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /ws", s.hub.handleWebSocket)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// snapshotMessage builds the initial frame for new WebSocket clients.
func (s *Server) snapshotMessage() wsMessage {
	return wsMessage{
		Type:      "snapshot",
		Accounts:  s.broker.Accounts(),
		Positions: s.broker.Positions(),
	}
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	op := domain.ParseOperation(req.Operation)
	if op == domain.OperationUnknown {
		writeError(w, http.StatusBadRequest, "operation must be buy or sell")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	var order *domain.Order
	switch domain.ParseOrderType(req.Type) {
	case domain.OrderTypeMarket:
		order = domain.NewMarketOrder(req.Account, req.Instrument, op, req.Quantity)
	case domain.OrderTypeLimit:
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit price: "+req.Price)
			return
		}
		order = domain.NewLimitOrder(req.Account, req.Instrument, op, price, req.Quantity)
	default:
		writeError(w, http.StatusBadRequest, "type must be market or limit")
		return
	}
	order.ClientID = req.ClientID

	s.broker.SubmitOrder(order)
	writeJSON(w, order.Snapshot())
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	localID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, ok := s.broker.Order(localID)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, order.Snapshot())
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	localID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	order, ok := s.broker.Order(localID)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	s.broker.CancelOrder(order)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, AccountsResponse{Accounts: s.broker.Accounts()})
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions := s.broker.Positions()
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, PositionsResponse{Positions: positions})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	instrument := r.PathValue("instrument")
	kind := domain.ParseDataKind(r.URL.Query().Get("kind"))
	if kind == domain.KindUnknown {
		writeError(w, http.StatusBadRequest, "unknown kind; use price, best_bid, best_offer, ...")
		return
	}
	tick := s.table.LastQuote(instrument, kind)
	if tick.IsZero() {
		writeError(w, http.StatusNotFound, "no quote")
		return
	}
	writeJSON(w, QuoteResponse{
		Instrument: instrument,
		Kind:       tick.Kind.String(),
		Value:      tick.Value,
		Volume:     tick.Volume,
		Timestamp:  tick.Timestamp,
		Useconds:   tick.Useconds,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "trade journal not enabled")
		return
	}
	trades, err := s.journal.Trades(r.Context(), r.URL.Query().Get("instrument"))
	if err != nil {
		s.log.Error("reading trades", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, TradesResponse{Trades: trades})
}
