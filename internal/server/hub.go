package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"vulcan/internal/broker"
	"vulcan/internal/domain"
)

// Compile-time interface check.
var _ broker.Reactor = (*Hub)(nil)

// wsMessage is the envelope for every WebSocket frame the hub sends.
type wsMessage struct {
	Type      string               `json:"type"` // "snapshot", "order", or "trade"
	Order     *domain.OrderSnapshot `json:"order,omitempty"`
	Trade     *domain.Trade         `json:"trade,omitempty"`
	Accounts  []string              `json:"accounts,omitempty"`
	Positions []domain.Position     `json:"positions,omitempty"`
}

// wsClient is a single WebSocket connection managed by the Hub.
type wsClient struct {
	id   string
	send chan []byte
}

// Hub manages WebSocket clients and broadcasts order and trade events to all
// of them. New clients receive a snapshot of accounts and positions before
// any event frames, so their view starts consistent. The hub is registered
// as a broker reactor; callbacks only enqueue, the event loop does the rest.
type Hub struct {
	snapshot func() wsMessage

	clients    map[string]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	log *slog.Logger
}

// clientQueueDepth bounds each client's send queue. A client that cannot
// keep up is disconnected rather than slowing the hub.
const clientQueueDepth = 256

// NewHub creates a Hub using snapshot to build the initial frame for each
// new client.
func NewHub(snapshot func() wsMessage, log *slog.Logger) *Hub {
	return &Hub{
		snapshot:   snapshot,
		clients:    make(map[string]*wsClient),
		broadcast:  make(chan []byte, clientQueueDepth),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		log:        log.With("component", "hub"),
	}
}

// Run executes the hub's event loop until ctx is cancelled. It should be
// launched as a goroutine before the server accepts connections.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, client := range h.clients {
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client.id] = client
			h.log.Info("client connected", "id", client.id, "clients", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
				h.log.Info("client disconnected", "id", client.id, "clients", len(h.clients))
			}
		case message := <-h.broadcast:
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, id)
					close(client.send)
					h.log.Warn("client too slow, dropping", "id", id)
				}
			}
		}
	}
}

// OrderCallback implements the broker reactor protocol and broadcasts the
// order's state.
func (h *Hub) OrderCallback(order *domain.Order) {
	snap := order.Snapshot()
	h.enqueue(wsMessage{Type: "order", Order: &snap})
}

// TradeCallback implements the broker reactor protocol and broadcasts the
// trade.
func (h *Hub) TradeCallback(trade domain.Trade) {
	h.enqueue(wsMessage{Type: "trade", Trade: &trade})
}

// enqueue marshals and queues one message without blocking the caller.
func (h *Hub) enqueue(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshaling event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast queue full, dropping event", "type", msg.Type)
	}
}

// handleWebSocket upgrades the connection, sends the snapshot frame, and
// streams events until the client goes away.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-host dashboards connect from any origin
	})
	if err != nil {
		h.log.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	client := &wsClient{
		id:   uuid.NewString(),
		send: make(chan []byte, clientQueueDepth),
	}

	snapshot, err := json.Marshal(h.snapshot())
	if err != nil {
		h.log.Error("marshaling snapshot", "error", err)
		return
	}

	ctx := r.Context()
	if err := writeFrame(ctx, conn, snapshot); err != nil {
		return
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-client.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := writeFrame(ctx, conn, data); err != nil {
				return
			}
		}
	}
}

// writeFrame sends one text frame with a write deadline.
func writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
