package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/qam-bersim/internal/sim"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ResultPayload is the JSON view of a simulation result or a running
// snapshot. BER is omitted while it is undefined (zero bits simulated).
type ResultPayload struct {
	Modulation string   `json:"modulation"`
	EbNoDb     float64  `json:"ebNoDb"`
	Bits       uint64   `json:"bits"`
	BitErrors  uint64   `json:"bitErrors"`
	BER        *float64 `json:"ber,omitempty"`
	CILow      float64  `json:"ciLow"`
	CIHigh     float64  `json:"ciHigh"`
	Reason     string   `json:"reason,omitempty"`
}

func resultPayload(mod string, res sim.Result, done bool) ResultPayload {
	p := ResultPayload{
		Modulation: mod,
		EbNoDb:     res.EbNoDb,
		Bits:       res.Bits,
		BitErrors:  res.BitErrors,
		CILow:      res.CILow,
		CIHigh:     res.CIHigh,
	}
	if res.Bits > 0 {
		ber := res.BER
		p.BER = &ber
	}
	if done {
		p.Reason = res.Reason.String()
	}
	return p
}

// WSHub manages WebSocket connections.
type WSHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	log.Printf("WebSocket client connected (%d total)", len(h.clients))
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
	log.Printf("WebSocket client disconnected (%d remaining)", len(h.clients))
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients {
		err := conn.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			log.Printf("WebSocket write error: %v", err)
			go h.RemoveClient(conn)
		}
	}
}

// BroadcastProgress sends a running snapshot to all clients.
func (h *WSHub) BroadcastProgress(mod string, res sim.Result) {
	h.Broadcast(WSMessage{
		Type:    "progress",
		Payload: resultPayload(mod, res, false),
	})
}

// BroadcastResult sends a final result to all clients.
func (h *WSHub) BroadcastResult(mod string, res sim.Result) {
	h.Broadcast(WSMessage{
		Type:    "result",
		Payload: resultPayload(mod, res, true),
	})
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(status, message string) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: map[string]string{
			"status":  status,
			"message": message,
		},
	})
}
