package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/jeongseonghan/qam-bersim/internal/modem"
	"github.com/jeongseonghan/qam-bersim/internal/sim"
)

// Handlers holds the HTTP API handlers. A single simulation (run or sweep)
// may be active at a time; /api/cancel cancels its context, which the
// Monte Carlo loop polls at each block boundary.
type Handlers struct {
	wsHub *WSHub

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewHandlers creates new API handlers.
func NewHandlers() *Handlers {
	return &Handlers{
		wsHub: NewWSHub(),
	}
}

// HandleWebSocket handles WebSocket upgrade requests.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	h.wsHub.AddClient(conn)

	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

type runRequest struct {
	Modulation string  `json:"modulation"`
	EbNoDb     float64 `json:"ebNoDb"`
	MaxErrors  uint64  `json:"maxErrors"`
	MaxBits    uint64  `json:"maxBits"`
	Seed       uint64  `json:"seed"`
}

type sweepRequest struct {
	Modulation string  `json:"modulation"`
	Start      float64 `json:"start"`
	Stop       float64 `json:"stop"`
	Step       float64 `json:"step"`
	MaxErrors  uint64  `json:"maxErrors"`
	MaxBits    uint64  `json:"maxBits"`
	Seed       uint64  `json:"seed"`
}

// begin reserves the single simulation slot and returns a fresh context.
func (h *Handlers) begin() (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil, fmt.Errorf("a simulation is already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.running = true
	return ctx, nil
}

func (h *Handlers) end() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = nil
	h.running = false
}

// HandleRun starts a single-point BER estimate in the background.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}

	mod, err := modem.ParseModulation(req.Modulation)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := sim.Params{
		EbNoDb:    req.EbNoDb,
		MaxErrors: req.MaxErrors,
		MaxBits:   req.MaxBits,
		Seed:      req.Seed,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, err := h.begin()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	go func() {
		defer h.end()

		runner := sim.Runner{
			Mod: mod,
			Progress: func(res sim.Result) {
				h.wsHub.BroadcastProgress(mod.String(), res)
			},
		}
		res, err := runner.Run(ctx, params)
		if err != nil {
			h.wsHub.BroadcastStatus("error", err.Error())
			return
		}

		h.wsHub.BroadcastResult(mod.String(), res)
	}()

	json.NewEncoder(w).Encode(map[string]string{
		"status": "running",
	})
}

// HandleSweep starts a multi-point Eb/N0 sweep in the background.
func (h *Handlers) HandleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
		return
	}

	mod, err := modem.ParseModulation(req.Modulation)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := sim.SweepPoints(req.Start, req.Stop, req.Step)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := sim.Params{
		MaxErrors: req.MaxErrors,
		MaxBits:   req.MaxBits,
		Seed:      req.Seed,
	}
	if err := params.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, err := h.begin()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	go func() {
		defer h.end()

		runner := sim.Runner{
			Mod: mod,
			Progress: func(res sim.Result) {
				h.wsHub.BroadcastResult(mod.String(), res)
			},
		}
		results, err := runner.Sweep(ctx, points, params)
		if err != nil {
			h.wsHub.BroadcastStatus("error", err.Error())
			return
		}

		h.wsHub.BroadcastStatus("completed",
			fmt.Sprintf("Sweep finished: %d points", len(results)))
	}()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "running",
		"points": len(points),
	})
}

// HandleCancel requests cooperative cancellation of the active simulation.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()

	if cancel == nil {
		http.Error(w, "No simulation running", http.StatusConflict)
		return
	}
	cancel()

	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancelling",
	})
}

// HandleStatus returns whether a simulation is active.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running := h.running
	h.mu.Unlock()

	status := "idle"
	if running {
		status = "running"
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
	})
}
