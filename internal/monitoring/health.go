package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// HealthChecker tracks run progress and serves it as JSON. It is also a Sink,
// so it can be fanned in next to a Recorder.
type HealthChecker struct {
	mu            sync.RWMutex
	startedAt     time.Time
	lastTrade     time.Time
	lastPrice     float64
	trades        int
	openPositions int
	value         float64
	finished      bool
	faults        []string
}

type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastTrade     time.Time `json:"last_trade"`
	LastPrice     float64   `json:"last_price"`
	Trades        int       `json:"trades"`
	OpenPositions int       `json:"open_positions"`
	Value         float64   `json:"portfolio_value"`
	Uptime        string    `json:"uptime"`
	Faults        []string  `json:"faults,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startedAt: time.Now()}
}

// Finish marks the run as completed.
func (h *HealthChecker) Finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = true
}

func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "running"
	if h.finished {
		status = "completed"
	}
	if len(h.faults) > 0 {
		status = "degraded"
	}
	faults := make([]string, len(h.faults))
	copy(faults, h.faults)

	return HealthStatus{
		Status:        status,
		Timestamp:     time.Now(),
		LastTrade:     h.lastTrade,
		LastPrice:     h.lastPrice,
		Trades:        h.trades,
		OpenPositions: h.openPositions,
		Value:         h.value,
		Uptime:        time.Since(h.startedAt).String(),
		Faults:        faults,
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status()
	w.Header().Set("Content-Type", "application/json")
	if health.Status == "degraded" {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}

func (h *HealthChecker) TradeExecuted(_ string, _ types.Action, price, _ float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades++
	h.lastPrice = price
	h.lastTrade = time.Now()
}

func (h *HealthChecker) OperationRejected(string, boterrors.ErrorKind) {}

func (h *HealthChecker) InternalFault(operation string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults = append(h.faults, operation)
}

func (h *HealthChecker) EquityUpdated(value, _ float64, openPositions int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = value
	h.openPositions = openPositions
}

func (h *HealthChecker) SignalProcessed(string, bool) {}
