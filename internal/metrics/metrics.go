// Package metrics exposes Prometheus metrics and a health endpoint for
// the trading engine.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the decision engine.
type Metrics struct {
	CyclesTotal     prometheus.Counter
	CycleDur        prometheus.Histogram
	SymbolsSkipped  *prometheus.CounterVec // labels: reason
	IntentsTotal    *prometheus.CounterVec // labels: rationale
	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	SizingRejects   prometheus.Counter
	BreakEvenMoves  prometheus.Counter
	DecideDur       prometheus.Histogram
	OpenTrades      *prometheus.GaugeVec // labels: symbol
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Total completed polling cycles",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_cycle_duration_seconds",
			Help:    "Full polling cycle latency (all symbols)",
			Buckets: prometheus.DefBuckets,
		}),
		SymbolsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_symbols_skipped_total",
			Help: "Symbols skipped per cycle (by reason)",
		}, []string{"reason"}),
		IntentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_intents_total",
			Help: "Trade intents generated (by rationale)",
		}, []string{"rationale"}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_orders_submitted_total",
			Help: "Orders accepted by the venue",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_orders_rejected_total",
			Help: "Orders rejected by the venue or failed in transit",
		}),
		SizingRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_sizing_rejects_total",
			Help: "Intents dropped by risk sizing or the trade cap",
		}),
		BreakEvenMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bot_breakeven_moves_total",
			Help: "Stops moved to entry by the lifecycle policy",
		}),
		DecideDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_decide_duration_seconds",
			Help:    "Per-symbol annotate+scan+size latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		OpenTrades: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bot_open_trades",
			Help: "Open trades tracked by the lifecycle policy",
		}, []string{"symbol"}),
	}

	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDur,
		m.SymbolsSkipped,
		m.IntentsTotal,
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.SizingRejects,
		m.BreakEvenMoves,
		m.DecideDur,
		m.OpenTrades,
	)

	return m
}

// HealthStatus represents engine health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	VenueConnected bool      `json:"venue_connected"`
	RedisConnected bool      `json:"redis_connected"`
	JournalOK      bool      `json:"journal_ok"`
	LastCycleAt    time.Time `json:"last_cycle_at"`
	Symbols        []string  `json:"symbols"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetVenueConnected(v bool) {
	h.mu.Lock()
	h.VenueConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycleAt(t time.Time) {
	h.mu.Lock()
	h.LastCycleAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSymbols(symbols []string) {
	h.mu.Lock()
	h.Symbols = symbols
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.VenueConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	cycleAge := ""
	if !h.LastCycleAt.IsZero() {
		cycleAge = time.Since(h.LastCycleAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string   `json:"status"`
		Uptime         string   `json:"uptime"`
		VenueConnected bool     `json:"venue_connected"`
		RedisConnected bool     `json:"redis_connected"`
		JournalOK      bool     `json:"journal_ok"`
		LastCycleAt    string   `json:"last_cycle_at"`
		CycleAge       string   `json:"cycle_age"`
		Symbols        []string `json:"symbols"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		VenueConnected: h.VenueConnected,
		RedisConnected: h.RedisConnected,
		JournalOK:      h.JournalOK,
		LastCycleAt:    h.LastCycleAt.Format(time.RFC3339),
		CycleAge:       cycleAge,
		Symbols:        h.Symbols,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
