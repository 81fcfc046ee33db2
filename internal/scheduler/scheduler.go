// Package scheduler drives the polling loop: every interval it walks
// the configured symbols sequentially, pulls a candle window, runs the
// decision engine, dispatches the resulting orders, and applies
// lifecycle maintenance (venue-reported closes, break-even stops).
//
// The loop is single-threaded and cooperative; nothing inside a cycle
// is fatal to the process. RunCycle is exported so tests and the
// backtester can step the loop without timers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"breakout-botv1/internal/engine"
	"breakout-botv1/internal/lifecycle"
	"breakout-botv1/internal/metrics"
	"breakout-botv1/internal/model"
	"breakout-botv1/internal/notification"
)

// Recorder persists dispatched orders and stop moves (the SQLite
// journal in production; nil disables recording).
type Recorder interface {
	RecordOrder(spec model.OrderSpec, res model.OrderResult) error
	RecordStopMove(adj model.StopAdjustment) error
}

// Config holds the loop parameters.
type Config struct {
	Symbols        []string
	Timeframe      string        // venue timeframe code, e.g. "M5"
	BarsPerRefresh int           // candle window size per fetch
	Interval       time.Duration // pause between cycles
}

// Deps are the scheduler's collaborators. Market, Gateway, Engine and
// Policy are required; the rest may be nil.
type Deps struct {
	Market  model.MarketData
	Gateway model.OrderGateway
	Account model.AccountData
	Closes  model.PositionEvents
	Engine  *engine.Engine
	Policy  *lifecycle.Policy

	Recorder Recorder
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus

	// Quote returns a fresher price than the candle close when the live
	// quote stream is connected (symbol → last price).
	Quote func(symbol string) (float64, bool)
}

// Scheduler runs the refresh cycle on a fixed cadence.
type Scheduler struct {
	cfg  Config
	deps Deps
}

// New creates a scheduler.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Market == nil || deps.Gateway == nil || deps.Engine == nil || deps.Policy == nil {
		return nil, errors.New("scheduler: market, gateway, engine and policy are required")
	}
	if cfg.BarsPerRefresh < 2 {
		return nil, fmt.Errorf("scheduler: bars per refresh must be ≥ 2, got %d", cfg.BarsPerRefresh)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Scheduler{cfg: cfg, deps: deps}, nil
}

// Run executes cycles until ctx is cancelled, pausing Interval between
// the end of one cycle and the start of the next.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("[scheduler] starting: %d symbols, tf=%s, bars=%d, interval=%s",
		len(s.cfg.Symbols), s.cfg.Timeframe, s.cfg.BarsPerRefresh, s.cfg.Interval)

	for {
		s.RunCycle(ctx)

		select {
		case <-ctx.Done():
			log.Println("[scheduler] stopped")
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// RunCycle processes every configured symbol once.
func (s *Scheduler) RunCycle(ctx context.Context) {
	start := time.Now()
	for _, symbol := range s.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		s.processSymbol(ctx, symbol)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.CyclesTotal.Inc()
		s.deps.Metrics.CycleDur.Observe(time.Since(start).Seconds())
	}
	if s.deps.Health != nil {
		s.deps.Health.SetLastCycleAt(time.Now())
	}
}

func (s *Scheduler) processSymbol(ctx context.Context, symbol string) {
	// Free trade slots for positions the venue closed since last cycle.
	s.applyCloses(ctx, symbol)

	inst, err := s.deps.Market.InstrumentInfo(ctx, symbol)
	if err != nil {
		s.skip(symbol, "instrument", err)
		return
	}
	if !inst.Tradable {
		s.skip(symbol, "not_tradable", nil)
		return
	}

	candles, err := s.deps.Market.FetchCandles(ctx, symbol, s.cfg.Timeframe, s.cfg.BarsPerRefresh)
	if err != nil || len(candles) == 0 {
		if err == nil {
			err = model.ErrDataUnavailable
		}
		s.skip(symbol, "data", err)
		return
	}

	equity := s.equity(ctx)

	decideStart := time.Now()
	series := model.NewCandleSeries(symbol, candles)
	orders, err := s.deps.Engine.RefreshAndDecide(ctx, inst, series, equity)
	if s.deps.Metrics != nil {
		s.deps.Metrics.DecideDur.Observe(time.Since(decideStart).Seconds())
	}
	if err != nil {
		s.skip(symbol, "decide", err)
		return
	}

	for _, spec := range orders {
		s.dispatch(ctx, spec)
	}

	s.applyBreakEven(ctx, symbol, series.LastClose())

	if s.deps.Metrics != nil {
		s.deps.Metrics.OpenTrades.WithLabelValues(symbol).Set(float64(s.deps.Policy.OpenCount(symbol)))
	}
}

// dispatch submits one order and records the outcome. Venue rejections
// are surfaced and counted but never abort the cycle.
func (s *Scheduler) dispatch(ctx context.Context, spec model.OrderSpec) {
	res, err := s.deps.Gateway.SubmitOrder(ctx, spec)
	if err != nil {
		log.Printf("[scheduler] %s: order submit failed: %v", spec.Symbol, err)
		s.countRejected()
		s.notify(ctx, notification.AlertWarning, spec.Symbol, "Order failed",
			fmt.Sprintf("%s %s %.5f: %v", spec.Direction, spec.Rationale, spec.EntryPrice, err))
		return
	}
	if !res.Accepted {
		log.Printf("[scheduler] %s: order rejected by venue: %s", spec.Symbol, res.Reason)
		s.countRejected()
		s.notify(ctx, notification.AlertWarning, spec.Symbol, "Order rejected", res.Reason)
		return
	}

	s.deps.Policy.Opened(spec, res)
	if s.deps.Metrics != nil {
		s.deps.Metrics.OrdersSubmitted.Inc()
	}
	if s.deps.Recorder != nil {
		if rerr := s.deps.Recorder.RecordOrder(spec, res); rerr != nil {
			log.Printf("[scheduler] journal write failed: %v", rerr)
		}
	}
	log.Printf("[scheduler] %s: %s %s vol=%.2f entry=%.5f sl=%.5f tp=%.5f order=%s",
		spec.Symbol, spec.Direction, spec.Rationale, spec.Volume,
		spec.EntryPrice, spec.StopPrice, spec.TargetPrice, res.OrderID)
	s.notify(ctx, notification.AlertInfo, spec.Symbol, "Order placed",
		fmt.Sprintf("%s %s vol=%.2f entry=%.5f sl=%.5f tp=%.5f",
			spec.Direction, spec.Rationale, spec.Volume, spec.EntryPrice, spec.StopPrice, spec.TargetPrice))
}

// applyBreakEven checks open trades against the latest price and pushes
// any resulting stop moves to the venue. Prefers a streamed quote over
// the candle close when one is available.
func (s *Scheduler) applyBreakEven(ctx context.Context, symbol string, lastClose float64) {
	price := lastClose
	if s.deps.Quote != nil {
		if q, ok := s.deps.Quote(symbol); ok {
			price = q
		}
	}

	for _, adj := range s.deps.Policy.CheckBreakEven(symbol, price) {
		if err := s.deps.Gateway.ModifyStop(ctx, adj); err != nil {
			log.Printf("[scheduler] %s: stop move failed: %v", symbol, err)
			continue
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.BreakEvenMoves.Inc()
		}
		if s.deps.Recorder != nil {
			if rerr := s.deps.Recorder.RecordStopMove(adj); rerr != nil {
				log.Printf("[scheduler] journal write failed: %v", rerr)
			}
		}
		log.Printf("[scheduler] %s: stop moved to entry %.5f (%s)", symbol, adj.NewStop, adj.Reason)
		s.notify(ctx, notification.AlertInfo, symbol, "Break-even",
			fmt.Sprintf("%s stop moved to entry %.5f", adj.Direction, adj.NewStop))
	}
}

func (s *Scheduler) applyCloses(ctx context.Context, symbol string) {
	if s.deps.Closes == nil {
		return
	}
	events, err := s.deps.Closes.ClosedPositions(ctx, symbol)
	if err != nil {
		log.Printf("[scheduler] %s: closed-position poll failed: %v", symbol, err)
		return
	}
	for _, ev := range events {
		if !s.deps.Policy.Closed(ev) {
			log.Printf("[scheduler] %s: untracked position closed (entry %.5f)", symbol, ev.EntryPrice)
		}
	}
}

func (s *Scheduler) equity(ctx context.Context) float64 {
	if s.deps.Account == nil {
		return 0
	}
	eq, err := s.deps.Account.Equity(ctx)
	if err != nil {
		return 0
	}
	return eq
}

func (s *Scheduler) skip(symbol, reason string, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.SymbolsSkipped.WithLabelValues(reason).Inc()
	}
	if err != nil && !errors.Is(err, model.ErrNotTradable) {
		log.Printf("[scheduler] %s: skipped (%s): %v", symbol, reason, err)
	}
}

func (s *Scheduler) countRejected() {
	if s.deps.Metrics != nil {
		s.deps.Metrics.OrdersRejected.Inc()
	}
}

func (s *Scheduler) notify(ctx context.Context, level notification.AlertLevel, symbol, title, msg string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Send(ctx, notification.Alert{
		Level: level, Symbol: symbol, Title: title, Message: msg,
	}); err != nil {
		log.Printf("[scheduler] notify failed: %v", err)
	}
}
