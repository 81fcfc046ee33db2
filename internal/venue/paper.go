// Package venue contains broker-facing adapters: the paper venue used
// for dry runs, the SQLite trade journal, and the SQLite candle store
// used by the backtester.
package venue

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"breakout-botv1/internal/model"
)

// PaperConfig configures the simulated venue.
type PaperConfig struct {
	Symbols        []string
	StartEquity    float64
	Seed           int64
	SlippagePoints float64 // added against the trade on every fill
}

type paperPosition struct {
	orderID  string
	spec     model.OrderSpec
	stop     float64
	openedAt time.Time
}

// PaperVenue simulates a broker without real calls. It serves synthetic
// random-walk candles, fills every valid order, and closes positions
// when the walk crosses their stop or target. Deterministic for a given
// seed. Implements MarketData, OrderGateway, AccountData and
// PositionEvents.
type PaperVenue struct {
	mu          sync.Mutex
	rng         *rand.Rand
	instruments map[string]model.Instrument
	history     map[string][]model.Candle
	positions   map[string][]*paperPosition
	closed      map[string][]model.ClosedPosition
	equity      float64
	orderSeq    int64
	slippagePts float64
}

// NewPaperVenue creates a paper venue seeded with synthetic instrument
// metadata for the configured symbols.
func NewPaperVenue(cfg PaperConfig) *PaperVenue {
	if cfg.StartEquity <= 0 {
		cfg.StartEquity = 10000
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	p := &PaperVenue{
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		instruments: make(map[string]model.Instrument),
		history:     make(map[string][]model.Candle),
		positions:   make(map[string][]*paperPosition),
		closed:      make(map[string][]model.ClosedPosition),
		equity:      cfg.StartEquity,
		slippagePts: cfg.SlippagePoints,
	}
	for _, s := range cfg.Symbols {
		p.instruments[s] = syntheticInstrument(s)
	}
	return p
}

// syntheticInstrument fabricates venue metadata matching the symbol's
// asset class. Prices and contract terms mimic a retail FX/CFD broker.
func syntheticInstrument(symbol string) model.Instrument {
	inst := model.Instrument{
		Symbol:          symbol,
		Description:     "paper " + symbol,
		Tradable:        true,
		Point:           0.01,
		TradeStopsLevel: 10,
		ValuePerPoint:   1.0,
		VolumeMin:       0.01,
		VolumeMax:       100,
		VolumeStep:      0.01,
	}
	switch {
	case strings.Contains(symbol, "JPY"):
		inst.Point = 0.001
		inst.ValuePerPoint = 0.01
	case strings.Contains(symbol, "USD") && !strings.Contains(symbol, "OIL"):
		inst.Point = 0.00001
		inst.ValuePerPoint = 0.1
	}
	return inst
}

// basePrice picks a plausible starting level for the random walk.
func basePrice(symbol string) float64 {
	switch {
	case strings.Contains(symbol, "JPY"):
		return 145.0
	case strings.Contains(symbol, "OIL"):
		return 78.0
	case strings.Contains(symbol, "USD"):
		return 1.1
	default:
		return 100.0
	}
}

// InstrumentInfo returns the synthetic metadata for symbol.
func (p *PaperVenue) InstrumentInfo(_ context.Context, symbol string) (model.Instrument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instruments[symbol]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s", model.ErrInstrumentUnavailable, symbol)
	}
	return inst, nil
}

// FetchCandles advances the random walk by one bar and returns the most
// recent count candles for symbol.
func (p *PaperVenue) FetchCandles(_ context.Context, symbol, timeframe string, count int) ([]model.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.instruments[symbol]; !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrInstrumentUnavailable, symbol)
	}

	step := timeframeDuration(timeframe)
	hist := p.history[symbol]
	for len(hist) < count+1 {
		hist = append(hist, p.nextCandle(symbol, hist, step))
	}
	// One fresh bar per poll so consecutive cycles see new data.
	hist = append(hist, p.nextCandle(symbol, hist, step))
	p.history[symbol] = hist

	p.settlePositions(symbol, hist[len(hist)-1])

	out := make([]model.Candle, count)
	copy(out, hist[len(hist)-count:])
	return out, nil
}

// nextCandle extends the walk with one synthetic bar.
func (p *PaperVenue) nextCandle(symbol string, hist []model.Candle, step time.Duration) model.Candle {
	var open float64
	var ts time.Time
	if len(hist) == 0 {
		open = basePrice(symbol)
		ts = time.Now().UTC().Add(-500 * step).Truncate(step)
	} else {
		last := hist[len(hist)-1]
		open = last.Close
		ts = last.TS.Add(step)
	}

	drift := open * p.rng.NormFloat64() * 0.0008
	close := open + drift
	wiggle := math.Abs(open * p.rng.NormFloat64() * 0.0004)
	high := math.Max(open, close) + wiggle
	low := math.Min(open, close) - wiggle

	return model.Candle{
		Symbol: symbol,
		TS:     ts,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 50 + p.rng.Int63n(200),
	}
}

// SubmitOrder fills every order whose volume respects the instrument's
// limits, with simulated slippage against the trade.
func (p *PaperVenue) SubmitOrder(_ context.Context, spec model.OrderSpec) (model.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instruments[spec.Symbol]
	if !ok {
		return model.OrderResult{}, fmt.Errorf("%w: %s", model.ErrInstrumentUnavailable, spec.Symbol)
	}
	if spec.Volume < inst.VolumeMin || (inst.VolumeMax > 0 && spec.Volume > inst.VolumeMax) {
		return model.OrderResult{Accepted: false, Reason: fmt.Sprintf("invalid volume %.2f", spec.Volume)}, nil
	}

	fill := spec.EntryPrice
	if p.slippagePts > 0 {
		slip := p.slippagePts * inst.Point
		if spec.Direction == model.Long {
			fill += slip
		} else {
			fill -= slip
		}
	}

	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	filled := spec
	filled.EntryPrice = fill
	p.positions[spec.Symbol] = append(p.positions[spec.Symbol], &paperPosition{
		orderID:  orderID,
		spec:     filled,
		stop:     filled.StopPrice,
		openedAt: time.Now().UTC(),
	})

	log.Printf("[paper] %s %s vol=%.2f fill=%.5f sl=%.5f tp=%.5f order=%s reason=%s",
		spec.Symbol, spec.Direction, spec.Volume, fill, spec.StopPrice, spec.TargetPrice, orderID, spec.Rationale)

	return model.OrderResult{Accepted: true, OrderID: orderID, FillPrice: fill}, nil
}

// ModifyStop updates the protective stop of the tracked position with
// the adjustment's order ID; without one it falls back to matching
// symbol, direction and entry price.
func (p *PaperVenue) ModifyStop(_ context.Context, adj model.StopAdjustment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range p.positions[adj.Symbol] {
		if adj.OrderID != "" {
			if pos.orderID == adj.OrderID {
				pos.stop = adj.NewStop
				return nil
			}
			continue
		}
		if pos.spec.Direction == adj.Direction && pos.spec.EntryPrice == adj.EntryPrice {
			pos.stop = adj.NewStop
			return nil
		}
	}
	return fmt.Errorf("paper: no open position %s %s order=%s @ %.5f", adj.Symbol, adj.Direction, adj.OrderID, adj.EntryPrice)
}

// settlePositions closes positions whose stop or target the bar crossed
// and books the realized result into equity. Stop wins when a bar spans
// both levels.
func (p *PaperVenue) settlePositions(symbol string, bar model.Candle) {
	open := p.positions[symbol][:0]
	for _, pos := range p.positions[symbol] {
		exit, hit := exitLevel(pos, bar)
		if !hit {
			open = append(open, pos)
			continue
		}
		inst := p.instruments[symbol]
		points := (exit - pos.spec.EntryPrice) / inst.Point
		if pos.spec.Direction == model.Short {
			points = -points
		}
		p.equity += points * inst.ValuePerPoint * pos.spec.Volume
		p.closed[symbol] = append(p.closed[symbol], model.ClosedPosition{
			OrderID:    pos.orderID,
			Symbol:     symbol,
			Direction:  pos.spec.Direction,
			EntryPrice: pos.spec.EntryPrice,
			ExitPrice:  exit,
			ClosedAt:   bar.TS,
		})
		log.Printf("[paper] %s closed %s @ %.5f (entry %.5f, %.1f pts)",
			symbol, pos.spec.Direction, exit, pos.spec.EntryPrice, points)
	}
	p.positions[symbol] = open
}

func exitLevel(pos *paperPosition, bar model.Candle) (float64, bool) {
	if pos.spec.Direction == model.Long {
		if bar.Low <= pos.stop {
			return pos.stop, true
		}
		if bar.High >= pos.spec.TargetPrice {
			return pos.spec.TargetPrice, true
		}
		return 0, false
	}
	if bar.High >= pos.stop {
		return pos.stop, true
	}
	if bar.Low <= pos.spec.TargetPrice {
		return pos.spec.TargetPrice, true
	}
	return 0, false
}

// ClosedPositions drains the close events accumulated since the last
// call for symbol.
func (p *PaperVenue) ClosedPositions(_ context.Context, symbol string) ([]model.ClosedPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := p.closed[symbol]
	p.closed[symbol] = nil
	return events, nil
}

// Equity returns current simulated account equity.
func (p *PaperVenue) Equity(_ context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

// timeframeDuration maps an MT-style timeframe code to a bar duration.
func timeframeDuration(tf string) time.Duration {
	switch strings.ToUpper(tf) {
	case "M1":
		return time.Minute
	case "M5", "":
		return 5 * time.Minute
	case "M15":
		return 15 * time.Minute
	case "M30":
		return 30 * time.Minute
	case "H1":
		return time.Hour
	case "H4":
		return 4 * time.Hour
	case "D1":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
