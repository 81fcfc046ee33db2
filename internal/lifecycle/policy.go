// Package lifecycle tracks the trades this engine has opened, caps the
// open count per instrument, and manages break-even stop movement.
//
// The policy is the only engine state that survives a refresh cycle. It
// is driven entirely by the single scheduling goroutine: inserts on
// order dispatch, removals on venue-reported closes, and a break-even
// check once per cycle with the latest close; so it needs no locking.
package lifecycle

import (
	"math"

	"breakout-botv1/internal/model"
)

// OpenTrade is one live position opened by this engine, keyed by the
// venue order ID. EntryPrice is the actual fill when the venue reported
// one, so it can differ from the dispatched spec under slippage.
type OpenTrade struct {
	OrderID          string
	Symbol           string
	Direction        model.Direction
	EntryPrice       float64
	InitialStop      float64
	BreakevenApplied bool
}

// Policy holds the per-instrument open-trade table.
type Policy struct {
	maxPerInstrument int
	breakEvenRR      float64
	open             map[string][]*OpenTrade // keyed by symbol, insertion order
}

// NewPolicy creates a policy. maxPerInstrument caps concurrent trades
// per symbol; breakEvenRR is the favorable-excursion multiple of initial
// risk at which the stop moves to entry (≤ 0 disables break-even).
func NewPolicy(maxPerInstrument int, breakEvenRR float64) *Policy {
	return &Policy{
		maxPerInstrument: maxPerInstrument,
		breakEvenRR:      breakEvenRR,
		open:             make(map[string][]*OpenTrade),
	}
}

// OpenCount returns the number of tracked open trades for the symbol.
func (p *Policy) OpenCount(symbol string) int {
	return len(p.open[symbol])
}

// Remaining returns how many more trades the symbol may open this cycle.
func (p *Policy) Remaining(symbol string) int {
	r := p.maxPerInstrument - len(p.open[symbol])
	if r < 0 {
		return 0
	}
	return r
}

// Opened records an accepted order as an open trade. The venue result
// supplies the order ID and, when reported, the actual fill price; the
// tracked entry follows the fill so later matching and break-even math
// survive slippage.
func (p *Policy) Opened(spec model.OrderSpec, res model.OrderResult) {
	entry := spec.EntryPrice
	if res.FillPrice > 0 {
		entry = res.FillPrice
	}
	p.open[spec.Symbol] = append(p.open[spec.Symbol], &OpenTrade{
		OrderID:     res.OrderID,
		Symbol:      spec.Symbol,
		Direction:   spec.Direction,
		EntryPrice:  entry,
		InitialStop: spec.StopPrice,
	})
}

// Closed removes the tracked trade matching a venue-reported close.
// Matching is by order ID; when the event carries none, the oldest
// trade with the same direction and entry price is taken. Returns
// false when no tracked trade matches (e.g. a manually opened position
// closing); callers just log that.
func (p *Policy) Closed(ev model.ClosedPosition) bool {
	trades := p.open[ev.Symbol]
	for i, tr := range trades {
		match := tr.OrderID != "" && tr.OrderID == ev.OrderID
		if ev.OrderID == "" {
			match = tr.Direction == ev.Direction && tr.EntryPrice == ev.EntryPrice
		}
		if match {
			p.open[ev.Symbol] = append(trades[:i], trades[i+1:]...)
			return true
		}
	}
	return false
}

// CheckBreakEven compares each open trade's favorable excursion at
// lastClose against breakEvenRR × initial risk and returns one stop
// adjustment (to entry) per trade crossing the threshold. Each trade is
// adjusted at most once over its lifetime.
func (p *Policy) CheckBreakEven(symbol string, lastClose float64) []model.StopAdjustment {
	if p.breakEvenRR <= 0 {
		return nil
	}

	var adjs []model.StopAdjustment
	for _, tr := range p.open[symbol] {
		if tr.BreakevenApplied {
			continue
		}
		risk := math.Abs(tr.EntryPrice - tr.InitialStop)
		if risk == 0 {
			continue
		}

		excursion := lastClose - tr.EntryPrice
		if tr.Direction == model.Short {
			excursion = tr.EntryPrice - lastClose
		}
		if excursion < p.breakEvenRR*risk {
			continue
		}

		tr.BreakevenApplied = true
		adjs = append(adjs, model.StopAdjustment{
			OrderID:    tr.OrderID,
			Symbol:     tr.Symbol,
			Direction:  tr.Direction,
			EntryPrice: tr.EntryPrice,
			NewStop:    tr.EntryPrice,
			Reason:     "break-even",
		})
	}
	return adjs
}

// Snapshot returns a copy of the open-trade table for one symbol.
func (p *Policy) Snapshot(symbol string) []OpenTrade {
	trades := p.open[symbol]
	out := make([]OpenTrade, len(trades))
	for i, tr := range trades {
		out[i] = *tr
	}
	return out
}
