// Package engine composes the indicator pipeline, signal generator,
// risk sizer and lifecycle policy into the per-instrument decision step
// the scheduler drives each cycle.
package engine

import (
	"context"
	"errors"
	"fmt"

	"breakout-botv1/internal/indicator"
	"breakout-botv1/internal/lifecycle"
	"breakout-botv1/internal/model"
	"breakout-botv1/internal/risk"
	"breakout-botv1/internal/strategy"
)

// Engine runs the annotate → scan → admit → size pipeline for one
// instrument per call. It owns no state of its own; cross-cycle state
// lives in the lifecycle policy.
type Engine struct {
	pipeline *indicator.Pipeline
	gen      *strategy.Generator
	sizer    *risk.Sizer
	policy   *lifecycle.Policy
	sink     EventSink
}

// New creates an engine. sink may be nil to discard decision events.
func New(pipeline *indicator.Pipeline, gen *strategy.Generator, sizer *risk.Sizer, policy *lifecycle.Policy, sink EventSink) *Engine {
	if sink == nil {
		sink = nopSink{}
	}
	return &Engine{
		pipeline: pipeline,
		gen:      gen,
		sizer:    sizer,
		policy:   policy,
		sink:     sink,
	}
}

// RefreshAndDecide annotates the series, scans it for trade intents, and
// sizes every intent the lifecycle policy admits. Returns the orders to
// dispatch, in scan order, capped at the instrument's remaining trade
// slots. An untradable instrument yields no orders and
// model.ErrNotTradable regardless of what the scan would produce.
//
// equity may be 0 (unknown); sizing then falls back to the fixed lot.
func (e *Engine) RefreshAndDecide(ctx context.Context, inst model.Instrument, series *model.CandleSeries, equity float64) ([]model.OrderSpec, error) {
	if !inst.Tradable {
		return nil, fmt.Errorf("%s: %w", inst.Symbol, model.ErrNotTradable)
	}
	if err := e.pipeline.Annotate(series); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
	}

	intents := e.gen.Scan(series)
	remaining := e.policy.Remaining(inst.Symbol)

	var orders []model.OrderSpec
	for _, intent := range intents {
		e.sink.Decision(ctx, Event{
			Kind:      EventIntent,
			Symbol:    intent.Symbol,
			Direction: intent.Direction,
			Price:     intent.ReferencePrice,
			Rationale: intent.Rationale,
		})

		if len(orders) >= remaining {
			e.sink.Decision(ctx, Event{
				Kind:      EventRejected,
				Symbol:    intent.Symbol,
				Direction: intent.Direction,
				Price:     intent.ReferencePrice,
				Rationale: intent.Rationale,
				Reason:    "max trades per instrument reached",
			})
			continue
		}

		spec, err := e.sizer.Size(intent, inst, equity)
		if err != nil {
			if errors.Is(err, model.ErrNotTradable) {
				// Tradability flipped mid-decision; stop here.
				return orders, err
			}
			e.sink.Decision(ctx, Event{
				Kind:      EventRejected,
				Symbol:    intent.Symbol,
				Direction: intent.Direction,
				Price:     intent.ReferencePrice,
				Rationale: intent.Rationale,
				Reason:    err.Error(),
			})
			continue
		}

		e.sink.Decision(ctx, Event{
			Kind:      EventOrder,
			Symbol:    spec.Symbol,
			Direction: spec.Direction,
			Price:     spec.EntryPrice,
			Stop:      spec.StopPrice,
			Target:    spec.TargetPrice,
			Volume:    spec.Volume,
			Rationale: spec.Rationale,
		})
		orders = append(orders, spec)
	}
	return orders, nil
}
