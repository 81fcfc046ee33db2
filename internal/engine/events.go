package engine

import (
	"context"
	"log/slog"

	"breakout-botv1/internal/model"
)

// Event kinds emitted by the engine and the scheduler.
const (
	EventIntent    = "intent"    // a trigger condition fired
	EventOrder     = "order"     // an order spec was produced
	EventRejected  = "rejected"  // an intent was dropped (reason says why)
	EventBreakEven = "breakeven" // a stop was moved to entry
)

// Event is one structured decision record. Every accept/reject the
// engine makes flows through the sink instead of ad-hoc prints.
type Event struct {
	Kind      string          `json:"kind"`
	Symbol    string          `json:"symbol"`
	Direction model.Direction `json:"direction,omitempty"`
	Price     float64         `json:"price,omitempty"`
	Stop      float64         `json:"stop,omitempty"`
	Target    float64         `json:"target,omitempty"`
	Volume    float64         `json:"volume,omitempty"`
	Rationale string          `json:"rationale,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// EventSink receives decision events. Implementations must be cheap and
// non-blocking; the sink sits on the decision path.
type EventSink interface {
	Decision(ctx context.Context, e Event)
}

type nopSink struct{}

func (nopSink) Decision(context.Context, Event) {}

// LogSink writes decision events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Decision(ctx context.Context, e Event) {
	s.Logger.InfoContext(ctx, "decision",
		slog.String("kind", e.Kind),
		slog.String("symbol", e.Symbol),
		slog.String("direction", string(e.Direction)),
		slog.Float64("price", e.Price),
		slog.Float64("volume", e.Volume),
		slog.String("rationale", e.Rationale),
		slog.String("reason", e.Reason),
	)
}

// MultiSink fans one event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Decision(ctx context.Context, e Event) {
	for _, s := range m {
		s.Decision(ctx, e)
	}
}
