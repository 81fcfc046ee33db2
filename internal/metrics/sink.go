package metrics

import (
	"context"

	"breakout-botv1/internal/engine"
)

// DecisionSink counts engine decision events. It satisfies
// engine.EventSink so metrics wiring stays out of the engine itself.
type DecisionSink struct {
	M *Metrics
}

func (s DecisionSink) Decision(_ context.Context, e engine.Event) {
	switch e.Kind {
	case engine.EventIntent:
		s.M.IntentsTotal.WithLabelValues(e.Rationale).Inc()
	case engine.EventRejected:
		s.M.SizingRejects.Inc()
	case engine.EventBreakEven:
		s.M.BreakEvenMoves.Inc()
	}
	// Submitted/rejected orders are counted by the scheduler, which sees
	// the venue's response.
}
