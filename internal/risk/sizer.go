// Package risk turns raw trade intents into venue-acceptable order
// specs: it clamps stops and targets to the venue's minimum distance
// and determines position size from configured risk.
package risk

import (
	"fmt"
	"math"

	"breakout-botv1/internal/model"
)

// Sizer applies venue constraints and position sizing to trade intents.
type Sizer struct {
	maxRiskFraction float64 // fraction of equity risked per trade (0 = disabled)
	fixedVolume     float64 // fallback lot size
	magic           int64   // stamped on every produced order
}

// NewSizer creates a sizer. maxRiskFraction enables equity-based sizing
// when positive; fixedVolume is used whenever risk-based sizing cannot
// be resolved (unknown equity or per-point value).
func NewSizer(maxRiskFraction, fixedVolume float64, magic int64) *Sizer {
	return &Sizer{
		maxRiskFraction: maxRiskFraction,
		fixedVolume:     fixedVolume,
		magic:           magic,
	}
}

// Size produces an OrderSpec from an intent, or an error classifying the
// rejection:
//
//   - model.ErrNotTradable when the venue flags the symbol untradable;
//     a normal outcome, the intent is simply dropped.
//   - model.ErrSizingFailure when venue metadata cannot resolve a
//     minimum stop distance.
//
// equity may be 0 when the account state is unknown; the fixed lot is
// used in that case. The emitted spec always satisfies
// |entry−stop| ≥ MinStopDistance and |entry−target| ≥ MinStopDistance.
func (s *Sizer) Size(intent model.TradeIntent, inst model.Instrument, equity float64) (model.OrderSpec, error) {
	if !inst.Tradable {
		return model.OrderSpec{}, fmt.Errorf("%s: %w", intent.Symbol, model.ErrNotTradable)
	}
	if inst.Point <= 0 {
		return model.OrderSpec{}, fmt.Errorf("%s: no point size in venue metadata: %w", intent.Symbol, model.ErrSizingFailure)
	}

	entry := intent.ReferencePrice
	stop, target := clampStops(intent.Direction, entry, intent.RawStop, intent.RawTarget, inst.MinStopDistance())

	return model.OrderSpec{
		Symbol:      intent.Symbol,
		Direction:   intent.Direction,
		EntryPrice:  entry,
		StopPrice:   stop,
		TargetPrice: target,
		Volume:      s.volume(inst, entry, stop, equity),
		Rationale:   intent.Rationale,
		Magic:       s.magic,
	}, nil
}

// clampStops pushes stop and target out to the minimum distance when
// the raw levels sit too close to the entry. Direction decides which
// side each level belongs on.
func clampStops(dir model.Direction, entry, stop, target, minDist float64) (float64, float64) {
	if math.Abs(entry-stop) < minDist {
		if dir == model.Long {
			stop = entry - minDist
		} else {
			stop = entry + minDist
		}
	}
	if math.Abs(entry-target) < minDist {
		if dir == model.Long {
			target = entry + minDist
		} else {
			target = entry - minDist
		}
	}
	return stop, target
}

// volume sizes the position. With risk-fraction sizing enabled and
// resolvable (known equity, per-point value, non-degenerate stop), the
// trade risks at most maxRiskFraction of equity; the result is floored
// to the volume step and clamped into [VolumeMin, VolumeMax]. Otherwise
// the configured fixed lot is used.
func (s *Sizer) volume(inst model.Instrument, entry, stop, equity float64) float64 {
	stopPoints := math.Abs(entry-stop) / inst.Point
	if s.maxRiskFraction <= 0 || equity <= 0 || inst.ValuePerPoint <= 0 || stopPoints <= 0 {
		return s.fixedVolume
	}

	vol := equity * s.maxRiskFraction / (stopPoints * inst.ValuePerPoint)
	if inst.VolumeStep > 0 {
		vol = math.Floor(vol/inst.VolumeStep) * inst.VolumeStep
	}
	if inst.VolumeMax > 0 && vol > inst.VolumeMax {
		vol = inst.VolumeMax
	}
	if vol < inst.VolumeMin {
		vol = inst.VolumeMin
	}
	if vol <= 0 {
		return s.fixedVolume
	}
	return vol
}
