package indicator

import (
	"math"

	"breakout-botv1/internal/model"
)

// TrueRanges computes the per-bar true range: the largest of the bar's
// own range, the gap from the prior close to the high, and the gap from
// the prior close to the low. The first bar has no prior close and uses
// its own high−low.
func TrueRanges(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		tr := c.High - c.Low
		if i > 0 {
			prevClose := candles[i-1].Close
			tr = math.Max(tr, math.Abs(c.High-prevClose))
			tr = math.Max(tr, math.Abs(c.Low-prevClose))
		}
		out[i] = tr
	}
	return out
}

// ATR computes the Average True Range as a simple moving average of the
// true range over the causal window min(period, i+1).
func ATR(candles []model.Candle, period int) []float64 {
	return sma(TrueRanges(candles), period)
}
