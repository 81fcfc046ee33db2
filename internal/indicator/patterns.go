package indicator

import "breakout-botv1/internal/model"

// InsideBars flags each index whose bar is strictly contained in the
// prior bar's range: high[i-1] > high[i] and low[i-1] < low[i].
// A bar touching the prior extremes is not inside. Index 0 is never
// flagged (no predecessor).
func InsideBars(candles []model.Candle) []bool {
	out := make([]bool, len(candles))
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1], candles[i]
		out[i] = prev.High > cur.High && prev.Low < cur.Low
	}
	return out
}

// ORB evaluates an opening-range breakout over the series: the opening
// range is the high/low of the first window candles (the whole series
// when shorter), and every index is flagged long when its high exceeds
// the opening high and short when its low undercuts the opening low.
// The opening window itself is evaluated too, so the bars that set the
// extremes can trivially flag; callers get the same view the strategy
// was designed around rather than a silently special-cased one.
func ORB(candles []model.Candle, window int) (long, short []bool) {
	long = make([]bool, len(candles))
	short = make([]bool, len(candles))
	if len(candles) == 0 {
		return long, short
	}
	// A misconfigured window degenerates to the first candle alone.
	if window < 1 {
		window = 1
	}
	if window > len(candles) {
		window = len(candles)
	}

	openingHigh := candles[0].High
	openingLow := candles[0].Low
	for _, c := range candles[1:window] {
		if c.High > openingHigh {
			openingHigh = c.High
		}
		if c.Low < openingLow {
			openingLow = c.Low
		}
	}

	for i, c := range candles {
		long[i] = c.High > openingHigh
		short[i] = c.Low < openingLow
	}
	return long, short
}
