// Package indicator computes technical indicator columns over a candle
// window. All computations are causal (index i uses only candles at
// same-or-earlier indices) and deterministic given identical input.
//
// The series functions (RSI, MACD, ATR, InsideBars, ORB) are pure and
// allocate their output; the Pipeline composes them into the derived
// columns of a model.CandleSeries.
package indicator

// sma fills out[i] with the mean of values over the causal window
// min(period, i+1). The first period-1 indices use a shorter window
// instead of being undefined.
func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		n := period
		if i+1 < period {
			n = i + 1
		} else if i >= period {
			sum -= values[i-period]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// ema computes a span-weighted exponential moving average with
// α = 2/(span+1), seeded with the first value rather than a true
// infinite-history EMA.
func ema(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}
