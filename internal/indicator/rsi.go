package indicator

// rsiEpsilon keeps the relative-strength division defined when the
// average loss over the window is zero.
const rsiEpsilon = 1e-6

// RSI computes the Relative Strength Index over closes with the given
// period. Gains and losses are averaged with a simple moving average
// over the causal window min(period, i+1), so early indices carry a
// shorter-window value rather than being undefined. Output is always
// within [0, 100].
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}
	// Index 0 has no prior close; it contributes zero gain and zero loss.

	avgGain := sma(gains, period)
	avgLoss := sma(losses, period)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		rs := avgGain[i] / (avgLoss[i] + rsiEpsilon)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
