package indicator

// MACD computes the MACD line (fast EMA − slow EMA of closes) and its
// signal line (EMA of the MACD line). All EMAs use span weighting
// seeded with the first value, so every index is defined and causal.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine []float64) {
	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signalLine = ema(line, signal)
	return line, signalLine
}
