package indicator

import (
	"fmt"

	"breakout-botv1/internal/model"
)

// Config holds the indicator periods and the ORB window length.
type Config struct {
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int
	ORBWindow  int
}

// DefaultConfig returns the standard periods: RSI 14, MACD 12/26/9,
// ATR 14, ORB window 5.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRPeriod:  14,
		ORBWindow:  5,
	}
}

// Pipeline annotates a candle series with all derived columns in one
// pass. It holds no per-symbol state: every refresh recomputes from the
// window it is handed, so a changed underlying series can never leak
// stale values.
type Pipeline struct {
	cfg Config
}

// NewPipeline creates a pipeline with the given indicator config.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Annotate computes the derived columns for the series in place.
// Requires at least 2 candles (signals compare against the prior bar).
func (p *Pipeline) Annotate(series *model.CandleSeries) error {
	n := series.Len()
	if n < 2 {
		return fmt.Errorf("annotate %s: need at least 2 candles, got %d", series.Symbol, n)
	}

	closes := series.Closes()
	rsi := RSI(closes, p.cfg.RSIPeriod)
	macdLine, macdSignal := MACD(closes, p.cfg.MACDFast, p.cfg.MACDSlow, p.cfg.MACDSignal)
	atr := ATR(series.Candles, p.cfg.ATRPeriod)
	inside := InsideBars(series.Candles)
	orbLong, orbShort := ORB(series.Candles, p.cfg.ORBWindow)

	derived := make([]model.Derived, n)
	for i := 0; i < n; i++ {
		derived[i] = model.Derived{
			RSI:        rsi[i],
			MACDLine:   macdLine[i],
			MACDSignal: macdSignal[i],
			ATR:        atr[i],
			InsideBar:  inside[i],
			ORBLong:    orbLong[i],
			ORBShort:   orbShort[i],
		}
	}
	series.Derived = derived
	return nil
}
