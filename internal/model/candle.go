package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLC candle for a single instrument.
// Prices are float64 in venue quote units: FX symbols quote fractional
// points (e.g. 0.00001 for EURUSD), so integer minor units don't fit here.
type Candle struct {
	Symbol string    `json:"symbol"`
	TS     time.Time `json:"ts"` // bucket open time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Derived holds the per-index indicator columns computed over a series.
type Derived struct {
	RSI        float64 `json:"rsi"`
	MACDLine   float64 `json:"macd_line"`
	MACDSignal float64 `json:"macd_signal"`
	ATR        float64 `json:"atr"`
	InsideBar  bool    `json:"inside_bar"`
	ORBLong    bool    `json:"orb_long"`
	ORBShort   bool    `json:"orb_short"`
}

// CandleSeries is a bounded window of candles for one instrument, oldest
// first, plus the derived indicator columns. Derived is nil until the
// pipeline annotates the series and must be recomputed whenever Candles
// changes; the scheduler builds a fresh series every refresh cycle.
type CandleSeries struct {
	Symbol  string
	Candles []Candle
	Derived []Derived
}

// NewCandleSeries wraps a fetched candle window. Candles must be ordered
// by strictly increasing timestamp, most recent last.
func NewCandleSeries(symbol string, candles []Candle) *CandleSeries {
	return &CandleSeries{Symbol: symbol, Candles: candles}
}

// Len returns the number of candles in the window.
func (s *CandleSeries) Len() int { return len(s.Candles) }

// Annotated reports whether derived columns are present for every index.
func (s *CandleSeries) Annotated() bool {
	return len(s.Derived) == len(s.Candles) && len(s.Candles) > 0
}

// LastClose returns the close of the most recent candle (0 if empty).
func (s *CandleSeries) LastClose() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	return s.Candles[len(s.Candles)-1].Close
}

// Closes copies the close column into a fresh slice.
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}
