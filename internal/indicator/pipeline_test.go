package indicator

import (
	"math"
	"testing"
	"time"

	"breakout-botv1/internal/model"
)

func makeCandle(i int, open, high, low, close float64) model.Candle {
	return model.Candle{
		Symbol: "EURUSDm",
		TS:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: 100,
	}
}

// waveCandles builds a deterministic oscillating series.
func waveCandles(n int) []model.Candle {
	candles := make([]model.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		move := math.Sin(float64(i)*0.7) * 2
		open := price
		close := price + move
		high := math.Max(open, close) + 0.5
		low := math.Min(open, close) - 0.5
		candles[i] = makeCandle(i, open, high, low, close)
		price = close
	}
	return candles
}

func TestInsideBars(t *testing.T) {
	candles := []model.Candle{
		makeCandle(0, 100, 110, 90, 105),
		makeCandle(1, 105, 108, 95, 100),  // strictly inside bar 0
		makeCandle(2, 100, 108, 95, 102),  // equal high; touching, not inside
		makeCandle(3, 102, 107, 95, 104),  // equal low vs bar 2; not inside
		makeCandle(4, 104, 120, 100, 115), // exceeds prior high
	}

	got := InsideBars(candles)
	want := []bool{false, true, false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: inside_bar = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestORB(t *testing.T) {
	// Opening range over first 3 candles: high=110, low=90.
	candles := []model.Candle{
		makeCandle(0, 100, 110, 95, 105),
		makeCandle(1, 105, 108, 90, 100),
		makeCandle(2, 100, 106, 96, 102),
		makeCandle(3, 102, 111, 97, 110), // breaks above opening high
		makeCandle(4, 110, 109, 89, 92),  // breaks below opening low
		makeCandle(5, 92, 105, 95, 100),  // stays inside
	}

	long, short := ORB(candles, 3)

	wantLong := []bool{false, false, false, true, false, false}
	wantShort := []bool{false, false, false, false, true, false}
	for i := range candles {
		if long[i] != wantLong[i] {
			t.Errorf("index %d: orb_long = %v, want %v", i, long[i], wantLong[i])
		}
		if short[i] != wantShort[i] {
			t.Errorf("index %d: orb_short = %v, want %v", i, short[i], wantShort[i])
		}
	}
}

func TestORB_WindowLongerThanSeries(t *testing.T) {
	candles := waveCandles(3)
	long, short := ORB(candles, 10)
	if len(long) != 3 || len(short) != 3 {
		t.Fatalf("expected 3 flags, got %d/%d", len(long), len(short))
	}
}

func TestORB_NonPositiveWindow(t *testing.T) {
	candles := waveCandles(5)
	for _, w := range []int{0, -1} {
		long, short := ORB(candles, w)
		wantLong, wantShort := ORB(candles, 1)
		for i := range candles {
			if long[i] != wantLong[i] || short[i] != wantShort[i] {
				t.Fatalf("window %d, index %d: flags diverge from window 1", w, i)
			}
		}
	}
}

func TestRSI_Bounds(t *testing.T) {
	closes := make([]float64, 0, 60)
	price := 100.0
	for i := 0; i < 60; i++ {
		// Alternate strong up and weak down moves plus a flat stretch
		switch {
		case i < 20:
			price += 3
		case i < 40:
			price -= 1
		}
		closes = append(closes, price)
	}

	rsi := RSI(closes, 14)
	for i, v := range rsi {
		if v < 0 || v > 100 {
			t.Errorf("index %d: RSI %.4f outside [0,100]", i, v)
		}
	}

	// Monotonic rise should push RSI near 100 by the end of the rise
	if rsi[19] < 99 {
		t.Errorf("expected RSI near 100 after sustained gains, got %.4f", rsi[19])
	}
	// Flat tail: both averages decay toward zero, RSI stays in bounds
	if rsi[59] < 0 || rsi[59] > 100 {
		t.Errorf("flat-tail RSI out of bounds: %.4f", rsi[59])
	}
}

func TestRSI_ShortWindowStart(t *testing.T) {
	// First bars use a window of min(period, i+1); index 1 after a gain
	// of 2 has avgGain = (0+2)/2 = 1, avgLoss = 0.
	rsi := RSI([]float64{100, 102, 101}, 14)
	wantRS := 1.0 / rsiEpsilon
	want := 100 - 100/(1+wantRS)
	if math.Abs(rsi[1]-want) > 1e-9 {
		t.Errorf("rsi[1] = %.9f, want %.9f", rsi[1], want)
	}
}

func TestMACD_SeededWithFirstValue(t *testing.T) {
	closes := []float64{100, 101, 103, 102, 105}
	line, signal := MACD(closes, 12, 26, 9)

	// Both EMAs start at closes[0], so the MACD line starts at zero and
	// the signal line (EMA of the line) starts at zero too.
	if line[0] != 0 {
		t.Errorf("macd_line[0] = %v, want 0", line[0])
	}
	if signal[0] != 0 {
		t.Errorf("macd_signal[0] = %v, want 0", signal[0])
	}

	// Rising closes: fast EMA tracks price more closely than slow EMA.
	if line[4] <= 0 {
		t.Errorf("expected positive macd_line on rising closes, got %v", line[4])
	}
}

func TestATR_FirstBarUsesOwnRange(t *testing.T) {
	candles := []model.Candle{
		makeCandle(0, 100, 104, 98, 102),
		makeCandle(1, 102, 103, 101, 102),
	}

	tr := TrueRanges(candles)
	if math.Abs(tr[0]-6) > 1e-12 {
		t.Errorf("tr[0] = %v, want 6 (high−low)", tr[0])
	}
	// Bar 1: max(103−101, |103−102|, |101−102|) = 2
	if math.Abs(tr[1]-2) > 1e-12 {
		t.Errorf("tr[1] = %v, want 2", tr[1])
	}

	atr := ATR(candles, 14)
	if math.Abs(atr[1]-4) > 1e-12 {
		t.Errorf("atr[1] = %v, want 4 (mean of 6 and 2)", atr[1])
	}
}

func TestATR_GapsDominateRange(t *testing.T) {
	candles := []model.Candle{
		makeCandle(0, 100, 101, 99, 100),
		makeCandle(1, 110, 111, 109, 110), // gap up: |high−prevClose| = 11
	}
	tr := TrueRanges(candles)
	if math.Abs(tr[1]-11) > 1e-12 {
		t.Errorf("tr[1] = %v, want 11", tr[1])
	}
}

func TestPipeline_Causality(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	candles := waveCandles(40)

	full := model.NewCandleSeries("EURUSDm", candles)
	if err := p.Annotate(full); err != nil {
		t.Fatal(err)
	}

	// Recomputing over candles[0..i] must reproduce index i of the full
	// run; no derived value may depend on later candles.
	for i := 2; i < len(candles); i++ {
		prefix := model.NewCandleSeries("EURUSDm", candles[:i+1])
		if err := p.Annotate(prefix); err != nil {
			t.Fatal(err)
		}
		got := prefix.Derived[i]
		want := full.Derived[i]

		if math.Abs(got.RSI-want.RSI) > 1e-9 ||
			math.Abs(got.MACDLine-want.MACDLine) > 1e-9 ||
			math.Abs(got.MACDSignal-want.MACDSignal) > 1e-9 ||
			math.Abs(got.ATR-want.ATR) > 1e-9 {
			t.Fatalf("index %d: prefix recompute diverges: got %+v, want %+v", i, got, want)
		}
		if got.InsideBar != want.InsideBar {
			t.Fatalf("index %d: inside_bar diverges on prefix recompute", i)
		}
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	candles := waveCandles(30)

	a := model.NewCandleSeries("EURUSDm", candles)
	b := model.NewCandleSeries("EURUSDm", candles)
	if err := p.Annotate(a); err != nil {
		t.Fatal(err)
	}
	if err := p.Annotate(b); err != nil {
		t.Fatal(err)
	}
	// Also re-annotate a in place; must not drift.
	if err := p.Annotate(a); err != nil {
		t.Fatal(err)
	}

	for i := range a.Derived {
		if a.Derived[i] != b.Derived[i] {
			t.Fatalf("index %d: derived values not identical: %+v vs %+v", i, a.Derived[i], b.Derived[i])
		}
	}
}

func TestPipeline_RejectsTooShortSeries(t *testing.T) {
	p := NewPipeline(DefaultConfig())
	series := model.NewCandleSeries("EURUSDm", waveCandles(1))
	if err := p.Annotate(series); err == nil {
		t.Fatal("expected error for single-candle series")
	}
}
