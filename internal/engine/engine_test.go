package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"breakout-botv1/internal/indicator"
	"breakout-botv1/internal/lifecycle"
	"breakout-botv1/internal/model"
	"breakout-botv1/internal/risk"
	"breakout-botv1/internal/strategy"
)

type captureSink struct {
	events []Event
}

func (c *captureSink) Decision(_ context.Context, e Event) {
	c.events = append(c.events, e)
}

func (c *captureSink) count(kind string) int {
	n := 0
	for _, e := range c.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func makeCandle(i int, open, high, low, close float64) model.Candle {
	return model.Candle{
		Symbol: "EURUSDm",
		TS:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
		Open:   open, High: high, Low: low, Close: close, Volume: 100,
	}
}

func testInstrument() model.Instrument {
	return model.Instrument{
		Symbol:          "EURUSDm",
		Tradable:        true,
		Point:           0.01,
		TradeStopsLevel: 10,
		VolumeMin:       0.01,
		VolumeStep:      0.01,
	}
}

// breakoutSeries produces one inside-bar breakout at index 5 and no
// other triggers (the first candle's range contains everything else).
func breakoutSeries() *model.CandleSeries {
	return model.NewCandleSeries("EURUSDm", []model.Candle{
		makeCandle(0, 100, 200, 50, 100),
		makeCandle(1, 100, 101, 96, 100),
		makeCandle(2, 100, 102, 97, 101),
		makeCandle(3, 101, 103, 98, 102),
		makeCandle(4, 102, 110, 90, 104),
		makeCandle(5, 104, 105, 95, 112),
		makeCandle(6, 112, 113, 99, 105),
		makeCandle(7, 105, 114, 100, 106),
		makeCandle(8, 106, 115, 101, 107),
		makeCandle(9, 107, 116, 102, 108),
	})
}

func newTestEngine(maxTrades int, sink EventSink) (*Engine, *lifecycle.Policy) {
	policy := lifecycle.NewPolicy(maxTrades, 1.0)
	e := New(
		indicator.NewPipeline(indicator.DefaultConfig()),
		strategy.NewGenerator(),
		risk.NewSizer(0, 0.02, 123456),
		policy,
		sink,
	)
	return e, policy
}

func TestRefreshAndDecide_EmitsOrder(t *testing.T) {
	sink := &captureSink{}
	e, _ := newTestEngine(4, sink)

	orders, err := e.RefreshAndDecide(context.Background(), testInstrument(), breakoutSeries(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	o := orders[0]
	if o.Direction != model.Long || o.Rationale != strategy.ReasonInsideBarBreakout {
		t.Errorf("unexpected order: %+v", o)
	}
	if o.Volume != 0.02 {
		t.Errorf("volume = %v, want fixed 0.02", o.Volume)
	}
	minDist := 10 * 0.01
	if o.EntryPrice-o.StopPrice < minDist || o.TargetPrice-o.EntryPrice < minDist {
		t.Errorf("min-distance invariant violated: %+v", o)
	}

	if sink.count(EventIntent) != 1 || sink.count(EventOrder) != 1 {
		t.Errorf("events: %d intents, %d orders, want 1/1", sink.count(EventIntent), sink.count(EventOrder))
	}
}

func TestRefreshAndDecide_UntradableInstrument(t *testing.T) {
	e, _ := newTestEngine(4, nil)
	inst := testInstrument()
	inst.Tradable = false

	orders, err := e.RefreshAndDecide(context.Background(), inst, breakoutSeries(), 0)
	if !errors.Is(err, model.ErrNotTradable) {
		t.Fatalf("expected ErrNotTradable, got %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("untradable instrument must yield no orders, got %d", len(orders))
	}
}

func TestRefreshAndDecide_RespectsTradeCap(t *testing.T) {
	sink := &captureSink{}
	e, policy := newTestEngine(1, sink)

	// One slot already used: nothing left for the breakout intent.
	policy.Opened(
		model.OrderSpec{Symbol: "EURUSDm", Direction: model.Long, EntryPrice: 100, StopPrice: 99},
		model.OrderResult{Accepted: true, OrderID: "V-1"},
	)

	orders, err := e.RefreshAndDecide(context.Background(), testInstrument(), breakoutSeries(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected 0 orders with cap exhausted, got %d", len(orders))
	}
	if sink.count(EventRejected) != 1 {
		t.Errorf("expected 1 rejected event, got %d", sink.count(EventRejected))
	}
}

func TestRefreshAndDecide_TooShortSeries(t *testing.T) {
	e, _ := newTestEngine(4, nil)
	series := model.NewCandleSeries("EURUSDm", []model.Candle{makeCandle(0, 100, 101, 99, 100)})

	_, err := e.RefreshAndDecide(context.Background(), testInstrument(), series, 0)
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
