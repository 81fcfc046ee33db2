package scheduler

import (
	"context"
	"testing"
	"time"

	"breakout-botv1/internal/engine"
	"breakout-botv1/internal/indicator"
	"breakout-botv1/internal/lifecycle"
	"breakout-botv1/internal/model"
	"breakout-botv1/internal/risk"
	"breakout-botv1/internal/strategy"
)

func makeCandle(i int, open, high, low, close float64) model.Candle {
	return model.Candle{
		Symbol: "EURUSDm",
		TS:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * 5 * time.Minute),
		Open:   open, High: high, Low: low, Close: close, Volume: 100,
	}
}

// breakoutCandles yields exactly one inside-bar breakout at index 5.
func breakoutCandles() []model.Candle {
	return []model.Candle{
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
	}
}

type fakeVenue struct {
	inst        model.Instrument
	instErr     error
	candles     []model.Candle
	candlesErr  error
	fetchCalls  int
	reject      bool
	submitErr   error
	submitted   []model.OrderSpec
	stopMoves   []model.StopAdjustment
	closeEvents []model.ClosedPosition
}

func (f *fakeVenue) FetchCandles(_ context.Context, _, _ string, _ int) ([]model.Candle, error) {
	f.fetchCalls++
	return f.candles, f.candlesErr
}

func (f *fakeVenue) InstrumentInfo(_ context.Context, _ string) (model.Instrument, error) {
	return f.inst, f.instErr
}

func (f *fakeVenue) SubmitOrder(_ context.Context, spec model.OrderSpec) (model.OrderResult, error) {
	if f.submitErr != nil {
		return model.OrderResult{}, f.submitErr
	}
	if f.reject {
		return model.OrderResult{Accepted: false, Reason: "market closed"}, nil
	}
	f.submitted = append(f.submitted, spec)
	return model.OrderResult{Accepted: true, OrderID: "V-1"}, nil
}

func (f *fakeVenue) ModifyStop(_ context.Context, adj model.StopAdjustment) error {
	f.stopMoves = append(f.stopMoves, adj)
	return nil
}

func (f *fakeVenue) ClosedPositions(_ context.Context, _ string) ([]model.ClosedPosition, error) {
	evs := f.closeEvents
	f.closeEvents = nil
	return evs, nil
}

func tradableInstrument() model.Instrument {
	return model.Instrument{
		Symbol:          "EURUSDm",
		Tradable:        true,
		Point:           0.01,
		TradeStopsLevel: 10,
		VolumeMin:       0.01,
		VolumeStep:      0.01,
	}
}

type fakeRecorder struct {
	orders    int
	stopMoves int
}

func (r *fakeRecorder) RecordOrder(model.OrderSpec, model.OrderResult) error {
	r.orders++
	return nil
}

func (r *fakeRecorder) RecordStopMove(model.StopAdjustment) error {
	r.stopMoves++
	return nil
}

func newTestScheduler(t *testing.T, venue *fakeVenue, policy *lifecycle.Policy, rec *fakeRecorder) *Scheduler {
	t.Helper()
	eng := engine.New(
		indicator.NewPipeline(indicator.DefaultConfig()),
		strategy.NewGenerator(),
		risk.NewSizer(0, 0.02, 123456),
		policy,
		nil,
	)
	deps := Deps{
		Market:  venue,
		Gateway: venue,
		Closes:  venue,
		Engine:  eng,
		Policy:  policy,
	}
	if rec != nil {
		deps.Recorder = rec
	}
	s, err := New(Config{
		Symbols:        []string{"EURUSDm"},
		Timeframe:      "M5",
		BarsPerRefresh: 10,
		Interval:       time.Minute,
	}, deps)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunCycle_DispatchesOrder(t *testing.T) {
	venue := &fakeVenue{inst: tradableInstrument(), candles: breakoutCandles()}
	policy := lifecycle.NewPolicy(4, 1.0)
	rec := &fakeRecorder{}
	s := newTestScheduler(t, venue, policy, rec)

	s.RunCycle(context.Background())

	if len(venue.submitted) != 1 {
		t.Fatalf("expected 1 submitted order, got %d", len(venue.submitted))
	}
	if policy.OpenCount("EURUSDm") != 1 {
		t.Errorf("open count = %d, want 1", policy.OpenCount("EURUSDm"))
	}
	if rec.orders != 1 {
		t.Errorf("journaled orders = %d, want 1", rec.orders)
	}
}

func TestRunCycle_DataUnavailableSkips(t *testing.T) {
	venue := &fakeVenue{inst: tradableInstrument(), candlesErr: model.ErrDataUnavailable}
	policy := lifecycle.NewPolicy(4, 1.0)
	s := newTestScheduler(t, venue, policy, nil)

	s.RunCycle(context.Background())

	if len(venue.submitted) != 0 {
		t.Fatalf("expected no orders on data failure, got %d", len(venue.submitted))
	}
}

func TestRunCycle_UntradableSkipsFetch(t *testing.T) {
	inst := tradableInstrument()
	inst.Tradable = false
	venue := &fakeVenue{inst: inst, candles: breakoutCandles()}
	policy := lifecycle.NewPolicy(4, 1.0)
	s := newTestScheduler(t, venue, policy, nil)

	s.RunCycle(context.Background())

	if venue.fetchCalls != 0 {
		t.Errorf("fetch called %d times for untradable symbol, want 0", venue.fetchCalls)
	}
	if len(venue.submitted) != 0 {
		t.Errorf("expected no orders, got %d", len(venue.submitted))
	}
}

func TestRunCycle_VenueRejectionDoesNotTrackTrade(t *testing.T) {
	venue := &fakeVenue{inst: tradableInstrument(), candles: breakoutCandles(), reject: true}
	policy := lifecycle.NewPolicy(4, 1.0)
	s := newTestScheduler(t, venue, policy, nil)

	s.RunCycle(context.Background())

	if policy.OpenCount("EURUSDm") != 0 {
		t.Errorf("rejected order must not occupy a trade slot, got %d", policy.OpenCount("EURUSDm"))
	}
}

func TestRunCycle_AppliesVenueCloses(t *testing.T) {
	venue := &fakeVenue{inst: tradableInstrument(), candles: breakoutCandles()}
	policy := lifecycle.NewPolicy(1, 1.0)
	s := newTestScheduler(t, venue, policy, nil)

	// Fill the only slot, then report it closed before the next cycle.
	policy.Opened(
		model.OrderSpec{Symbol: "EURUSDm", Direction: model.Long, EntryPrice: 1.10, StopPrice: 1.09},
		model.OrderResult{Accepted: true, OrderID: "V-9"},
	)
	venue.closeEvents = []model.ClosedPosition{{OrderID: "V-9", Symbol: "EURUSDm", Direction: model.Long, EntryPrice: 1.10}}

	s.RunCycle(context.Background())

	// Slot was freed first, so the breakout order went through.
	if len(venue.submitted) != 1 {
		t.Fatalf("expected 1 order after slot freed, got %d", len(venue.submitted))
	}
}

func TestRunCycle_BreakEvenMovesStop(t *testing.T) {
	venue := &fakeVenue{inst: tradableInstrument(), candles: breakoutCandles()}
	policy := lifecycle.NewPolicy(4, 1.0)
	rec := &fakeRecorder{}
	s := newTestScheduler(t, venue, policy, rec)

	// Long from 100 with stop 95; last close 112 is well past 1R.
	policy.Opened(
		model.OrderSpec{Symbol: "EURUSDm", Direction: model.Long, EntryPrice: 100, StopPrice: 95},
		model.OrderResult{Accepted: true, OrderID: "V-9"},
	)

	s.RunCycle(context.Background())

	if len(venue.stopMoves) != 1 {
		t.Fatalf("expected 1 stop move, got %d", len(venue.stopMoves))
	}
	if venue.stopMoves[0].NewStop != 100 {
		t.Errorf("stop moved to %v, want entry 100", venue.stopMoves[0].NewStop)
	}
	if rec.stopMoves != 1 {
		t.Errorf("journaled stop moves = %d, want 1", rec.stopMoves)
	}
}

func TestRunCycle_QuoteOverridesCandleClose(t *testing.T) {
	venue := &fakeVenue{inst: tradableInstrument(), candles: breakoutCandles()}
	policy := lifecycle.NewPolicy(4, 1.0)
	s := newTestScheduler(t, venue, policy, nil)

	// Quote far below entry: break-even must not fire even though the
	// candle close (112) is past the threshold.
	s.deps.Quote = func(string) (float64, bool) { return 90, true }
	policy.Opened(
		model.OrderSpec{Symbol: "EURUSDm", Direction: model.Long, EntryPrice: 100, StopPrice: 95},
		model.OrderResult{Accepted: true, OrderID: "V-9"},
	)

	s.RunCycle(context.Background())

	if len(venue.stopMoves) != 0 {
		t.Fatalf("expected no stop moves with stale-quote override, got %d", len(venue.stopMoves))
	}
}
