package risk

import (
	"errors"
	"math"
	"testing"

	"breakout-botv1/internal/model"
)

func testInstrument() model.Instrument {
	return model.Instrument{
		Symbol:          "EURUSDm",
		Tradable:        true,
		Point:           0.00001,
		TradeStopsLevel: 100, // min distance = 0.001
		ValuePerPoint:   0,   // risk sizing off unless set
		VolumeMin:       0.01,
		VolumeMax:       10,
		VolumeStep:      0.01,
	}
}

func longIntent(entry, stop, target float64) model.TradeIntent {
	return model.TradeIntent{
		Symbol:         "EURUSDm",
		Direction:      model.Long,
		ReferencePrice: entry,
		RawStop:        stop,
		RawTarget:      target,
		Rationale:      "Inside Bar Breakout",
	}
}

func TestSize_MinDistanceInvariant(t *testing.T) {
	s := NewSizer(0, 0.02, 123456)
	inst := testInstrument()
	minDist := inst.MinStopDistance()

	// Stop and target both inside the minimum distance.
	spec, err := s.Size(longIntent(1.10000, 1.09995, 1.10005), inst, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(spec.EntryPrice-spec.StopPrice) < minDist {
		t.Errorf("|entry−stop| = %v < min distance %v", math.Abs(spec.EntryPrice-spec.StopPrice), minDist)
	}
	if math.Abs(spec.EntryPrice-spec.TargetPrice) < minDist {
		t.Errorf("|entry−target| = %v < min distance %v", math.Abs(spec.EntryPrice-spec.TargetPrice), minDist)
	}
	if spec.StopPrice >= spec.EntryPrice {
		t.Errorf("long stop %v not below entry %v", spec.StopPrice, spec.EntryPrice)
	}
	if spec.TargetPrice <= spec.EntryPrice {
		t.Errorf("long target %v not above entry %v", spec.TargetPrice, spec.EntryPrice)
	}
}

func TestSize_ShortClampDirections(t *testing.T) {
	s := NewSizer(0, 0.02, 123456)
	inst := testInstrument()

	spec, err := s.Size(model.TradeIntent{
		Symbol:         "EURUSDm",
		Direction:      model.Short,
		ReferencePrice: 1.10000,
		RawStop:        1.10001, // too close above
		RawTarget:      1.09999, // too close below
		Rationale:      "Opening Range Breakout",
	}, inst, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(spec.StopPrice-1.10100) > 1e-9 {
		t.Errorf("short stop = %v, want 1.10100 (entry + min distance)", spec.StopPrice)
	}
	if math.Abs(spec.TargetPrice-1.09900) > 1e-9 {
		t.Errorf("short target = %v, want 1.09900 (entry − min distance)", spec.TargetPrice)
	}
}

func TestSize_WideLevelsUntouched(t *testing.T) {
	s := NewSizer(0, 0.02, 123456)
	spec, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), testInstrument(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if spec.StopPrice != 1.09000 || spec.TargetPrice != 1.12000 {
		t.Errorf("levels moved unnecessarily: stop %v target %v", spec.StopPrice, spec.TargetPrice)
	}
}

func TestSize_Untradable(t *testing.T) {
	s := NewSizer(0, 0.02, 123456)
	inst := testInstrument()
	inst.Tradable = false

	_, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), inst, 0)
	if !errors.Is(err, model.ErrNotTradable) {
		t.Fatalf("expected ErrNotTradable, got %v", err)
	}
}

func TestSize_MissingMetadata(t *testing.T) {
	s := NewSizer(0, 0.02, 123456)
	inst := testInstrument()
	inst.Point = 0

	_, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), inst, 0)
	if !errors.Is(err, model.ErrSizingFailure) {
		t.Fatalf("expected ErrSizingFailure, got %v", err)
	}
}

func TestSize_FixedVolumeFallback(t *testing.T) {
	s := NewSizer(0.04, 0.02, 123456)
	// Equity unknown → fixed lot despite risk fraction being set.
	spec, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), testInstrument(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Volume != 0.02 {
		t.Errorf("volume = %v, want fixed 0.02", spec.Volume)
	}
}

func TestSize_RiskFractionVolume(t *testing.T) {
	inst := testInstrument()
	inst.ValuePerPoint = 0.1 // $0.10 per point per lot

	s := NewSizer(0.04, 0.02, 123456)

	// Stop distance 0.01000 = 1000 points. Risking 4% of 10,000 = 400.
	// vol = 400 / (1000 × 0.1) = 4.0 lots, already on the 0.01 step.
	spec, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), inst, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(spec.Volume-4.0) > 1e-9 {
		t.Errorf("volume = %v, want 4.0", spec.Volume)
	}
}

func TestSize_RiskVolumeFlooredAndClamped(t *testing.T) {
	inst := testInstrument()
	inst.ValuePerPoint = 0.1
	inst.VolumeMax = 1.5

	s := NewSizer(0.04, 0.02, 123456)

	// Unclamped volume would be 4.0; capped at VolumeMax.
	spec, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), inst, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Volume != 1.5 {
		t.Errorf("volume = %v, want clamped 1.5", spec.Volume)
	}

	// Tiny equity: floor to step drops below VolumeMin → raised to min.
	spec, err = s.Size(longIntent(1.10000, 1.09000, 1.12000), inst, 10)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Volume != inst.VolumeMin {
		t.Errorf("volume = %v, want VolumeMin %v", spec.Volume, inst.VolumeMin)
	}
}

func TestSize_CarriesRationaleAndMagic(t *testing.T) {
	s := NewSizer(0, 0.02, 123456)
	spec, err := s.Size(longIntent(1.10000, 1.09000, 1.12000), testInstrument(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if spec.Rationale != "Inside Bar Breakout" {
		t.Errorf("rationale = %q", spec.Rationale)
	}
	if spec.Magic != 123456 {
		t.Errorf("magic = %d, want 123456", spec.Magic)
	}
}
