// cmd/backtest replays historical candles from SQLite through the
// indicator pipeline and signal generator, simulates each resulting
// trade to its stop or target, and prints a per-symbol summary.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/candles.db --symbols=EURUSDm --bars=500
//
// With --synthetic the candle database is first seeded from the paper
// venue's random walk, so the backtester works out of the box.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"breakout-botv1/internal/indicator"
	"breakout-botv1/internal/model"
	"breakout-botv1/internal/risk"
	"breakout-botv1/internal/strategy"
	"breakout-botv1/internal/venue"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	dbPath := flag.String("db", "data/candles.db", "Path to SQLite candle database")
	symbolsStr := flag.String("symbols", "EURUSDm,USDJPYm,USOILm", "Comma-separated symbols to test")
	tf := flag.String("tf", "M5", "Timeframe code of the stored candles")
	bars := flag.Int("bars", 500, "Bars of history per symbol")
	equity := flag.Float64("equity", 10000, "Account equity for sizing")
	riskFrac := flag.Float64("risk", 0.04, "Equity fraction risked per trade")
	lot := flag.Float64("lot", 0.02, "Fallback fixed volume")
	beRR := flag.Float64("be", 1.0, "Reward multiple that moves the stop to entry (0 disables)")
	synthetic := flag.Bool("synthetic", false, "Seed the database from the paper venue first")
	flag.Parse()

	symbols := splitSymbols(*symbolsStr)
	if len(symbols) == 0 {
		log.Fatal("[backtest] no symbols specified")
	}

	store, err := venue.NewCandleStore(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] candle store open failed: %v", err)
	}
	defer store.Close()

	if *synthetic {
		seedSynthetic(store, symbols, *tf, *bars)
	}

	pipeline := indicator.NewPipeline(indicator.DefaultConfig())
	gen := strategy.NewGenerator()
	sizer := risk.NewSizer(*riskFrac, *lot, 0)

	for _, symbol := range symbols {
		candles, err := store.ReadCandles(symbol, *tf, 0, *bars)
		if err != nil {
			log.Fatalf("[backtest] read %s: %v", symbol, err)
		}
		if len(candles) < 2 {
			log.Printf("[backtest] %s: not enough candles (%d), skipping", symbol, len(candles))
			continue
		}
		runSymbol(symbol, candles, pipeline, gen, sizer, *equity, *beRR)
	}
}

func seedSynthetic(store *venue.CandleStore, symbols []string, tf string, bars int) {
	paper := venue.NewPaperVenue(venue.PaperConfig{Symbols: symbols, Seed: 42})
	for _, s := range symbols {
		candles, err := paper.FetchCandles(context.Background(), s, tf, bars)
		if err != nil {
			log.Fatalf("[backtest] synthetic candles for %s: %v", s, err)
		}
		if err := store.SaveCandles(tf, candles); err != nil {
			log.Fatalf("[backtest] seed %s: %v", s, err)
		}
	}
	log.Printf("[backtest] seeded %d synthetic bars for %d symbols", bars, len(symbols))
}

type result struct {
	intent  model.TradeIntent
	spec    model.OrderSpec
	outcome string // "win", "loss", "breakeven", "open"
	points  float64
}

func runSymbol(symbol string, candles []model.Candle, pipeline *indicator.Pipeline,
	gen *strategy.Generator, sizer *risk.Sizer, equity, beRR float64) {

	series := model.NewCandleSeries(symbol, candles)
	if err := pipeline.Annotate(series); err != nil {
		log.Fatalf("[backtest] annotate %s: %v", symbol, err)
	}
	intents := gen.Scan(series)

	inst := backtestInstrument(symbol)
	var results []result
	for _, intent := range intents {
		spec, err := sizer.Size(intent, inst, equity)
		if err != nil {
			continue
		}
		r := simulate(intent, spec, candles, beRR)
		results = append(results, r)
	}

	wins, losses, flats, open := 0, 0, 0, 0
	var netPoints float64
	for _, r := range results {
		switch r.outcome {
		case "win":
			wins++
		case "loss":
			losses++
		case "breakeven":
			flats++
		default:
			open++
		}
		netPoints += r.points
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════╗")
	fmt.Printf("║  %-40s║\n", symbol)
	fmt.Println("╠══════════════════════════════════════════╣")
	fmt.Printf("║  Bars:        %-27d║\n", len(candles))
	fmt.Printf("║  Signals:     %-27d║\n", len(results))
	fmt.Printf("║  Wins:        %-27d║\n", wins)
	fmt.Printf("║  Losses:      %-27d║\n", losses)
	fmt.Printf("║  Break-even:  %-27d║\n", flats)
	fmt.Printf("║  Still open:  %-27d║\n", open)
	fmt.Printf("║  Net points:  %-27.1f║\n", netPoints/inst.Point)
	fmt.Println("╚══════════════════════════════════════════╝")
}

// simulate walks the bars after the entry and resolves the trade at its
// stop or target. The stop moves to entry once the excursion reaches
// beRR multiples of the initial risk, mirroring the live policy. The
// stop wins when one bar spans both levels.
func simulate(intent model.TradeIntent, spec model.OrderSpec, candles []model.Candle, beRR float64) result {
	entry := spec.EntryPrice
	stop := spec.StopPrice
	target := spec.TargetPrice
	long := spec.Direction == model.Long

	riskDist := entry - stop
	if !long {
		riskDist = stop - entry
	}
	armed := false

	for i := intent.BarIndex + 1; i < len(candles); i++ {
		bar := candles[i]

		if long {
			if bar.Low <= stop {
				return resolved(intent, spec, stop, entry)
			}
			if bar.High >= target {
				return resolved(intent, spec, target, entry)
			}
			if beRR > 0 && !armed && riskDist > 0 && bar.Close-entry >= beRR*riskDist {
				stop = entry
				armed = true
			}
		} else {
			if bar.High >= stop {
				return resolved(intent, spec, stop, entry)
			}
			if bar.Low <= target {
				return resolved(intent, spec, target, entry)
			}
			if beRR > 0 && !armed && riskDist > 0 && entry-bar.Close >= beRR*riskDist {
				stop = entry
				armed = true
			}
		}
	}
	return result{intent: intent, spec: spec, outcome: "open"}
}

func resolved(intent model.TradeIntent, spec model.OrderSpec, exit, entry float64) result {
	points := exit - entry
	if spec.Direction == model.Short {
		points = -points
	}
	outcome := "loss"
	if points > 0 {
		outcome = "win"
	} else if points == 0 {
		outcome = "breakeven"
	}
	return result{intent: intent, spec: spec, outcome: outcome, points: points}
}

// backtestInstrument supplies sizing metadata when replaying offline,
// matching the paper venue's synthetic catalog.
func backtestInstrument(symbol string) model.Instrument {
	inst := model.Instrument{
		Symbol:          symbol,
		Tradable:        true,
		Point:           0.01,
		TradeStopsLevel: 10,
		ValuePerPoint:   1.0,
		VolumeMin:       0.01,
		VolumeMax:       100,
		VolumeStep:      0.01,
	}
	switch {
	case strings.Contains(symbol, "JPY"):
		inst.Point = 0.001
		inst.ValuePerPoint = 0.01
	case strings.Contains(symbol, "USD") && !strings.Contains(symbol, "OIL"):
		inst.Point = 0.00001
		inst.ValuePerPoint = 0.1
	}
	return inst
}

func splitSymbols(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
