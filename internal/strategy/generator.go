// Package strategy scans an annotated candle series and produces trade
// intents. Each trigger condition is independent and non-exclusive: a
// single bar can yield several intents, and they are never merged or
// deduplicated; downstream risk and lifecycle stages decide what gets
// dispatched.
package strategy

import "breakout-botv1/internal/model"

// Rationale strings carried on intents and through to the venue as the
// order comment.
const (
	ReasonInsideBarBreakout    = "Inside Bar Breakout"
	ReasonOpeningRangeBreakout = "Opening Range Breakout"
)

// rewardRiskMultiple fixes the naive target at 2:1 reward-to-risk
// measured off the prior bar's extreme.
const rewardRiskMultiple = 2.0

// Generator turns derived indicator columns into raw trade intents.
// It is stateless; all inputs arrive in the series.
type Generator struct{}

// NewGenerator creates a signal generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Scan evaluates every index from 1 to N-1 (index 0 has no prior bar)
// and returns one TradeIntent per triggered condition:
//
//   - inside-bar breakout: LONG when the bar is an inside bar and its
//     close exceeds the prior bar's high. Only the long side is
//     evaluated; the short mirror is deliberately absent.
//   - ORB long: LONG when the bar's high exceeds the opening-range high.
//   - ORB short: SHORT when the bar's low undercuts the opening-range low.
//
// Stops sit at the prior bar's extreme; targets at twice the stop
// distance from the close. The series must be annotated.
func (g *Generator) Scan(series *model.CandleSeries) []model.TradeIntent {
	if !series.Annotated() {
		return nil
	}

	var intents []model.TradeIntent
	for i := 1; i < series.Len(); i++ {
		cur := series.Candles[i]
		prev := series.Candles[i-1]
		d := series.Derived[i]

		if d.InsideBar && cur.Close > prev.High {
			intents = append(intents, longIntent(series.Symbol, i, cur.Close, prev.Low, ReasonInsideBarBreakout))
		}
		if d.ORBLong {
			intents = append(intents, longIntent(series.Symbol, i, cur.Close, prev.Low, ReasonOpeningRangeBreakout))
		}
		if d.ORBShort {
			intents = append(intents, shortIntent(series.Symbol, i, cur.Close, prev.High, ReasonOpeningRangeBreakout))
		}
	}
	return intents
}

func longIntent(symbol string, i int, close, stop float64, rationale string) model.TradeIntent {
	return model.TradeIntent{
		Symbol:         symbol,
		Direction:      model.Long,
		ReferencePrice: close,
		RawStop:        stop,
		RawTarget:      close + (close-stop)*rewardRiskMultiple,
		Rationale:      rationale,
		BarIndex:       i,
	}
}

func shortIntent(symbol string, i int, close, stop float64, rationale string) model.TradeIntent {
	return model.TradeIntent{
		Symbol:         symbol,
		Direction:      model.Short,
		ReferencePrice: close,
		RawStop:        stop,
		RawTarget:      close - (stop-close)*rewardRiskMultiple,
		Rationale:      rationale,
		BarIndex:       i,
	}
}
