package model

import (
	"context"
	"errors"
)

// ── Venue Port Interfaces ──
// These interfaces decouple the decision engine from the concrete venue
// binding (live bridge, paper venue). Each implementation satisfies one
// or more of these interfaces.

// Sentinel errors matching the engine's failure taxonomy. None of these
// is fatal: the scheduler skips the instrument (or drops the intent) and
// the cycle continues.
var (
	// ErrDataUnavailable: candle fetch returned nothing for this cycle.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInstrumentUnavailable: venue metadata missing for the symbol.
	ErrInstrumentUnavailable = errors.New("instrument unavailable")

	// ErrNotTradable: the venue reports the symbol as not currently
	// tradable (market closed, symbol hidden). Expected, not exceptional.
	ErrNotTradable = errors.New("instrument not tradable")

	// ErrSizingFailure: an intent could not be turned into an order
	// (unresolvable stop distance, degenerate risk). The intent is dropped.
	ErrSizingFailure = errors.New("order sizing failed")
)

// MarketData supplies candle windows and symbol metadata.
type MarketData interface {
	// FetchCandles returns up to count most-recent candles for the symbol
	// on the given timeframe, oldest first. Returns ErrDataUnavailable
	// when the venue has nothing for this symbol.
	FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error)

	// InstrumentInfo returns the symbol's venue constraints.
	// Returns ErrInstrumentUnavailable when the symbol is unknown.
	InstrumentInfo(ctx context.Context, symbol string) (Instrument, error)
}

// OrderGateway submits and manages orders at the venue.
type OrderGateway interface {
	// SubmitOrder places an order. A venue-side rejection is reported in
	// the result, not as an error; errors mean the call itself failed.
	SubmitOrder(ctx context.Context, spec OrderSpec) (OrderResult, error)

	// ModifyStop moves the protective stop of an open position.
	ModifyStop(ctx context.Context, adj StopAdjustment) error
}

// AccountData exposes account state used for risk-fraction sizing.
type AccountData interface {
	// Equity returns current account equity in the account currency.
	Equity(ctx context.Context) (float64, error)
}

// PositionEvents reports venue-side position closes since the last call,
// feeding the lifecycle policy's open-trade table.
type PositionEvents interface {
	ClosedPositions(ctx context.Context, symbol string) ([]ClosedPosition, error)
}
