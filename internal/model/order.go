package model

import "time"

// Direction is the side of a trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// TradeIntent is a raw signal produced by the generator before risk
// processing. Stop and target are the strategy's naive levels; the sizer
// may move them to satisfy venue constraints. One intent per triggered
// condition; intents on the same bar are independent, never merged.
type TradeIntent struct {
	Symbol         string    `json:"symbol"`
	Direction      Direction `json:"direction"`
	ReferencePrice float64   `json:"reference_price"` // close of the triggering bar
	RawStop        float64   `json:"raw_stop"`
	RawTarget      float64   `json:"raw_target"`
	Rationale      string    `json:"rationale"`
	BarIndex       int       `json:"bar_index"` // index within the scanned series
}

// OrderSpec is the terminal artifact the engine hands to the venue
// adapter. Invariant: |entry−stop| and |entry−target| are both at least
// the instrument's minimum stop distance.
type OrderSpec struct {
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopPrice   float64   `json:"stop_price"`
	TargetPrice float64   `json:"target_price"`
	Volume      float64   `json:"volume"`
	Rationale   string    `json:"rationale"` // carried as the order comment
	Magic       int64     `json:"magic"`     // identifies orders placed by this engine
}

// StopAdjustment moves the protective stop of an open position,
// emitted by the lifecycle policy for break-even management. The
// position is identified by the venue order ID; entry price is carried
// for venues and journals that want it.
type StopAdjustment struct {
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	NewStop    float64   `json:"new_stop"`
	Reason     string    `json:"reason"`
}

// OrderResult is the venue's response to a submission. FillPrice is the
// actual entry after slippage; 0 means the venue echoed the requested
// price.
type OrderResult struct {
	Accepted  bool    `json:"accepted"`
	OrderID   string  `json:"order_id"`
	FillPrice float64 `json:"fill_price"`
	Reason    string  `json:"reason"` // venue comment on rejection
}

// ClosedPosition is a venue-reported close/fill event consumed by the
// lifecycle policy to free a trade slot. OrderID ties the event back to
// the submission that opened the position.
type ClosedPosition struct {
	OrderID    string    `json:"order_id"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ClosedAt   time.Time `json:"closed_at"`
}
