package model

// Instrument describes a tradeable symbol and its venue constraints.
// Supplied by the venue adapter each cycle; read-only to the engine.
type Instrument struct {
	Symbol          string  `json:"symbol"`
	Description     string  `json:"description"`
	Tradable        bool    `json:"tradable"`          // venue visibility/trading flag
	Point           float64 `json:"point"`             // price units per point (e.g. 0.00001)
	TradeStopsLevel float64 `json:"trade_stops_level"` // min stop distance in points
	ValuePerPoint   float64 `json:"value_per_point"`   // account currency per point per 1.0 lot (0 = unknown)
	VolumeMin       float64 `json:"volume_min"`
	VolumeMax       float64 `json:"volume_max"`
	VolumeStep      float64 `json:"volume_step"`
}

// MinStopDistance returns the venue's minimum stop/target distance in
// price units. Orders with stops closer than this are rejected venue-side.
func (i *Instrument) MinStopDistance() float64 {
	return i.TradeStopsLevel * i.Point
}
