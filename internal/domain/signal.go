package domain

import "github.com/shopspring/decimal"

// SignalSnapshot holds the band statistics computed for one decision cycle.
// It is created once per cycle and never mutated afterwards.
type SignalSnapshot struct {
	MovingAverage     decimal.Decimal
	Variance          decimal.Decimal
	StandardDeviation decimal.Decimal
	PositionBand      decimal.Decimal // One standard deviation; entry threshold
	StopLossLevel     decimal.Decimal // Multiplier x PositionBand
	LastPrice         decimal.Decimal
	SampleSize        int
}

// UpperBand is MovingAverage + PositionBand.
func (s SignalSnapshot) UpperBand() decimal.Decimal {
	return s.MovingAverage.Add(s.PositionBand)
}

// LowerBand is MovingAverage - PositionBand.
func (s SignalSnapshot) LowerBand() decimal.Decimal {
	return s.MovingAverage.Sub(s.PositionBand)
}

// UpperStop is MovingAverage + StopLossLevel.
func (s SignalSnapshot) UpperStop() decimal.Decimal {
	return s.MovingAverage.Add(s.StopLossLevel)
}

// LowerStop is MovingAverage - StopLossLevel.
func (s SignalSnapshot) LowerStop() decimal.Decimal {
	return s.MovingAverage.Sub(s.StopLossLevel)
}

// BandZone classifies the last price against the bands.
type BandZone string

const (
	ZoneAboveStop BandZone = "above_stop"
	ZoneAboveBand BandZone = "above_band"
	ZoneAboveMean BandZone = "above_mean"
	ZoneAtMean    BandZone = "at_mean"
	ZoneBelowMean BandZone = "below_mean"
	ZoneBelowBand BandZone = "below_band"
	ZoneBelowStop BandZone = "below_stop"
)

// Classify places LastPrice into a zone. Comparisons are strict, so a price
// sitting exactly on a boundary belongs to the zone closer to the mean.
// A breached stop wins over the band, also when the stop sits inside the band.
func (s SignalSnapshot) Classify() BandZone {
	p := s.LastPrice
	switch {
	case p.GreaterThan(s.UpperStop()):
		return ZoneAboveStop
	case p.GreaterThan(s.UpperBand()):
		return ZoneAboveBand
	case p.GreaterThan(s.MovingAverage):
		return ZoneAboveMean
	case p.LessThan(s.LowerStop()):
		return ZoneBelowStop
	case p.LessThan(s.LowerBand()):
		return ZoneBelowBand
	case p.LessThan(s.MovingAverage):
		return ZoneBelowMean
	default:
		return ZoneAtMean
	}
}
