package strategy

import (
	"meanReversionBot/internal/domain"
)

// BandPolicy is the three-state mean-reversion policy (Flat, LongOpen, ShortOpen).
//
// From Flat it fades moves beyond one position band: above the upper band it
// goes short, below the lower band it goes long. An open position is closed
// when price reverts through the moving average (take-profit) or runs past the
// stop-loss level on the losing side. Only one phase runs per call, chosen by
// the current status, so a call yields at most one intent.
type BandPolicy struct {
	base
}

// Mode identifies the policy.
func (p *BandPolicy) Mode() domain.PolicyMode { return domain.PolicyLongShort }

// Decide applies the band rules to state.
func (p *BandPolicy) Decide(snap domain.SignalSnapshot, state domain.PositionState) (domain.TradeIntent, domain.PositionState, error) {
	if !state.IsConsistent() {
		return domain.TradeIntent{}, state, &InvalidStateError{Mode: p.Mode(), State: state}
	}

	zone := snap.Classify()
	last := snap.LastPrice
	var (
		intent domain.TradeIntent
		next   domain.PositionState
	)

	switch state.Direction {
	case domain.DirectionNone:
		switch {
		case last.GreaterThan(snap.UpperBand()):
			intent, next = p.enter(domain.ActionEnterShort, domain.DirectionShort, snap, zone)
		case last.LessThan(snap.LowerBand()):
			intent, next = p.enter(domain.ActionEnterLong, domain.DirectionLong, snap, zone)
		default:
			intent, next = hold(state, zone)
		}

	case domain.DirectionShort:
		// Take-profit is checked first; with a non-negative band the two
		// conditions are disjoint, and either way only one exit is emitted.
		switch {
		case last.LessThan(snap.MovingAverage):
			intent, next = p.exit(domain.CloseReasonTakeProfit, zone)
		case last.GreaterThan(snap.UpperStop()):
			intent, next = p.exit(domain.CloseReasonStopLoss, zone)
		default:
			intent, next = hold(state, zone)
		}

	case domain.DirectionLong:
		switch {
		case last.GreaterThan(snap.MovingAverage):
			intent, next = p.exit(domain.CloseReasonTakeProfit, zone)
		case last.LessThan(snap.LowerStop()):
			intent, next = p.exit(domain.CloseReasonStopLoss, zone)
		default:
			intent, next = hold(state, zone)
		}
	}

	return intent, next, nil
}
