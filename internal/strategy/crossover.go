package strategy

import (
	"meanReversionBot/internal/domain"
)

// CrossoverPolicy is the two-state single-position policy (out, in).
// It buys when the last price crosses above the moving average and sells
// everything when it crosses back below. It never shorts and has no band or
// stop-loss.
type CrossoverPolicy struct {
	base
}

// Mode identifies the policy.
func (p *CrossoverPolicy) Mode() domain.PolicyMode { return domain.PolicySinglePosition }

// Decide flips between out and in on moving-average crossings.
func (p *CrossoverPolicy) Decide(snap domain.SignalSnapshot, state domain.PositionState) (domain.TradeIntent, domain.PositionState, error) {
	if !state.IsConsistent() || state.Direction == domain.DirectionShort {
		return domain.TradeIntent{}, state, &InvalidStateError{Mode: p.Mode(), State: state}
	}

	zone := snap.Classify()
	last := snap.LastPrice

	if state.IsFlat() {
		if last.GreaterThan(snap.MovingAverage) {
			intent, next := p.enter(domain.ActionEnterLong, domain.DirectionLong, snap, zone)
			return intent, next, nil
		}
		intent, next := hold(state, zone)
		return intent, next, nil
	}

	if last.LessThan(snap.MovingAverage) {
		intent, next := p.exit(domain.CloseReasonTrendReversal, zone)
		return intent, next, nil
	}
	intent, next := hold(state, zone)
	return intent, next, nil
}
