package ports

import (
	"github.com/shopspring/decimal"

	"meanReversionBot/internal/domain"
)

// Policy is a position-tracking state machine. Implementations must be pure:
// the caller threads PositionState between calls and Decide never mutates it.
type Policy interface {
	// Mode identifies the policy.
	Mode() domain.PolicyMode

	// ComputeSignal derives the snapshot for this cycle using the policy's stop-loss multiplier.
	ComputeSignal(series domain.PriceSeries, lastPrice decimal.Decimal) (domain.SignalSnapshot, error)

	// Decide applies the transition rules and returns the intent and next state.
	Decide(snapshot domain.SignalSnapshot, state domain.PositionState) (domain.TradeIntent, domain.PositionState, error)
}

// MetricsRecorder receives per-cycle observations. Callers accept a nil recorder.
type MetricsRecorder interface {
	ObserveCycle(result string)
	ObserveSnapshot(snapshot domain.SignalSnapshot)
	ObserveIntent(intent domain.TradeIntent, state domain.PositionState)
}
