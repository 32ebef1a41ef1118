package strategy

import (
	"fmt"

	"meanReversionBot/internal/domain"
)

// InsufficientDataError means the cycle cannot be evaluated; callers skip it.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient price data: have %d closes, need %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return domain.ErrInsufficientData }

// InvalidStateError means the caller handed Decide a corrupted PositionState.
// It indicates a bug in the caller and the strategy should halt.
type InvalidStateError struct {
	Mode  domain.PolicyMode
	State domain.PositionState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s policy: inconsistent position state status=%q direction=%q", e.Mode, e.State.Status, e.State.Direction)
}

func (e *InvalidStateError) Unwrap() error { return domain.ErrInvalidState }
