package ports

import (
	"context"

	"meanReversionBot/internal/domain"
)

// StateRepository persists the strategy's PositionState so a restart resumes
// with the same memory instead of trading blindly from flat.
type StateRepository interface {
	// LoadState returns the stored state for symbol. found is false when none was saved.
	LoadState(ctx context.Context, symbol string) (state domain.PositionState, mode domain.PolicyMode, found bool, err error)
	// SaveState upserts the state for symbol.
	SaveState(ctx context.Context, symbol string, mode domain.PolicyMode, state domain.PositionState) error
}
