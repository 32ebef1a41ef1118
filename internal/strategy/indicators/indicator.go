package indicators

import (
	"fmt"

	"github.com/shopspring/decimal"

	"meanReversionBot/internal/domain"
)

// Indicator represents a technical indicator computed from close prices.
type Indicator interface {
	// Calculate computes the indicator value for the given closes (oldest first).
	Calculate(closes []decimal.Decimal) (decimal.Decimal, error)

	// RequiredDataPoints returns the minimum number of closes needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators.
// A zero Period means the indicator spans every close it is given.
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of closes needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	if b.Config.Period <= 0 {
		return 1
	}
	return b.Config.Period
}

// window returns the trailing closes the indicator operates on.
func (b *BaseIndicator) window(name string, closes []decimal.Decimal) ([]decimal.Decimal, error) {
	need := b.RequiredDataPoints()
	if len(closes) < need {
		return nil, fmt.Errorf("%s needs %d closes, got %d: %w", name, need, len(closes), domain.ErrInsufficientData)
	}
	if b.Config.Period <= 0 {
		return closes, nil
	}
	return closes[len(closes)-b.Config.Period:], nil
}
