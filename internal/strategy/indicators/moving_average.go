package indicators

import (
	"github.com/shopspring/decimal"
)

// MovingAverage is the simple (arithmetic) moving average of closes.
type MovingAverage struct {
	BaseIndicator
}

// NewMovingAverage creates a new simple moving average indicator instance
func NewMovingAverage(config IndicatorConfig) *MovingAverage {
	return &MovingAverage{BaseIndicator: BaseIndicator{Config: config}}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return "SMA"
}

// Calculate computes the arithmetic mean of the window.
func (m *MovingAverage) Calculate(closes []decimal.Decimal) (decimal.Decimal, error) {
	window, err := m.window(m.Name(), closes)
	if err != nil {
		return decimal.Zero, err
	}
	return mean(window), nil
}

func mean(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Sum(values[0], values[1:]...)
	return total.Div(decimal.NewFromInt(int64(len(values))))
}
