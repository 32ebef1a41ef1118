package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/strategy/indicators"
)

var (
	// DefaultStopLossMultiplier places the stop two position bands from the mean.
	DefaultStopLossMultiplier = decimal.NewFromInt(2)
	// DefaultSafetyFraction leaves headroom for fees and slippage on entries.
	DefaultSafetyFraction = decimal.RequireFromString("0.95")
)

// ComputeSignal derives the band statistics for one cycle. It is a pure
// function of its inputs and performs no rounding.
// A zero stopLossMultiplier puts the stop-loss level on the mean.
func ComputeSignal(series domain.PriceSeries, lastPrice, stopLossMultiplier decimal.Decimal) (domain.SignalSnapshot, error) {
	if len(series) == 0 {
		return domain.SignalSnapshot{}, &InsufficientDataError{Have: 0, Need: 1}
	}
	if !series.IsChronological() {
		return domain.SignalSnapshot{}, fmt.Errorf("price series is not chronologically ordered: %w", domain.ErrInsufficientData)
	}
	if stopLossMultiplier.IsNegative() {
		return domain.SignalSnapshot{}, fmt.Errorf("stop loss multiplier must not be negative, got %s", stopLossMultiplier)
	}

	closes := series.Closes()
	movingAverage, err := indicators.NewMovingAverage(indicators.IndicatorConfig{}).Calculate(closes)
	if err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("moving average: %w", err)
	}
	sd := indicators.NewStdDev(indicators.IndicatorConfig{})
	variance, err := sd.Variance(closes)
	if err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("variance: %w", err)
	}
	stdDev := indicators.Sqrt(variance)

	return domain.SignalSnapshot{
		MovingAverage:     movingAverage,
		Variance:          variance,
		StandardDeviation: stdDev,
		PositionBand:      stdDev,
		StopLossLevel:     stopLossMultiplier.Mul(stdDev),
		LastPrice:         lastPrice,
		SampleSize:        len(closes),
	}, nil
}
