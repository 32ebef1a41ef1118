package optimization

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/strategy/analytics"
)

func oscillatingKlines(n int) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pattern := []float64{100, 101, 99, 100, 104, 100, 96, 100}
	klines := make([]*domain.Kline, n)
	for i := range klines {
		open := start.Add(time.Duration(i) * time.Hour)
		klines[i] = &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour - time.Millisecond),
			Close:     decimal.NewFromFloat(pattern[i%len(pattern)]),
		}
	}
	return klines
}

func TestOptimizer(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: ParamStopLossMultiplier, Min: 1, Max: 3, Step: 1},
			{Name: ParamLookback, Min: 3, Max: 5, Step: 1, IsInt: true},
		},
		Mode:         domain.PolicyLongShort,
		InitialFunds: 1000,
		Symbol:       "BTCUSDT",
		CloseAtEnd:   true,
		Concurrency:  2,
	})

	results, err := opt.Optimize(context.Background(), oscillatingKlines(64))
	require.NoError(t, err)
	require.Len(t, results, 9)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results must be sorted by descending score")
	}
	for _, r := range results {
		assert.Contains(t, r.Parameters, ParamStopLossMultiplier)
		assert.Contains(t, r.Parameters, ParamLookback)
		require.NotNil(t, r.Metrics)
	}
}

func TestOptimizerSkipsRejectedCombinations(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: ParamSafetyFraction, Min: 0.5, Max: 1.5, Step: 0.5},
		},
		InitialFunds: 1000,
	})

	results, err := opt.Optimize(context.Background(), oscillatingKlines(32))
	require.NoError(t, err)
	require.Len(t, results, 2, "a safety fraction of 1.5 is rejected by the policy")
}

func TestOptimizerKeepsExhaustedCombinations(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{10, 10, 10, 10, 12, 40, 1, 1}
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		open := start.Add(time.Duration(i) * time.Hour)
		klines[i] = &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Hour - time.Millisecond),
			Close:     decimal.NewFromFloat(c),
		}
	}

	opt := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: ParamStopLossMultiplier, Min: 2, Max: 2, Step: 1}},
		InitialFunds:    1000,
	})

	results, err := opt.Optimize(context.Background(), klines)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Exhausted)
	assert.Less(t, results[0].Metrics.TotalProfit, -1000.0)
}

func TestOptimizerCanceled(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: ParamStopLossMultiplier, Min: 1, Max: 2, Step: 1}},
		InitialFunds:    1000,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := opt.Optimize(ctx, oscillatingKlines(32))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateParameterCombinations(t *testing.T) {
	opt := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "a", Min: 0.1, Max: 0.3, Step: 0.1},
			{Name: "b", Min: 2, Max: 2, Step: 0},
		},
	})

	combinations := opt.generateParameterCombinations()
	require.Len(t, combinations, 3)
	assert.InDelta(t, 0.3, combinations[2]["a"], 1e-9)
	for _, c := range combinations {
		assert.Equal(t, 2.0, c["b"])
	}
}

func TestDefaultScoreFunction(t *testing.T) {
	metrics := &analytics.PerformanceMetrics{
		WinRate:            0.6,
		ProfitFactor:       1.5,
		MaxDrawdown:        0.1,
		ReturnOnInvestment: 0.2,
		PayoffRatio:        2.0,
	}

	assert.InDelta(t, 0.18+0.3+0.18+0.04+0.2, DefaultScoreFunction(metrics), 1e-9)
}

func TestSortResultsByScore(t *testing.T) {
	results := []OptimizationResult{{Score: 1}, {Score: 3}, {Score: 2}}
	sortResultsByScore(results)
	assert.Equal(t, []float64{3, 2, 1}, []float64{results[0].Score, results[1].Score, results[2].Score})
}
