package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
	"meanReversionBot/internal/strategy"
	"meanReversionBot/internal/strategy/analytics"
	"meanReversionBot/internal/strategy/backtesting"
)

// Parameter names understood by the optimizer.
const (
	ParamStopLossMultiplier = "stop_loss_multiplier"
	ParamLookback           = "lookback"
	ParamSafetyFraction     = "safety_fraction"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
	Exhausted  bool // The replay stopped early on an empty balance
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Mode            domain.PolicyMode
	InitialFunds    float64
	Symbol          string
	Lookback        int  // Used when no lookback range is swept
	CloseAtEnd      bool // Passed through to every backtest
	Concurrency     int  // 0 selects GOMAXPROCS
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
}

// Optimizer sweeps policy parameters over a fixed kline history.
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Concurrency <= 0 {
		config.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Optimizer{
		config: config,
	}
}

// Optimize backtests every parameter combination and returns the results
// sorted by descending score. Combinations the policy rejects are skipped.
func (o *Optimizer) Optimize(ctx context.Context, klines []*domain.Kline) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	slots := make([]*OptimizationResult, len(combinations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)

	for i, params := range combinations {
		g.Go(func() error {
			policy, lookback, err := o.policyFor(params)
			if err != nil {
				return nil
			}

			result, err := backtesting.Backtest(gctx, policy, klines, backtesting.BacktestConfig{
				Symbol:       o.config.Symbol,
				InitialFunds: o.config.InitialFunds,
				Lookback:     lookback,
				CloseAtEnd:   o.config.CloseAtEnd,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}

			metrics := analytics.AnalyzePerformance(result.Trades, o.config.InitialFunds)
			slots[i] = &OptimizationResult{
				Parameters: params,
				Metrics:    metrics,
				Score:      o.config.ScoreFunction(metrics),
				Exhausted:  result.Exhausted,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("optimization aborted: %w", err)
	}

	results := make([]OptimizationResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sortResultsByScore(results)

	return results, nil
}

// policyFor builds the policy and lookback for one combination.
func (o *Optimizer) policyFor(params map[string]float64) (ports.Policy, int, error) {
	cfg := strategy.Config{Mode: o.config.Mode}
	if v, ok := params[ParamStopLossMultiplier]; ok {
		cfg.StopLossMultiplier = decimal.NewNullDecimal(decimal.NewFromFloat(v))
	}
	if v, ok := params[ParamSafetyFraction]; ok {
		cfg.SafetyFraction = decimal.NewFromFloat(v)
	}
	lookback := o.config.Lookback
	if v, ok := params[ParamLookback]; ok {
		lookback = int(math.Round(v))
		if lookback < 1 {
			return nil, 0, fmt.Errorf("lookback must be at least 1, got %d", lookback)
		}
	}

	policy, err := strategy.New(cfg)
	if err != nil {
		return nil, 0, err
	}
	return policy, lookback, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	var currentCombination map[string]float64

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		if param.Step <= 0 {
			currentCombination[param.Name] = param.Min
			generate(paramIndex + 1)
			return
		}
		for n := 0; ; n++ {
			// Stepping by index avoids accumulating float error.
			value := param.Min + float64(n)*param.Step
			if value > param.Max+param.Step/2 {
				break
			}
			if param.IsInt {
				value = math.Round(value)
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	currentCombination = make(map[string]float64)
	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	score := 0.0

	score += metrics.WinRate * 0.3
	score += metrics.ProfitFactor * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.PayoffRatio * 0.1

	return score
}
