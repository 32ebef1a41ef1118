package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"meanReversionBot/internal/adapters/logger"
	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
	"meanReversionBot/internal/strategy"
	"meanReversionBot/internal/strategy/analytics"
	"meanReversionBot/internal/strategy/backtesting"
	"meanReversionBot/internal/strategy/optimization"
	"meanReversionBot/internal/utils"
)

// replayOptions are the flags shared by run and optimize.
type replayOptions struct {
	dataFile     string
	mode         string
	symbol       string
	safety       float64
	lookback     int
	initialFunds float64
	closeAtEnd   bool
	logLevel     string
}

func (o *replayOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.dataFile, "data", "", "Kline CSV produced by fetch_klines")
	cmd.Flags().StringVar(&o.mode, "mode", string(domain.PolicyLongShort), "Policy mode: long-short or single-position")
	cmd.Flags().StringVar(&o.symbol, "symbol", "BTCUSDT", "Symbol recorded on simulated trades")
	cmd.Flags().Float64Var(&o.safety, "safety-fraction", 0.95, "Share of the quote balance committed on entry")
	cmd.Flags().IntVar(&o.lookback, "lookback", backtesting.DefaultLookback, "Closes in each decision window")
	cmd.Flags().Float64Var(&o.initialFunds, "initial-funds", 10000, "Starting quote balance")
	cmd.Flags().BoolVar(&o.closeAtEnd, "close-at-end", false, "Close an open position on the last candle")
	cmd.Flags().StringVar(&o.logLevel, "log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	_ = cmd.MarkFlagRequired("data")
}

func (o *replayOptions) load(cmd *cobra.Command) (ports.Logger, domain.PolicyMode, []*domain.Kline, error) {
	log := logger.NewStdLoggerTo(cmd.ErrOrStderr(), logger.ParseLevel(o.logLevel))

	mode, err := strategy.ParseMode(o.mode)
	if err != nil {
		return nil, "", nil, err
	}

	klines, err := utils.ReadKlinesFromCSV(o.dataFile)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to read klines: %w", err)
	}
	log.Info(cmd.Context(), "Loaded klines", map[string]interface{}{
		"file":  o.dataFile,
		"count": len(klines),
	})
	return log, mode, klines, nil
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "backtest_runner",
		Short: "Replay historical candles through the mean-reversion policies",
		Long: `backtest_runner replays a kline CSV through a position policy, one decision per candle,
and reports the simulated trades. The optimize subcommand sweeps the stop-loss multiplier and
lookback length.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newOptimizeCmd())

	return rootCmd
}

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	opts := &replayOptions{}
	var stopLoss float64
	var tradesOut string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest one parameter set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, mode, klines, err := opts.load(cmd)
			if err != nil {
				return err
			}

			policy, err := strategy.New(strategy.Config{
				Mode:               mode,
				StopLossMultiplier: decimal.NewNullDecimal(decimal.NewFromFloat(stopLoss)),
				SafetyFraction:     decimal.NewFromFloat(opts.safety),
			})
			if err != nil {
				return fmt.Errorf("failed to create policy: %w", err)
			}

			result, err := backtesting.Backtest(cmd.Context(), policy, klines, backtesting.BacktestConfig{
				Symbol:       opts.symbol,
				InitialFunds: opts.initialFunds,
				Lookback:     opts.lookback,
				CloseAtEnd:   opts.closeAtEnd,
			})
			if err != nil {
				return fmt.Errorf("backtest failed: %w", err)
			}

			metrics := analytics.AnalyzePerformance(result.Trades, opts.initialFunds)
			printResult(cmd.OutOrStdout(), mode, result, metrics)

			if tradesOut != "" {
				if err := utils.WriteTradesToCSV(result.Trades, tradesOut); err != nil {
					return fmt.Errorf("failed to write trades: %w", err)
				}
				log.Info(cmd.Context(), "Trades saved", map[string]interface{}{"filename": tradesOut})
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&stopLoss, "stop-loss-multiplier", 2, "Stop-loss distance in standard deviations")
	cmd.Flags().StringVar(&tradesOut, "trades-out", "", "Write simulated trades to this CSV")

	return cmd
}

// newOptimizeCmd creates the optimize command
func newOptimizeCmd() *cobra.Command {
	opts := &replayOptions{}
	var (
		slMin, slMax, slStep       float64
		lookMin, lookMax, lookStep int
		concurrency, top           int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Sweep stop-loss multiplier and lookback length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, mode, klines, err := opts.load(cmd)
			if err != nil {
				return err
			}

			ranges := []optimization.ParameterRange{
				{Name: optimization.ParamStopLossMultiplier, Min: slMin, Max: slMax, Step: slStep},
				{Name: optimization.ParamSafetyFraction, Min: opts.safety, Max: opts.safety},
			}
			if lookMax > 0 {
				ranges = append(ranges, optimization.ParameterRange{
					Name: optimization.ParamLookback, Min: float64(lookMin), Max: float64(lookMax), Step: float64(lookStep), IsInt: true,
				})
			}

			optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
				ParameterRanges: ranges,
				Mode:            mode,
				InitialFunds:    opts.initialFunds,
				Symbol:          opts.symbol,
				Lookback:        opts.lookback,
				CloseAtEnd:      opts.closeAtEnd,
				Concurrency:     concurrency,
			})

			results, err := optimizer.Optimize(cmd.Context(), klines)
			if err != nil {
				return fmt.Errorf("optimization failed: %w", err)
			}
			log.Info(cmd.Context(), "Optimization finished", map[string]interface{}{"combinations": len(results)})

			printRanking(cmd.OutOrStdout(), results, top, opts.lookback)
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().Float64Var(&slMin, "sl-min", 1, "Smallest stop-loss multiplier")
	cmd.Flags().Float64Var(&slMax, "sl-max", 3, "Largest stop-loss multiplier")
	cmd.Flags().Float64Var(&slStep, "sl-step", 0.5, "Stop-loss multiplier step")
	cmd.Flags().IntVar(&lookMin, "lookback-min", 2, "Smallest lookback length")
	cmd.Flags().IntVar(&lookMax, "lookback-max", 0, "Largest lookback length; 0 keeps --lookback fixed")
	cmd.Flags().IntVar(&lookStep, "lookback-step", 1, "Lookback length step")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel backtests; 0 uses every CPU")
	cmd.Flags().IntVar(&top, "top", 5, "Number of results to print")

	return cmd
}

func printResult(w io.Writer, mode domain.PolicyMode, r *backtesting.BacktestResult, m *analytics.PerformanceMetrics) {
	fmt.Fprintf(w, "Policy:          %s\n", mode)
	fmt.Fprintf(w, "Decisions:       %d (skipped %d)\n", r.Decisions, r.SkippedCycles)
	fmt.Fprintf(w, "Trades:          %d (long %d, short %d)\n", m.TotalTrades,
		tradesIn(m.ByDirection, domain.DirectionLong), tradesIn(m.ByDirection, domain.DirectionShort))
	fmt.Fprintf(w, "Win rate:        %.2f%%\n", m.WinRate*100)
	fmt.Fprintf(w, "Total PnL:       %.2f\n", m.TotalProfit)
	fmt.Fprintf(w, "Expectancy:      %.2f\n", m.Expectancy)
	fmt.Fprintf(w, "Profit factor:   %.3f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Final balance:   %.2f\n", r.FinalBalance)
	fmt.Fprintf(w, "ROI:             %.2f%%\n", r.ReturnOnInvestment*100)
	fmt.Fprintf(w, "Max drawdown:    %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe:          %.3f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Final state:     %s\n", r.FinalState)
	if r.Exhausted {
		fmt.Fprintf(w, "Stopped:         balance exhausted at %s\n", r.ExhaustedAt.Format(time.RFC3339))
	}

	if len(m.ByReason) == 0 {
		return
	}
	reasons := make([]string, 0, len(m.ByReason))
	for reason := range m.ByReason {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	fmt.Fprintf(w, "%-16s %-7s %-6s %-12s %-12s %s\n", "Exit reason", "trades", "wins", "pnl", "avg pnl", "avg hold")
	for _, reason := range reasons {
		b := m.ByReason[domain.CloseReason(reason)]
		fmt.Fprintf(w, "%-16s %-7d %-6d %-12.2f %-12.2f %s\n",
			reason, b.Trades, b.Wins, b.PNL, b.AveragePNL(), b.AverageHolding())
	}
}

func tradesIn(m map[domain.Direction]*analytics.Breakdown, dir domain.Direction) int {
	if b, ok := m[dir]; ok {
		return b.Trades
	}
	return 0
}

func printRanking(w io.Writer, results []optimization.OptimizationResult, top, lookback int) {
	if top <= 0 || top > len(results) {
		top = len(results)
	}
	fmt.Fprintf(w, "%-4s %-8s %-8s %-8s %-10s %-8s\n", "#", "score", "sl", "lookback", "pnl", "trades")
	for i, r := range results[:top] {
		n, ok := r.Parameters[optimization.ParamLookback]
		if !ok {
			n = float64(lookback)
		}
		note := ""
		if r.Exhausted {
			note = "balance exhausted"
		}
		fmt.Fprintf(w, "%-4d %-8.3f %-8.2f %-8.0f %-10.2f %-8d %s\n",
			i+1, r.Score, r.Parameters[optimization.ParamStopLossMultiplier], n,
			r.Metrics.TotalProfit, r.Metrics.TotalTrades, note)
	}
}
