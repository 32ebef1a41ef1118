package backtesting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
)

// DefaultLookback matches the live window of four hourly candles (now-5h to now-1h).
const DefaultLookback = 4

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Symbol       string
	InitialFunds float64 // Quote balance at the start of the replay
	Lookback     int     // Closes preceding each decision candle; 0 selects DefaultLookback
	// CloseAtEnd force-closes a position still open after the last candle.
	CloseAtEnd bool
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	SharpeRatio        float64
	FinalBalance       float64
	ReturnOnInvestment float64
	Decisions          int
	SkippedCycles      int
	FinalState         domain.PositionState
	Trades             []*domain.Trade

	// Exhausted is set when the balance fell to zero or below and the replay
	// stopped at the first entry it could no longer fund.
	Exhausted   bool
	ExhaustedAt time.Time
}

type openPosition struct {
	direction  domain.Direction
	entryPrice decimal.Decimal
	quantity   decimal.Decimal
	entryTime  time.Time
}

// Backtest replays klines through policy. Each candle's close is the decision
// price and the Lookback closes before it form the signal window.
func Backtest(ctx context.Context, policy ports.Policy, klines []*domain.Kline, config BacktestConfig) (*BacktestResult, error) {
	lookback := config.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if len(klines) <= lookback {
		return nil, fmt.Errorf("not enough data points for backtest: have %d, need more than %d: %w",
			len(klines), lookback, domain.ErrInsufficientData)
	}
	if config.InitialFunds <= 0 {
		return nil, fmt.Errorf("initial funds must be positive, got %f", config.InitialFunds)
	}

	result := &BacktestResult{
		FinalBalance: config.InitialFunds,
	}

	balance := decimal.NewFromFloat(config.InitialFunds)
	peakBalance := config.InitialFunds
	state := domain.FlatState()
	var position *openPosition
	var trades []*domain.Trade
	var returns []float64

	closePosition := func(price decimal.Decimal, at time.Time, quantity decimal.Decimal, reason domain.CloseReason) {
		pnl := price.Sub(position.entryPrice).Mul(quantity)
		if position.direction == domain.DirectionShort {
			pnl = pnl.Neg()
		}
		before := balance
		balance = balance.Add(pnl)
		pnlF := pnl.InexactFloat64()

		result.TotalProfit += pnlF
		if pnlF > 0 {
			result.WinningTrades++
			result.AverageWin = (result.AverageWin*float64(result.WinningTrades-1) + pnlF) / float64(result.WinningTrades)
		} else {
			result.LosingTrades++
			result.AverageLoss = (result.AverageLoss*float64(result.LosingTrades-1) + pnlF) / float64(result.LosingTrades)
		}
		if before.Sign() > 0 {
			returns = append(returns, pnl.Div(before).InexactFloat64())
		}

		current := balance.InexactFloat64()
		if current > peakBalance {
			peakBalance = current
		}
		if drawdown := (peakBalance - current) / peakBalance; drawdown > result.MaxDrawdown {
			result.MaxDrawdown = drawdown
		}

		trades = append(trades, &domain.Trade{
			ID:          int64(len(trades) + 1),
			Symbol:      config.Symbol,
			Direction:   position.direction,
			EntryPrice:  position.entryPrice.InexactFloat64(),
			ExitPrice:   price.InexactFloat64(),
			Quantity:    quantity.InexactFloat64(),
			PNL:         pnlF,
			EntryTime:   position.entryTime,
			ExitTime:    at,
			CloseReason: reason,
		})
		position = nil
	}

	for i := lookback; i < len(klines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := klines[i]
		series := domain.SeriesFromKlines(klines[i-lookback : i])

		snap, err := policy.ComputeSignal(series, current.Close)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientData) {
				result.SkippedCycles++
				continue
			}
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}

		intent, next, err := policy.Decide(snap, state)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		result.Decisions++

		if intent.IsEntry() && !balance.IsPositive() {
			result.Exhausted = true
			result.ExhaustedAt = current.OpenTime
			break
		}

		switch {
		case intent.IsEntry():
			qty, err := intent.Sizing.Amount(balance)
			if err != nil {
				return nil, fmt.Errorf("candle %d: %w", i, err)
			}
			position = &openPosition{
				direction:  next.Direction,
				entryPrice: current.Close,
				quantity:   qty,
				entryTime:  current.OpenTime,
			}
			result.TotalTrades++
		case intent.IsExit():
			if position == nil {
				return nil, fmt.Errorf("candle %d: exit without an open position: %w", i, domain.ErrInvalidState)
			}
			qty, err := intent.Sizing.Amount(position.quantity)
			if err != nil {
				return nil, fmt.Errorf("candle %d: %w", i, err)
			}
			closePosition(current.Close, current.OpenTime, qty, intent.Reason)
		}
		state = next
	}

	if position != nil && config.CloseAtEnd {
		last := klines[len(klines)-1]
		closePosition(last.Close, last.OpenTime, position.quantity, domain.CloseReasonEndOfData)
		state = domain.FlatState()
	}

	result.FinalState = state
	result.FinalBalance = balance.InexactFloat64()
	closed := result.WinningTrades + result.LosingTrades
	if closed > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(closed)
	}
	if result.AverageLoss != 0 {
		result.ProfitFactor = result.AverageWin / -result.AverageLoss
	}
	result.ReturnOnInvestment = (result.FinalBalance - config.InitialFunds) / config.InitialFunds
	result.SharpeRatio = calculateSharpeRatio(returns)
	result.Trades = trades

	return result, nil
}

// calculateSharpeRatio calculates the Sharpe ratio for per-trade returns
// (risk-free rate of 0)
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}
