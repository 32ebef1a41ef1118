package analytics

import (
	"sort"
	"time"

	"meanReversionBot/internal/domain"
)

// PerformanceMetrics summarises the closed trades of a replay.
type PerformanceMetrics struct {
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	FinalBalance       float64
	ReturnOnInvestment float64
	MaxDrawdown        float64 // Deepest fall from a realised balance peak, as a fraction of that peak

	AverageWin   float64
	AverageLoss  float64 // Negative or zero
	ProfitFactor float64 // Gross profit / gross loss; 0 without losing trades
	PayoffRatio  float64 // AverageWin / |AverageLoss|; 0 without losing trades
	Expectancy   float64 // Mean PnL per trade

	// ByReason splits trades by what closed them: reverting through the mean
	// (TP), running past the stop (SL), a crossover exit or the end of data.
	ByReason    map[domain.CloseReason]*Breakdown
	ByDirection map[domain.Direction]*Breakdown
}

// Breakdown aggregates one slice of the trades.
type Breakdown struct {
	Trades  int
	Wins    int
	PNL     float64
	Holding time.Duration // Summed entry-to-exit time
}

// AveragePNL returns the mean PnL of the slice.
func (b *Breakdown) AveragePNL() float64 {
	if b.Trades == 0 {
		return 0
	}
	return b.PNL / float64(b.Trades)
}

// AverageHolding returns the mean time a position in the slice stayed open.
func (b *Breakdown) AverageHolding() time.Duration {
	if b.Trades == 0 {
		return 0
	}
	return b.Holding / time.Duration(b.Trades)
}

func (b *Breakdown) add(t *domain.Trade) {
	b.Trades++
	if t.PNL > 0 {
		b.Wins++
	}
	b.PNL += t.PNL
	b.Holding += t.ExitTime.Sub(t.EntryTime)
}

// AnalyzePerformance calculates performance metrics from closed trades.
// Balance is realised in exit order; the input slice is not reordered.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance: initialBalance,
		ByReason:     make(map[domain.CloseReason]*Breakdown),
		ByDirection:  make(map[domain.Direction]*Breakdown),
	}
	if len(trades) == 0 {
		return metrics
	}

	trades = append([]*domain.Trade(nil), trades...)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})

	balance, peak := initialBalance, initialBalance
	var grossProfit, grossLoss float64

	for _, t := range trades {
		metrics.TotalTrades++
		breakdownFor(metrics.ByReason, t.CloseReason).add(t)
		breakdownFor(metrics.ByDirection, t.Direction).add(t)

		if t.PNL > 0 {
			metrics.WinningTrades++
			grossProfit += t.PNL
		} else {
			metrics.LosingTrades++
			grossLoss -= t.PNL
		}

		balance += t.PNL
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak; dd > metrics.MaxDrawdown {
				metrics.MaxDrawdown = dd
			}
		}
	}

	n := float64(metrics.TotalTrades)
	metrics.TotalProfit = grossProfit - grossLoss
	metrics.FinalBalance = balance
	metrics.WinRate = float64(metrics.WinningTrades) / n
	metrics.Expectancy = metrics.TotalProfit / n
	if initialBalance != 0 {
		metrics.ReturnOnInvestment = metrics.TotalProfit / initialBalance
	}
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossProfit / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = -grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss > 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
		metrics.PayoffRatio = metrics.AverageWin / -metrics.AverageLoss
	}

	return metrics
}

func breakdownFor[K comparable](m map[K]*Breakdown, key K) *Breakdown {
	b, ok := m[key]
	if !ok {
		b = &Breakdown{}
		m[key] = b
	}
	return b
}
