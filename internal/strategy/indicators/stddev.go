package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

// sqrtIterations bounds the Newton refinement; the float seed is already
// accurate to ~15 digits so a handful of steps reach decimal precision.
const sqrtIterations = 10

var two = decimal.NewFromInt(2)

// StdDev is the population standard deviation (divisor N) of closes.
type StdDev struct {
	BaseIndicator
}

// NewStdDev creates a population standard deviation indicator.
func NewStdDev(config IndicatorConfig) *StdDev {
	return &StdDev{BaseIndicator: BaseIndicator{Config: config}}
}

// Name returns the name of the indicator
func (s *StdDev) Name() string {
	return "STDDEV"
}

// Calculate returns sqrt(Variance).
func (s *StdDev) Calculate(closes []decimal.Decimal) (decimal.Decimal, error) {
	variance, err := s.Variance(closes)
	if err != nil {
		return decimal.Zero, err
	}
	return Sqrt(variance), nil
}

// Variance returns the mean of squared deviations from the window mean.
func (s *StdDev) Variance(closes []decimal.Decimal) (decimal.Decimal, error) {
	window, err := s.window(s.Name(), closes)
	if err != nil {
		return decimal.Zero, err
	}
	avg := mean(window)
	squares := make([]decimal.Decimal, len(window))
	for i, c := range window {
		dev := c.Sub(avg)
		squares[i] = dev.Mul(dev)
	}
	return mean(squares), nil
}

// Sqrt returns the square root of a non-negative decimal; zero for v <= 0.
func Sqrt(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	x := decimal.NewFromFloat(math.Sqrt(v.InexactFloat64()))
	if x.Sign() <= 0 {
		x = v
	}
	for i := 0; i < sqrtIterations; i++ {
		next := x.Add(v.Div(x)).Div(two)
		if next.Equal(x) {
			break
		}
		x = next
	}
	return x
}
