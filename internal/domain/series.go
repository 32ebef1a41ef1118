package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a close price observed at a point in time.
type PricePoint struct {
	Time  time.Time
	Close decimal.Decimal
}

// PriceSeries is a chronologically ordered lookback window of close prices.
type PriceSeries []PricePoint

// SeriesFromKlines builds a series from candle closes, keyed by candle close time.
func SeriesFromKlines(klines []*Kline) PriceSeries {
	series := make(PriceSeries, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		series = append(series, PricePoint{Time: k.CloseTime, Close: k.Close})
	}
	return series
}

// SeriesFromCloses builds an untimed series, mostly useful for tests and replays.
func SeriesFromCloses(closes ...decimal.Decimal) PriceSeries {
	series := make(PriceSeries, len(closes))
	for i, c := range closes {
		series[i] = PricePoint{Close: c}
	}
	return series
}

// Closes returns the close prices in order.
func (s PriceSeries) Closes() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// IsChronological reports whether timestamps never go backwards.
// Zero timestamps are ignored.
func (s PriceSeries) IsChronological() bool {
	var prev time.Time
	for _, p := range s {
		if p.Time.IsZero() {
			continue
		}
		if !prev.IsZero() && p.Time.Before(prev) {
			return false
		}
		prev = p.Time
	}
	return true
}
