package domain

import "time"

// Trade is a completed simulated round trip produced by backtests.
type Trade struct {
	ID          int64
	Symbol      string
	Direction   Direction
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64
	PNL         float64
	EntryTime   time.Time
	ExitTime    time.Time
	CloseReason CloseReason
}
