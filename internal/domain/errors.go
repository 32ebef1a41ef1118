package domain

import "errors"

// Strategy core errors. They are pure computation failures and never wrap I/O.
var (
	ErrInsufficientData = errors.New("insufficient price data")
	ErrInvalidState     = errors.New("invalid position state")
	ErrSizing           = errors.New("cannot compute order size")
)
