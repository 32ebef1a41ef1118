package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SizingBasis names the balance a sizing hint is computed from.
type SizingBasis string

const (
	SizingNone SizingBasis = ""
	// SizingFromQuote spends a fraction of the quote-asset balance at ReferencePrice.
	SizingFromQuote SizingBasis = "quote_balance"
	// SizingFromBase moves a fraction of the held base-asset balance.
	SizingFromBase SizingBasis = "base_balance"
)

// SizingHint tells the execution side how to size an order once it knows the balance.
type SizingHint struct {
	Basis          SizingBasis
	Fraction       decimal.Decimal
	ReferencePrice decimal.Decimal
}

// SizingError is returned when a hint cannot produce a finite, non-negative amount.
type SizingError struct {
	Basis  SizingBasis
	Reason string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sizing from %s: %s", e.Basis, e.Reason)
}

func (e *SizingError) Unwrap() error { return ErrSizing }

// Amount resolves the hint into a base-asset order quantity.
func (h SizingHint) Amount(balance decimal.Decimal) (decimal.Decimal, error) {
	if balance.IsNegative() {
		return decimal.Zero, &SizingError{Basis: h.Basis, Reason: fmt.Sprintf("negative balance %s", balance)}
	}
	if h.Fraction.IsNegative() {
		return decimal.Zero, &SizingError{Basis: h.Basis, Reason: fmt.Sprintf("negative fraction %s", h.Fraction)}
	}
	switch h.Basis {
	case SizingFromQuote:
		if h.ReferencePrice.Sign() <= 0 {
			return decimal.Zero, &SizingError{Basis: h.Basis, Reason: fmt.Sprintf("reference price %s is not positive", h.ReferencePrice)}
		}
		return balance.Mul(h.Fraction).Div(h.ReferencePrice), nil
	case SizingFromBase:
		return balance.Mul(h.Fraction), nil
	default:
		return decimal.Zero, &SizingError{Basis: h.Basis, Reason: "no sizing basis"}
	}
}

// TradeIntent is the policy output for one cycle.
type TradeIntent struct {
	Action Action
	Reason CloseReason // Set on exits
	Sizing SizingHint
	Zone   BandZone
}

// IsEntry reports whether the intent opens a position.
func (t TradeIntent) IsEntry() bool {
	return t.Action == ActionEnterLong || t.Action == ActionEnterShort
}

// IsExit reports whether the intent closes a position.
func (t TradeIntent) IsExit() bool {
	return t.Action == ActionExit
}

// Side is the order side that realises the intent for a position in dir.
// It returns false for ActionNone.
func (t TradeIntent) Side(dir Direction) (OrderSide, bool) {
	switch t.Action {
	case ActionEnterLong:
		return Buy, true
	case ActionEnterShort:
		return Sell, true
	case ActionExit:
		if dir == DirectionShort {
			return Buy, true
		}
		return Sell, true
	default:
		return "", false
	}
}
