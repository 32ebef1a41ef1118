package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"
)

// Config holds parameters shared by every policy.
type Config struct {
	Mode               domain.PolicyMode
	StopLossMultiplier decimal.NullDecimal // Unset selects DefaultStopLossMultiplier; zero puts the stop on the mean
	SafetyFraction     decimal.Decimal     // Zero selects DefaultSafetyFraction
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = domain.PolicyLongShort
	}
	if !c.StopLossMultiplier.Valid {
		c.StopLossMultiplier = decimal.NewNullDecimal(DefaultStopLossMultiplier)
	}
	if c.SafetyFraction.IsZero() {
		c.SafetyFraction = DefaultSafetyFraction
	}
	return c
}

func (c Config) validate() error {
	if c.StopLossMultiplier.Decimal.IsNegative() {
		return fmt.Errorf("stop loss multiplier must not be negative, got %s", c.StopLossMultiplier.Decimal)
	}
	if c.SafetyFraction.Sign() <= 0 || c.SafetyFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("safety fraction must be in (0, 1], got %s", c.SafetyFraction)
	}
	return nil
}

// New returns the policy selected by cfg.Mode.
func New(cfg Config) (ports.Policy, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case domain.PolicyLongShort:
		return &BandPolicy{base: base{cfg: cfg}}, nil
	case domain.PolicySinglePosition:
		return &CrossoverPolicy{base: base{cfg: cfg}}, nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q", cfg.Mode)
	}
}

// ParseMode converts a configuration string into a PolicyMode.
func ParseMode(s string) (domain.PolicyMode, error) {
	switch domain.PolicyMode(s) {
	case domain.PolicyLongShort, domain.PolicySinglePosition:
		return domain.PolicyMode(s), nil
	default:
		return "", fmt.Errorf("unknown policy mode %q (want %q or %q)", s, domain.PolicyLongShort, domain.PolicySinglePosition)
	}
}

// base carries what both policies share.
type base struct {
	cfg Config
}

// Config returns the effective configuration.
func (b *base) Config() Config {
	return b.cfg
}

// ComputeSignal computes the snapshot with the configured stop-loss multiplier.
func (b *base) ComputeSignal(series domain.PriceSeries, lastPrice decimal.Decimal) (domain.SignalSnapshot, error) {
	return ComputeSignal(series, lastPrice, b.cfg.StopLossMultiplier.Decimal)
}

func (b *base) enter(action domain.Action, dir domain.Direction, snap domain.SignalSnapshot, zone domain.BandZone) (domain.TradeIntent, domain.PositionState) {
	return domain.TradeIntent{
		Action: action,
		Zone:   zone,
		Sizing: domain.SizingHint{
			Basis:          domain.SizingFromQuote,
			Fraction:       b.cfg.SafetyFraction,
			ReferencePrice: snap.LastPrice,
		},
	}, domain.OpenState(dir)
}

func (b *base) exit(reason domain.CloseReason, zone domain.BandZone) (domain.TradeIntent, domain.PositionState) {
	return domain.TradeIntent{
		Action: domain.ActionExit,
		Reason: reason,
		Zone:   zone,
		Sizing: domain.SizingHint{
			Basis:    domain.SizingFromBase,
			Fraction: decimal.NewFromInt(1),
		},
	}, domain.FlatState()
}

func hold(state domain.PositionState, zone domain.BandZone) (domain.TradeIntent, domain.PositionState) {
	return domain.TradeIntent{Action: domain.ActionNone, Zone: zone}, state
}
