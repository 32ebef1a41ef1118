package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meanReversionBot/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantMode domain.PolicyMode
		wantErr  bool
	}{
		{
			name:     "defaults to long-short",
			cfg:      Config{},
			wantMode: domain.PolicyLongShort,
		},
		{
			name:     "single position",
			cfg:      Config{Mode: domain.PolicySinglePosition},
			wantMode: domain.PolicySinglePosition,
		},
		{
			name:    "unknown mode",
			cfg:     Config{Mode: "martingale"},
			wantErr: true,
		},
		{
			name:    "negative multiplier",
			cfg:     Config{StopLossMultiplier: decimal.NewNullDecimal(decimal.NewFromInt(-1))},
			wantErr: true,
		},
		{
			name:    "safety fraction above one",
			cfg:     Config{SafetyFraction: decimal.RequireFromString("1.2")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, p.Mode())
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	p, err := New(Config{Mode: domain.PolicyLongShort})
	require.NoError(t, err)

	band, ok := p.(*BandPolicy)
	require.True(t, ok)
	cfg := band.Config()
	assert.True(t, cfg.StopLossMultiplier.Valid)
	assert.True(t, cfg.StopLossMultiplier.Decimal.Equal(DefaultStopLossMultiplier))
	assert.True(t, cfg.SafetyFraction.Equal(DefaultSafetyFraction))
}

func TestPolicy_ComputeSignalUsesMultiplier(t *testing.T) {
	p, err := New(Config{StopLossMultiplier: decimal.NewNullDecimal(decimal.NewFromInt(3))})
	require.NoError(t, err)

	snap, err := p.ComputeSignal(seriesOf(8, 9, 10, 11, 12), dec(10))
	require.NoError(t, err)
	assert.InDelta(t, 4.24264069, snap.StopLossLevel.InexactFloat64(), 1e-8)
}

func TestNew_ExplicitZeroMultiplier(t *testing.T) {
	p, err := New(Config{Mode: domain.PolicyLongShort, StopLossMultiplier: decimal.NewNullDecimal(decimal.Zero)})
	require.NoError(t, err)

	snap, err := p.ComputeSignal(seriesOf(8, 9, 10, 11, 12), dec(11))
	require.NoError(t, err)
	assert.True(t, snap.StopLossLevel.IsZero())

	// Any loss past the mean stops a short out.
	intent, next, err := p.Decide(snap, domain.OpenState(domain.DirectionShort))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionExit, intent.Action)
	assert.Equal(t, domain.CloseReasonStopLoss, intent.Reason)
	assert.Equal(t, domain.FlatState(), next)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("single-position")
	require.NoError(t, err)
	assert.Equal(t, domain.PolicySinglePosition, mode)

	mode, err = ParseMode("long-short")
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyLongShort, mode)

	_, err = ParseMode("both")
	assert.Error(t, err)
}
