package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, string, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mean-reversion-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, dbPath, cleanup
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_LoadMissingState(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	state, mode, found, err := repo.LoadState(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, mode)
	assert.Equal(t, domain.FlatState(), state)
}

func TestRepository_SaveAndLoadState(t *testing.T) {
	tests := []struct {
		name  string
		mode  domain.PolicyMode
		state domain.PositionState
	}{
		{"flat", domain.PolicyLongShort, domain.FlatState()},
		{"long", domain.PolicyLongShort, domain.OpenState(domain.DirectionLong)},
		{"short", domain.PolicyLongShort, domain.OpenState(domain.DirectionShort)},
		{"single position long", domain.PolicySinglePosition, domain.OpenState(domain.DirectionLong)},
	}

	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, repo.SaveState(ctx, "BTCUSDT", tt.mode, tt.state))

			state, mode, found, err := repo.LoadState(ctx, "BTCUSDT")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, tt.mode, mode)
			assert.Equal(t, tt.state, state)
		})
	}
}

func TestRepository_StateIsPerSymbol(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, "BTCUSDT", domain.PolicyLongShort, domain.OpenState(domain.DirectionShort)))
	require.NoError(t, repo.SaveState(ctx, "ETHUSDT", domain.PolicyLongShort, domain.OpenState(domain.DirectionLong)))

	btc, _, _, err := repo.LoadState(ctx, "BTCUSDT")
	require.NoError(t, err)
	eth, _, _, err := repo.LoadState(ctx, "ETHUSDT")
	require.NoError(t, err)

	assert.Equal(t, domain.DirectionShort, btc.Direction)
	assert.Equal(t, domain.DirectionLong, eth.Direction)
}

func TestRepository_RejectsInconsistentState(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()

	bad := domain.PositionState{Status: domain.StatusOpen, Direction: domain.DirectionNone}
	err := repo.SaveState(context.Background(), "BTCUSDT", domain.PolicyLongShort, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRepository_SurvivesReopen(t *testing.T) {
	repo, dbPath, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, "BTCUSDT", domain.PolicyLongShort, domain.OpenState(domain.DirectionLong)))
	require.NoError(t, repo.Close())

	reopened, err := NewRepository(Config{DBPath: dbPath, Logger: &mockLogger{}})
	require.NoError(t, err)
	defer reopened.Close()

	state, _, found, err := reopened.LoadState(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.OpenState(domain.DirectionLong), state)
}

func TestRepository_DeleteState(t *testing.T) {
	repo, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	assert.ErrorIs(t, repo.DeleteState(ctx, "BTCUSDT"), ports.ErrNotFound)

	require.NoError(t, repo.SaveState(ctx, "BTCUSDT", domain.PolicyLongShort, domain.FlatState()))
	require.NoError(t, repo.DeleteState(ctx, "BTCUSDT"))

	_, _, found, err := repo.LoadState(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, found)
}
