package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.StateRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/strategy_state.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Single writer; SQLite serialises anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS strategy_state (
		symbol     TEXT PRIMARY KEY,
		mode       TEXT NOT NULL,
		status     TEXT NOT NULL,
		direction  TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// LoadState returns the persisted state for symbol. A missing row is reported
// through found=false, not as an error.
func (r *Repository) LoadState(ctx context.Context, symbol string) (domain.PositionState, domain.PolicyMode, bool, error) {
	const query = `
	SELECT mode, status, direction
	FROM strategy_state
	WHERE symbol = ?`

	var mode, status, direction string
	err := r.db.QueryRowContext(ctx, query, symbol).Scan(&mode, &status, &direction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No persisted strategy state", map[string]interface{}{"symbol": symbol})
			return domain.FlatState(), "", false, nil
		}
		return domain.PositionState{}, "", false, fmt.Errorf("failed to load state for symbol %s: %w: %w", symbol, ports.ErrQueryFailed, err)
	}

	state := domain.PositionState{
		Status:    domain.PositionStatus(status),
		Direction: domain.Direction(direction),
	}
	return state, domain.PolicyMode(mode), true, nil
}

// SaveState upserts the state for symbol.
func (r *Repository) SaveState(ctx context.Context, symbol string, mode domain.PolicyMode, state domain.PositionState) error {
	const query = `
	INSERT INTO strategy_state (symbol, mode, status, direction, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(symbol) DO UPDATE SET
		mode = excluded.mode,
		status = excluded.status,
		direction = excluded.direction,
		updated_at = excluded.updated_at`

	if !state.IsConsistent() {
		return fmt.Errorf("refusing to persist state %s for symbol %s: %w", state, symbol, domain.ErrInvalidState)
	}

	_, err := r.db.ExecContext(ctx, query, symbol, string(mode), string(state.Status), string(state.Direction), r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save state for symbol %s: %w: %w", symbol, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Strategy state saved", map[string]interface{}{
		"symbol": symbol, "mode": mode, "status": state.Status, "direction": state.Direction,
	})
	return nil
}

// DeleteState removes the persisted state for symbol, returning ports.ErrNotFound
// when nothing was stored.
func (r *Repository) DeleteState(ctx context.Context, symbol string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM strategy_state WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete state for symbol %s: %w: %w", symbol, ports.ErrUpdateFailed, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for delete of %s: %w", symbol, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("state for symbol %s not found: %w", symbol, ports.ErrNotFound)
	}
	return nil
}
