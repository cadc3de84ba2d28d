package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/recipekit/recipekit/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteProgressStore implements engine.ProgressStore using SQLite.
type SQLiteProgressStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteProgressStore creates a new SQLite progress store instance.
func NewSQLiteProgressStore(cfg Config) (*SQLiteProgressStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteProgressStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteProgressStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteProgressStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteProgressStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Get retrieves the progress record for a fingerprint.
func (s *SQLiteProgressStore) Get(ctx context.Context, fingerprint string) (*engine.ProgressRecord, error) {
	query := `
		SELECT fingerprint, current_step, max_step, created_at, modified_at
		FROM progress
		WHERE fingerprint = ?
	`

	rec := &engine.ProgressRecord{}
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&rec.Fingerprint,
		&rec.CurrentStep,
		&rec.MaxStep,
		&rec.CreatedAt,
		&rec.ModifiedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress record: %w", err)
	}

	return rec, nil
}

// Create creates a progress record at step 0 for a fingerprint.
func (s *SQLiteProgressStore) Create(ctx context.Context, fingerprint string, maxStep int) (*engine.ProgressRecord, error) {
	if maxStep <= 0 {
		return nil, fmt.Errorf("max step must be positive, got %d", maxStep)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO progress (fingerprint, current_step, max_step, created_at, modified_at)
		VALUES (?, 0, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, fingerprint, maxStep, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}

	return &engine.ProgressRecord{
		Fingerprint: fingerprint,
		CurrentStep: 0,
		MaxStep:     maxStep,
		CreatedAt:   now,
		ModifiedAt:  now,
	}, nil
}

// Advance persists a new current step for a fingerprint.
func (s *SQLiteProgressStore) Advance(ctx context.Context, fingerprint string, currentStep int) error {
	query := `
		UPDATE progress
		SET current_step = ?, modified_at = ?
		WHERE fingerprint = ?
	`

	result, err := s.db.ExecContext(ctx, query, currentStep, time.Now().UTC(), fingerprint)
	if err != nil {
		return fmt.Errorf("failed to advance progress record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return engine.ErrProgressNotFound
	}

	return nil
}

// Delete removes the progress record for a fingerprint.
func (s *SQLiteProgressStore) Delete(ctx context.Context, fingerprint string) error {
	query := `DELETE FROM progress WHERE fingerprint = ?`

	result, err := s.db.ExecContext(ctx, query, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete progress record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return engine.ErrProgressNotFound
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteProgressStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
