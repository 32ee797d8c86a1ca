package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/domain"
)

// AuditLog is an append-only sink for accepted score submissions. It
// exists for operational diagnosis only; the service never reads it.
type AuditLog struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLog creates a new audit sink backed by PostgreSQL
func NewAuditLog(cfg *config.PostgresConfig, logger *slog.Logger) (*AuditLog, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &AuditLog{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (a *AuditLog) Close() {
	a.pool.Close()
}

// RunMigrations executes database migrations
func (a *AuditLog) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS score_events (
			id BIGSERIAL PRIMARY KEY,
			game_id VARCHAR(64) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			player_name VARCHAR(255) NOT NULL,
			score BIGINT NOT NULL,
			previous_score BIGINT NOT NULL,
			is_new_record BOOLEAN NOT NULL,
			submitted_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_score_events_game ON score_events(game_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := a.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	a.logger.Info("audit sink migrations completed")
	return nil
}

// RecordSubmission appends an accepted submission to the audit log
func (a *AuditLog) RecordSubmission(ctx context.Context, event domain.SubmissionEvent) error {
	query := `
		INSERT INTO score_events (game_id, player_id, player_name, score, previous_score, is_new_record, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := a.pool.Exec(ctx, query,
		event.GameID,
		event.PlayerID,
		event.PlayerName,
		event.Score,
		event.PreviousScore,
		event.IsNewRecord,
		time.UnixMilli(event.Timestamp).UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording submission: %w", err)
	}
	return nil
}
