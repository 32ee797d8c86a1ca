package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/domain"
)

// RecordSource is the slice of the document store the sync worker
// reads from.
type RecordSource interface {
	DistinctGames(ctx context.Context) ([]string, error)
	QueryByGame(ctx context.Context, gameID string, limit int64) ([]domain.ScoreRecord, error)
}

// ScoreMirror is the slice of the rankings mirror the worker writes.
type ScoreMirror interface {
	BatchSetScores(ctx context.Context, gameID string, scores map[string]int64) error
}

// MirrorSync periodically rebuilds the Redis rankings mirror from the
// document store, which is the system of record. It repairs drift from
// missed best-effort mirror writes and seeds the mirror on startup.
type MirrorSync struct {
	source  RecordSource
	mirror  ScoreMirror
	config  *config.MirrorConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewMirrorSync creates a new mirror sync worker
func NewMirrorSync(
	source RecordSource,
	mirror ScoreMirror,
	cfg *config.MirrorConfig,
	logger *slog.Logger,
) *MirrorSync {
	return &MirrorSync{
		source: source,
		mirror: mirror,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *MirrorSync) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("mirror sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *MirrorSync) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("mirror sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *MirrorSync) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.syncAll(ctx)
		}
	}
}

// syncAll rebuilds the mirror for every game with records
func (w *MirrorSync) syncAll(ctx context.Context) {
	w.logger.Info("starting mirror sync cycle")
	startTime := time.Now()

	games, err := w.source.DistinctGames(ctx)
	if err != nil {
		w.logger.Error("failed to list games for sync", "error", err)
		return
	}

	syncedCount := 0
	errorCount := 0

	for _, gameID := range games {
		if err := w.SyncGame(ctx, gameID); err != nil {
			w.logger.Error("failed to sync game rankings",
				"game_id", gameID,
				"error", err,
			)
			errorCount++
		} else {
			syncedCount++
		}
	}

	duration := time.Since(startTime)
	w.logger.Info("mirror sync cycle completed",
		"duration", duration,
		"synced", syncedCount,
		"errors", errorCount,
	)
}

// SyncGame rebuilds the mirror for a single game from the store
func (w *MirrorSync) SyncGame(ctx context.Context, gameID string) error {
	w.logger.Debug("syncing game rankings to mirror", "game_id", gameID)

	records, err := w.source.QueryByGame(ctx, gameID, 0)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		w.logger.Debug("no scores to sync", "game_id", gameID)
		return nil
	}

	scores := make(map[string]int64, len(records))
	for _, record := range records {
		scores[record.PlayerID] = record.Score
	}

	if err := w.mirror.BatchSetScores(ctx, gameID, scores); err != nil {
		return err
	}

	w.logger.Debug("synced game rankings to mirror",
		"game_id", gameID,
		"player_count", len(records),
	)

	return nil
}

// SeedFromStore rebuilds the mirror for all games, used on startup
func (w *MirrorSync) SeedFromStore(ctx context.Context) error {
	w.logger.Info("seeding rankings mirror from document store")

	games, err := w.source.DistinctGames(ctx)
	if err != nil {
		return err
	}

	for _, gameID := range games {
		if err := w.SyncGame(ctx, gameID); err != nil {
			w.logger.Error("failed to seed game rankings",
				"game_id", gameID,
				"error", err,
			)
			// Continue with other games
		}
	}

	w.logger.Info("completed seeding rankings mirror", "games", len(games))
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *MirrorSync) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sync cycle (useful for manual triggers)
func (w *MirrorSync) RunOnce(ctx context.Context) {
	w.syncAll(ctx)
}
