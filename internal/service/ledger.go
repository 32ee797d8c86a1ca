package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/domain"
	"github.com/score-ledger/internal/postgres"
	"github.com/score-ledger/internal/redis"
	"github.com/score-ledger/internal/websocket"
)

// ScoreStore is the document store contract the ledger depends on.
// Point reads must return domain.ErrRecordNotFound when no record
// exists, distinguishable from other store failures.
type ScoreStore interface {
	GetScore(ctx context.Context, id, gameID string) (*domain.ScoreRecord, error)
	UpsertScore(ctx context.Context, record *domain.ScoreRecord) error
	QueryByGame(ctx context.Context, gameID string, limit int64) ([]domain.ScoreRecord, error)
	QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error)
}

// ScoreLedger owns all reads and writes of score records. The rankings
// mirror and audit sink are optional; when present they are fed
// best-effort and never fail a request.
type ScoreLedger struct {
	store  ScoreStore
	mirror *redis.RankingsMirror
	audit  *postgres.AuditLog
	hub    *websocket.Hub
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewScoreLedger creates a new score ledger service
func NewScoreLedger(store ScoreStore, cfg *config.LeaderboardConfig, logger *slog.Logger) *ScoreLedger {
	return &ScoreLedger{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// SetMirror attaches the realtime rankings mirror
func (s *ScoreLedger) SetMirror(mirror *redis.RankingsMirror) {
	s.mirror = mirror
}

// SetAudit attaches the submission audit sink
func (s *ScoreLedger) SetAudit(audit *postgres.AuditLog) {
	s.audit = audit
}

// SetHub attaches the WebSocket hub for broadcasting
func (s *ScoreLedger) SetHub(hub *websocket.Hub) {
	s.hub = hub
}

// SubmitScore records a submission, keeping only the highest score per
// (player, game) pair. The read-then-upsert below is deliberately not
// transactional: two concurrent improving submissions race and the
// later upsert wins.
func (s *ScoreLedger) SubmitScore(ctx context.Context, sub domain.ScoreSubmission) (*domain.SubmitResult, error) {
	if sub.PlayerID == "" || sub.GameID == "" || sub.Score == nil || sub.PlayerName == "" {
		return nil, domain.ErrMissingFields
	}

	score := *sub.Score
	if score < domain.MinScore || score > domain.MaxScore {
		return nil, domain.ErrScoreOutOfRange
	}

	id := domain.RecordID(sub.PlayerID, sub.GameID)

	previousScore := int64(0)
	isNewRecord := true

	existing, err := s.store.GetScore(ctx, id, sub.GameID)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading existing score: %w", err)
	}
	if existing != nil {
		previousScore = existing.Score
		isNewRecord = false

		if score <= previousScore {
			return &domain.SubmitResult{
				Updated:        false,
				Message:        "Previous score was higher - no update made",
				CurrentScore:   previousScore,
				AttemptedScore: score,
			}, nil
		}
	}

	now := time.Now()
	record := &domain.ScoreRecord{
		ID:          id,
		PlayerID:    sub.PlayerID,
		GameID:      sub.GameID,
		Score:       score,
		PlayerName:  sub.PlayerName,
		Timestamp:   now.UnixMilli(),
		SubmittedAt: now.UTC().Format(time.RFC3339),
	}

	if err := s.store.UpsertScore(ctx, record); err != nil {
		return nil, fmt.Errorf("upserting score: %w", err)
	}

	s.afterAccepted(ctx, record, previousScore, isNewRecord)

	message := "New personal best!"
	if isNewRecord {
		message = "New score recorded!"
	}

	return &domain.SubmitResult{
		Updated:       true,
		Message:       message,
		Score:         score,
		PreviousScore: previousScore,
		Improvement:   score - previousScore,
		IsNewRecord:   isNewRecord,
		Timestamp:     record.Timestamp,
	}, nil
}

// afterAccepted feeds the optional subsystems once a record is
// durably written. Failures are logged and do not affect the request.
func (s *ScoreLedger) afterAccepted(ctx context.Context, record *domain.ScoreRecord, previousScore int64, isNewRecord bool) {
	if s.mirror != nil {
		if err := s.mirror.SetScore(ctx, record.GameID, record.PlayerID, record.Score); err != nil {
			s.logger.Warn("failed to update rankings mirror", "error", err)
		}
	}

	if s.audit != nil {
		event := domain.SubmissionEvent{
			GameID:        record.GameID,
			PlayerID:      record.PlayerID,
			PlayerName:    record.PlayerName,
			Score:         record.Score,
			PreviousScore: previousScore,
			IsNewRecord:   isNewRecord,
			Timestamp:     record.Timestamp,
		}
		if err := s.audit.RecordSubmission(ctx, event); err != nil {
			s.logger.Warn("failed to record submission event", "error", err)
		}
	}

	if s.hub != nil && s.mirror != nil {
		entries, err := s.mirror.TopN(ctx, record.GameID, s.config.DefaultLimit)
		if err != nil {
			s.logger.Warn("failed to read rankings mirror for broadcast", "error", err)
			return
		}
		count, err := s.mirror.Count(ctx, record.GameID)
		if err != nil {
			count = int64(len(entries))
		}
		s.hub.BroadcastRankingsUpdate(record.GameID, entries, count)
	}
}

// GetRankings returns a game's leaderboard ordered by score
// descending, ranks assigned from the sorted position. Ties keep the
// store's order.
func (s *ScoreLedger) GetRankings(ctx context.Context, gameID string, limit int) (*domain.Rankings, error) {
	if gameID == "" {
		gameID = s.config.DefaultGameID
	}
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}

	records, err := s.store.QueryByGame(ctx, gameID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("querying rankings: %w", err)
	}

	entries := make([]domain.RankingEntry, len(records))
	for i, record := range records {
		name := record.PlayerName
		if name == "" {
			name = "Anonymous"
		}
		entries[i] = domain.RankingEntry{
			Rank:        i + 1,
			PlayerID:    record.PlayerID,
			PlayerName:  name,
			Score:       record.Score,
			Timestamp:   record.Timestamp,
			SubmittedAt: record.SubmittedAt,
		}
	}

	return &domain.Rankings{
		GameID:       gameID,
		TotalPlayers: len(entries),
		Entries:      entries,
	}, nil
}

// GetPlayerStats aggregates a player's records across all games.
// averageScore rounds half away from zero. playerName comes from the
// first fetched record, which is not necessarily the most recent.
func (s *ScoreLedger) GetPlayerStats(ctx context.Context, playerID string) (*domain.PlayerStats, error) {
	if playerID == "" {
		return nil, domain.ErrPlayerIDRequired
	}

	records, err := s.store.QueryByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("querying player scores: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrPlayerNotFound
	}

	var totalScore int64
	bestScore := records[0].Score
	worstScore := records[0].Score
	for _, record := range records {
		totalScore += record.Score
		if record.Score > bestScore {
			bestScore = record.Score
		}
		if record.Score < worstScore {
			worstScore = record.Score
		}
	}

	history := make([]domain.GameResult, len(records))
	for i, record := range records {
		history[i] = domain.GameResult{
			GameID:      record.GameID,
			Score:       record.Score,
			Timestamp:   record.Timestamp,
			SubmittedAt: record.SubmittedAt,
		}
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp > history[j].Timestamp
	})

	return &domain.PlayerStats{
		PlayerID:   playerID,
		PlayerName: records[0].PlayerName,
		Stats: domain.StatSummary{
			TotalGames:   len(records),
			TotalScore:   totalScore,
			AverageScore: int64(math.Round(float64(totalScore) / float64(len(records)))),
			BestScore:    bestScore,
			WorstScore:   worstScore,
		},
		GameHistory: history,
	}, nil
}
