package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/domain"
)

// RankingsMirror keeps a realtime copy of each game's rankings in a
// Redis sorted set. It is fed best-effort after accepted submissions
// and rebuilt from the document store by the sync worker; the HTTP
// rankings path never reads it.
type RankingsMirror struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRankingsMirror creates a new rankings mirror
func NewRankingsMirror(cfg *config.RedisConfig, logger *slog.Logger) (*RankingsMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankingsMirror{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (m *RankingsMirror) Close() error {
	return m.client.Close()
}

// rankingsKey returns the Redis key for a game's sorted set
func (m *RankingsMirror) rankingsKey(gameID string) string {
	return fmt.Sprintf("rankings:%s:realtime", gameID)
}

// SetScore records a player's score for a game
func (m *RankingsMirror) SetScore(ctx context.Context, gameID, playerID string, score int64) error {
	key := m.rankingsKey(gameID)
	err := m.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(score),
		Member: playerID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting score: %w", err)
	}
	return nil
}

// TopN returns the top N players for a game (descending order)
func (m *RankingsMirror) TopN(ctx context.Context, gameID string, n int) ([]domain.LiveRank, error) {
	key := m.rankingsKey(gameID)
	results, err := m.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.LiveRank, len(results))
	for i, result := range results {
		entries[i] = domain.LiveRank{
			Rank:     int64(i + 1),
			PlayerID: result.Member.(string),
			Score:    int64(result.Score),
		}
	}
	return entries, nil
}

// Count returns the number of players mirrored for a game
func (m *RankingsMirror) Count(ctx context.Context, gameID string) (int64, error) {
	key := m.rankingsKey(gameID)
	count, err := m.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// BatchSetScores sets multiple scores for a game using pipelining
func (m *RankingsMirror) BatchSetScores(ctx context.Context, gameID string, scores map[string]int64) error {
	key := m.rankingsKey(gameID)
	pipe := m.client.Pipeline()

	for playerID, score := range scores {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(score),
			Member: playerID,
		})
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("batch setting scores: %w", err)
	}
	return nil
}
