package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/domain"
)

// Store provides document store access for score records. Records are
// keyed by a composite id and partitioned by gameId; point reads
// always filter on both.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewStore connects to the document store and ensures the indexes the
// query paths rely on.
func NewStore(ctx context.Context, cfg *config.MongoConfig, logger *slog.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "gameId", Value: 1}, {Key: "score", Value: -1}},
			Options: options.Index().SetName("game_score_desc"),
		},
		{
			Keys:    bson.D{{Key: "playerId", Value: 1}},
			Options: options.Index().SetName("player_lookup"),
		},
	}
	if _, err := coll.Indexes().CreateMany(connectCtx, indexes); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	logger.Info("connected to document store",
		"database", cfg.Database,
		"collection", cfg.Collection,
	)

	return &Store{
		client: client,
		coll:   coll,
		logger: logger,
	}, nil
}

// Close disconnects from the document store
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// GetScore performs a point read of a record by id within a game
// partition. Returns domain.ErrRecordNotFound when no record exists.
func (s *Store) GetScore(ctx context.Context, id, gameID string) (*domain.ScoreRecord, error) {
	var record domain.ScoreRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": id, "gameId": gameID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("reading score record: %w", err)
	}
	return &record, nil
}

// UpsertScore inserts or fully replaces a record keyed by id within
// its game partition.
func (s *Store) UpsertScore(ctx context.Context, record *domain.ScoreRecord) error {
	filter := bson.M{"_id": record.ID, "gameId": record.GameID}
	_, err := s.coll.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting score record: %w", err)
	}
	return nil
}

// QueryByGame returns records for a game ordered by score descending.
// Tie order is whatever the store yields for equal scores. A limit of
// zero or less returns all records.
func (s *Store) QueryByGame(ctx context.Context, gameID string, limit int64) ([]domain.ScoreRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "score", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.coll.Find(ctx, bson.M{"gameId": gameID}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying game scores: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.ScoreRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding game scores: %w", err)
	}
	return records, nil
}

// QueryByPlayer returns all of a player's records across games, in
// store order.
func (s *Store) QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"playerId": playerID})
	if err != nil {
		return nil, fmt.Errorf("querying player scores: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.ScoreRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding player scores: %w", err)
	}
	return records, nil
}

// DistinctGames returns the game ids that have at least one record.
func (s *Store) DistinctGames(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "gameId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}

	games := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			games = append(games, id)
		}
	}
	return games, nil
}
