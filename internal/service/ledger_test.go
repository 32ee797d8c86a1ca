package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/score-ledger/internal/config"
	"github.com/score-ledger/internal/domain"
	"github.com/score-ledger/internal/storetest"
)

func newTestLedger() (*ScoreLedger, *storetest.Memory) {
	store := storetest.NewMemory()
	cfg := &config.LeaderboardConfig{
		DefaultGameID: "game001",
		DefaultLimit:  100,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScoreLedger(store, cfg, logger), store
}

func scoreOf(v int64) *int64 {
	return &v
}

func submission(playerID, gameID string, score int64, name string) domain.ScoreSubmission {
	return domain.ScoreSubmission{
		PlayerID:   playerID,
		GameID:     gameID,
		Score:      scoreOf(score),
		PlayerName: name,
	}
}

func TestSubmitScoreFirstSubmission(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	result, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if !result.Updated {
		t.Fatal("expected an accepted submission")
	}
	if !result.IsNewRecord {
		t.Fatal("expected isNewRecord for a first submission")
	}
	if result.Score != 500 || result.PreviousScore != 0 || result.Improvement != 500 {
		t.Fatalf("result=%+v, want score 500 previous 0 improvement 500", result)
	}
	if result.Message != "New score recorded!" {
		t.Fatalf("message=%q, want first-submission message", result.Message)
	}
	if result.Timestamp == 0 {
		t.Fatal("expected a nonzero timestamp")
	}

	record, ok := store.Get("p1_g1")
	if !ok {
		t.Fatal("record not stored")
	}
	if record.PlayerID != "p1" || record.GameID != "g1" || record.Score != 500 || record.PlayerName != "Ann" {
		t.Fatalf("stored record=%+v", record)
	}
	if _, err := time.Parse(time.RFC3339, record.SubmittedAt); err != nil {
		t.Fatalf("submittedAt %q not RFC3339: %v", record.SubmittedAt, err)
	}
}

func TestSubmitScoreZeroIsValid(t *testing.T) {
	ledger, _ := newTestLedger()

	result, err := ledger.SubmitScore(context.Background(), submission("p1", "g1", 0, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if !result.Updated || result.Score != 0 {
		t.Fatalf("result=%+v, want accepted score 0", result)
	}
}

func TestSubmitScoreMissingFields(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	subs := []domain.ScoreSubmission{
		{GameID: "g1", Score: scoreOf(1), PlayerName: "Ann"},
		{PlayerID: "p1", Score: scoreOf(1), PlayerName: "Ann"},
		{PlayerID: "p1", GameID: "g1", PlayerName: "Ann"},
		{PlayerID: "p1", GameID: "g1", Score: scoreOf(1)},
	}
	for i, sub := range subs {
		if _, err := ledger.SubmitScore(ctx, sub); !errors.Is(err, domain.ErrMissingFields) {
			t.Fatalf("case %d: err=%v, want ErrMissingFields", i, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("store has %d records, want 0", store.Len())
	}
}

func TestSubmitScoreOutOfRange(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	for _, score := range []int64{-1, 1000000} {
		if _, err := ledger.SubmitScore(ctx, submission("p1", "g1", score, "Ann")); !errors.Is(err, domain.ErrScoreOutOfRange) {
			t.Fatalf("score %d: err=%v, want ErrScoreOutOfRange", score, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("store has %d records, want 0", store.Len())
	}

	if _, err := ledger.SubmitScore(ctx, submission("p1", "g1", 999999, "Ann")); err != nil {
		t.Fatalf("SubmitScore at upper bound error: %v", err)
	}
}

func TestSubmitScoreLowerLeavesRecordUnchanged(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann")); err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	before, _ := store.Get("p1_g1")

	result, err := ledger.SubmitScore(ctx, submission("p1", "g1", 300, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if result.Updated {
		t.Fatal("expected no update for a lower score")
	}
	if result.CurrentScore != 500 || result.AttemptedScore != 300 {
		t.Fatalf("result=%+v, want currentScore 500 attemptedScore 300", result)
	}
	if result.Message != "Previous score was higher - no update made" {
		t.Fatalf("message=%q", result.Message)
	}

	after, _ := store.Get("p1_g1")
	if after != before {
		t.Fatalf("record changed: before=%+v after=%+v", before, after)
	}
}

func TestSubmitScoreEqualScoreNoUpdate(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann")); err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	before, _ := store.Get("p1_g1")

	result, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if result.Updated {
		t.Fatal("expected no update for an equal score")
	}

	after, _ := store.Get("p1_g1")
	if after != before {
		t.Fatalf("record changed: before=%+v after=%+v", before, after)
	}
}

func TestSubmitScoreHigherReplacesRecord(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann")); err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}

	result, err := ledger.SubmitScore(ctx, submission("p1", "g1", 700, "Annie"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if !result.Updated || result.IsNewRecord {
		t.Fatalf("result=%+v, want accepted non-new submission", result)
	}
	if result.PreviousScore != 500 || result.Improvement != 200 {
		t.Fatalf("result=%+v, want previous 500 improvement 200", result)
	}
	if result.Message != "New personal best!" {
		t.Fatalf("message=%q", result.Message)
	}

	record, _ := store.Get("p1_g1")
	if record.Score != 700 || record.PlayerName != "Annie" {
		t.Fatalf("stored record=%+v, want score 700 name Annie", record)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d records, want 1 (upsert replaces)", store.Len())
	}
}

func TestSubmitScoreStoreErrorPropagates(t *testing.T) {
	ledger, store := newTestLedger()
	store.FailWith = errors.New("store unavailable")

	_, err := ledger.SubmitScore(context.Background(), submission("p1", "g1", 500, "Ann"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if domain.IsValidationError(err) || domain.IsNotFoundError(err) {
		t.Fatalf("store error misclassified: %v", err)
	}
}

func TestGetRankingsOrderAndRanks(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	scores := []int64{300, 900, 500, 700, 100}
	for i, score := range scores {
		playerID := string(rune('a' + i))
		if _, err := ledger.SubmitScore(ctx, submission(playerID, "g1", score, "Player"+playerID)); err != nil {
			t.Fatalf("SubmitScore error: %v", err)
		}
	}

	rankings, err := ledger.GetRankings(ctx, "g1", 0)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if rankings.GameID != "g1" || rankings.TotalPlayers != 5 {
		t.Fatalf("rankings=%+v, want gameId g1 totalPlayers 5", rankings)
	}
	for i, entry := range rankings.Entries {
		if entry.Rank != i+1 {
			t.Fatalf("entry %d rank=%d, want %d", i, entry.Rank, i+1)
		}
		if i > 0 && entry.Score > rankings.Entries[i-1].Score {
			t.Fatalf("scores not non-increasing at %d: %d > %d", i, entry.Score, rankings.Entries[i-1].Score)
		}
	}
	if rankings.Entries[0].Score != 900 || rankings.Entries[4].Score != 100 {
		t.Fatalf("entries=%+v", rankings.Entries)
	}
}

func TestGetRankingsLimitTruncates(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		playerID := string(rune('a' + i))
		if _, err := ledger.SubmitScore(ctx, submission(playerID, "g1", int64(100*i), "P")); err != nil {
			t.Fatalf("SubmitScore error: %v", err)
		}
	}

	rankings, err := ledger.GetRankings(ctx, "g1", 3)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if len(rankings.Entries) != 3 || rankings.TotalPlayers != 3 {
		t.Fatalf("got %d entries, want 3", len(rankings.Entries))
	}
	if rankings.Entries[2].Rank != 3 {
		t.Fatalf("last rank=%d, want 3", rankings.Entries[2].Rank)
	}
}

func TestGetRankingsLargeLimitIsUncapped(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	const players = 1001
	records := make([]domain.ScoreRecord, players)
	for i := 0; i < players; i++ {
		playerID := fmt.Sprintf("p%04d", i)
		records[i] = domain.ScoreRecord{
			ID:         domain.RecordID(playerID, "g1"),
			PlayerID:   playerID,
			GameID:     "g1",
			Score:      int64(i),
			PlayerName: "P",
		}
	}
	store.Seed(records...)

	rankings, err := ledger.GetRankings(ctx, "g1", players)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if len(rankings.Entries) != players {
		t.Fatalf("got %d entries, want %d", len(rankings.Entries), players)
	}
	if rankings.Entries[players-1].Rank != players {
		t.Fatalf("last rank=%d, want %d", rankings.Entries[players-1].Rank, players)
	}
}

func TestGetRankingsDefaultGame(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SubmitScore(ctx, submission("p1", "game001", 42, "Ann")); err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}

	rankings, err := ledger.GetRankings(ctx, "", 0)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if rankings.GameID != "game001" || rankings.TotalPlayers != 1 {
		t.Fatalf("rankings=%+v, want default game001 with 1 player", rankings)
	}
	// Round-trip: the submitted integer comes back exactly
	if rankings.Entries[0].Score != 42 {
		t.Fatalf("score=%d, want 42", rankings.Entries[0].Score)
	}
}

func TestGetRankingsAnonymousName(t *testing.T) {
	ledger, store := newTestLedger()

	store.Seed(domain.ScoreRecord{
		ID:       "p1_g1",
		PlayerID: "p1",
		GameID:   "g1",
		Score:    10,
	})

	rankings, err := ledger.GetRankings(context.Background(), "g1", 0)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if rankings.Entries[0].PlayerName != "Anonymous" {
		t.Fatalf("playerName=%q, want Anonymous", rankings.Entries[0].PlayerName)
	}
}

func TestGetRankingsUnknownGameIsEmpty(t *testing.T) {
	ledger, _ := newTestLedger()

	rankings, err := ledger.GetRankings(context.Background(), "nope", 0)
	if err != nil {
		t.Fatalf("GetRankings error: %v", err)
	}
	if rankings.TotalPlayers != 0 {
		t.Fatalf("totalPlayers=%d, want 0", rankings.TotalPlayers)
	}
	if rankings.Entries == nil || len(rankings.Entries) != 0 {
		t.Fatalf("entries=%v, want empty non-nil list", rankings.Entries)
	}
}

func TestGetPlayerStatsSingleGame(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	if _, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann")); err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}

	stats, err := ledger.GetPlayerStats(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlayerStats error: %v", err)
	}
	s := stats.Stats
	if s.TotalGames != 1 || s.TotalScore != 500 || s.AverageScore != 500 || s.BestScore != 500 || s.WorstScore != 500 {
		t.Fatalf("stats=%+v, want all fields 500 with 1 game", s)
	}
	if stats.PlayerName != "Ann" {
		t.Fatalf("playerName=%q, want Ann", stats.PlayerName)
	}
}

func TestGetPlayerStatsAggregation(t *testing.T) {
	ledger, store := newTestLedger()

	store.Seed(
		domain.ScoreRecord{ID: "p1_g1", PlayerID: "p1", GameID: "g1", Score: 100, PlayerName: "Ann", Timestamp: 1000},
		domain.ScoreRecord{ID: "p1_g2", PlayerID: "p1", GameID: "g2", Score: 400, PlayerName: "Ann", Timestamp: 3000},
		domain.ScoreRecord{ID: "p1_g3", PlayerID: "p1", GameID: "g3", Score: 250, PlayerName: "Ann", Timestamp: 2000},
	)

	stats, err := ledger.GetPlayerStats(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPlayerStats error: %v", err)
	}
	s := stats.Stats
	if s.TotalGames != 3 || s.TotalScore != 750 || s.AverageScore != 250 {
		t.Fatalf("stats=%+v, want 3 games total 750 average 250", s)
	}
	if s.BestScore != 400 || s.WorstScore != 100 {
		t.Fatalf("stats=%+v, want best 400 worst 100", s)
	}

	history := stats.GameHistory
	if len(history) != 3 {
		t.Fatalf("history has %d entries, want 3", len(history))
	}
	if history[0].GameID != "g2" || history[1].GameID != "g3" || history[2].GameID != "g1" {
		t.Fatalf("history not most recent first: %+v", history)
	}
}

func TestGetPlayerStatsRoundsHalfAwayFromZero(t *testing.T) {
	ledger, store := newTestLedger()

	// 101 + 100 = 201 over 2 games averages 100.5, rounds up to 101
	store.Seed(
		domain.ScoreRecord{ID: "p1_g1", PlayerID: "p1", GameID: "g1", Score: 101, PlayerName: "Ann"},
		domain.ScoreRecord{ID: "p1_g2", PlayerID: "p1", GameID: "g2", Score: 100, PlayerName: "Ann"},
	)

	stats, err := ledger.GetPlayerStats(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPlayerStats error: %v", err)
	}
	if stats.Stats.AverageScore != 101 {
		t.Fatalf("averageScore=%d, want 101", stats.Stats.AverageScore)
	}
}

func TestGetPlayerStatsNotFound(t *testing.T) {
	ledger, _ := newTestLedger()

	_, err := ledger.GetPlayerStats(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("err=%v, want ErrPlayerNotFound", err)
	}
}

func TestGetPlayerStatsRequiresPlayerID(t *testing.T) {
	ledger, _ := newTestLedger()

	_, err := ledger.GetPlayerStats(context.Background(), "")
	if !errors.Is(err, domain.ErrPlayerIDRequired) {
		t.Fatalf("err=%v, want ErrPlayerIDRequired", err)
	}
}

func TestSubmitScoreScenario(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	first, err := ledger.SubmitScore(ctx, submission("p1", "g1", 500, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if !first.IsNewRecord || first.Score != 500 || first.PreviousScore != 0 {
		t.Fatalf("first=%+v", first)
	}

	second, err := ledger.SubmitScore(ctx, submission("p1", "g1", 300, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if second.Updated || second.CurrentScore != 500 || second.AttemptedScore != 300 {
		t.Fatalf("second=%+v", second)
	}

	third, err := ledger.SubmitScore(ctx, submission("p1", "g1", 700, "Ann"))
	if err != nil {
		t.Fatalf("SubmitScore error: %v", err)
	}
	if third.IsNewRecord || third.PreviousScore != 500 || third.Improvement != 200 {
		t.Fatalf("third=%+v", third)
	}
}
