package domain

// Score bounds accepted by the service.
const (
	MinScore int64 = 0
	MaxScore int64 = 999999
)

// ScoreRecord is the persisted unit: one player's best known score for
// one game. The document id is derived from the player and game ids,
// so an upsert replaces the previous record in place.
type ScoreRecord struct {
	ID          string `bson:"_id" json:"id"`
	PlayerID    string `bson:"playerId" json:"playerId"`
	GameID      string `bson:"gameId" json:"gameId"`
	Score       int64  `bson:"score" json:"score"`
	PlayerName  string `bson:"playerName" json:"playerName"`
	Timestamp   int64  `bson:"timestamp" json:"timestamp"`
	SubmittedAt string `bson:"submittedAt" json:"submittedAt"`
}

// RecordID derives the document id for a (player, game) pair.
func RecordID(playerID, gameID string) string {
	return playerID + "_" + gameID
}

// ScoreSubmission is a request to submit a score. Score is a pointer
// so a missing field is distinguishable from an explicit zero.
type ScoreSubmission struct {
	PlayerID   string `json:"playerId"`
	GameID     string `json:"gameId"`
	Score      *int64 `json:"score"`
	PlayerName string `json:"playerName"`
}

// SubmitResult is the outcome of a score submission. Updated is false
// when the stored score was already at least as high and nothing was
// written.
type SubmitResult struct {
	Updated        bool
	Message        string
	Score          int64
	PreviousScore  int64
	Improvement    int64
	IsNewRecord    bool
	Timestamp      int64
	CurrentScore   int64
	AttemptedScore int64
}

// RankingEntry is one row of a game's rankings, derived per request.
type RankingEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Score       int64  `json:"score"`
	Timestamp   int64  `json:"timestamp"`
	SubmittedAt string `json:"submittedAt"`
}

// Rankings is the ordered leaderboard for a single game.
type Rankings struct {
	GameID       string         `json:"gameId"`
	TotalPlayers int            `json:"totalPlayers"`
	Entries      []RankingEntry `json:"rankings"`
}

// StatSummary aggregates a player's scores across games.
type StatSummary struct {
	TotalGames   int   `json:"totalGames"`
	TotalScore   int64 `json:"totalScore"`
	AverageScore int64 `json:"averageScore"`
	BestScore    int64 `json:"bestScore"`
	WorstScore   int64 `json:"worstScore"`
}

// GameResult is one entry of a player's game history.
type GameResult struct {
	GameID      string `json:"gameId"`
	Score       int64  `json:"score"`
	Timestamp   int64  `json:"timestamp"`
	SubmittedAt string `json:"submittedAt"`
}

// PlayerStats is the per-player view derived from all of the player's
// records. GameHistory is ordered most recent first.
type PlayerStats struct {
	PlayerID    string       `json:"playerId"`
	PlayerName  string       `json:"playerName"`
	Stats       StatSummary  `json:"stats"`
	GameHistory []GameResult `json:"gameHistory"`
}

// LiveRank is a rankings mirror entry carrying score and rank only.
type LiveRank struct {
	Rank     int64  `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
}

// SubmissionEvent is an accepted submission recorded in the audit sink.
type SubmissionEvent struct {
	GameID        string
	PlayerID      string
	PlayerName    string
	Score         int64
	PreviousScore int64
	IsNewRecord   bool
	Timestamp     int64
}
