// Package storetest provides an in-memory stand-in for the document
// store, used by service and handler tests.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/score-ledger/internal/domain"
)

// Memory is an in-memory ScoreStore. Queries return records in
// insertion order for equal scores, standing in for the store's
// natural tie order.
type Memory struct {
	mu      sync.Mutex
	records map[string]domain.ScoreRecord
	order   []string

	// FailWith, when set, makes every operation return this error.
	FailWith error
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]domain.ScoreRecord),
	}
}

// Seed inserts records directly, bypassing submission semantics
func (m *Memory) Seed(records ...domain.ScoreRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		if _, ok := m.records[record.ID]; !ok {
			m.order = append(m.order, record.ID)
		}
		m.records[record.ID] = record
	}
}

// Get returns a stored record by id, for assertions
func (m *Memory) Get(id string) (domain.ScoreRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	return record, ok
}

// Len returns the number of stored records
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// GetScore implements service.ScoreStore
func (m *Memory) GetScore(ctx context.Context, id, gameID string) (*domain.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	record, ok := m.records[id]
	if !ok || record.GameID != gameID {
		return nil, domain.ErrRecordNotFound
	}
	out := record
	return &out, nil
}

// UpsertScore implements service.ScoreStore
func (m *Memory) UpsertScore(ctx context.Context, record *domain.ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.records[record.ID]; !ok {
		m.order = append(m.order, record.ID)
	}
	m.records[record.ID] = *record
	return nil
}

// QueryByGame implements service.ScoreStore
func (m *Memory) QueryByGame(ctx context.Context, gameID string, limit int64) ([]domain.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var records []domain.ScoreRecord
	for _, id := range m.order {
		if record := m.records[id]; record.GameID == gameID {
			records = append(records, record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if limit > 0 && int64(len(records)) > limit {
		records = records[:limit]
	}
	return records, nil
}

// QueryByPlayer implements service.ScoreStore
func (m *Memory) QueryByPlayer(ctx context.Context, playerID string) ([]domain.ScoreRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var records []domain.ScoreRecord
	for _, id := range m.order {
		if record := m.records[id]; record.PlayerID == playerID {
			records = append(records, record)
		}
	}
	return records, nil
}

// DistinctGames implements worker.RecordSource
func (m *Memory) DistinctGames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	seen := make(map[string]bool)
	var games []string
	for _, id := range m.order {
		record := m.records[id]
		if !seen[record.GameID] {
			seen[record.GameID] = true
			games = append(games, record.GameID)
		}
	}
	return games, nil
}
