// Package history keeps a log of gate runs for the history command.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists gate run records.
type Store interface {
	Record(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// Record is one gate run.
type Record struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Builder   string    `json:"builder"`
	Repo      string    `json:"repo"`
	Passed    bool      `json:"passed"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Text      string    `json:"text"`
	Fault     string    `json:"fault,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter limits List results. Zero values match everything.
type Filter struct {
	Builder string
	Repo    string
	Passed  *bool
	Limit   int
}

func (f Filter) match(rec Record) bool {
	if f.Builder != "" && rec.Builder != f.Builder {
		return false
	}
	if f.Repo != "" && rec.Repo != f.Repo {
		return false
	}
	if f.Passed != nil && rec.Passed != *f.Passed {
		return false
	}
	return true
}

// prepare fills the ID and timestamp of a new record.
func prepare(rec Record, now func() time.Time) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec
}

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Record appends rec and returns it with its ID and timestamp set.
func (s *MemoryStore) Record(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec = prepare(rec, s.now)
	s.records = append(s.records, rec)
	return rec, nil
}

// List returns matching records, newest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !filter.match(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
