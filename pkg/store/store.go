// Package store persists civil-status records and their action chains.
//
// The store is a collaborator of the trust core, not part of it: it keeps
// bytes, the chain and verifier decide what the bytes mean. History rows
// are append-only; Save never rewrites an existing entry.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/registrum/registrum/pkg/record"
)

// ErrRecordNotFound signals a lookup for an unknown record ID.
var ErrRecordNotFound = errors.New("store: record not found")

// RecordStore is the persistence contract consumed by callers of the core.
type RecordStore interface {
	// Save upserts the record's current state and appends any chain
	// entries not yet persisted.
	Save(ctx context.Context, rec *record.Record) error
	// Load returns a record by ID with its full history.
	Load(ctx context.Context, id string) (*record.Record, error)
	// List returns up to limit record IDs, most recently created first.
	List(ctx context.Context, limit int) ([]string, error)
}

// MemoryStore keeps records in process memory. The stored *record.Record is
// the single authoritative instance per ID, so the record's own transition
// lock keeps writers exclusive.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record.Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*record.Record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}
