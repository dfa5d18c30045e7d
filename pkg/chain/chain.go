// Package chain implements the append-only, hash-chained action log kept
// for each civil-status record.
//
// Every entry binds its content to the hash of its predecessor; the first
// entry links to the all-zero genesis sentinel. Entries are immutable once
// appended and no entry is ever deleted.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/registrum/registrum/pkg/canonical"
)

// Action names the record transition an entry documents.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionEdit    Action = "EDIT"
	ActionSubmit  Action = "SUBMIT"
	ActionSign    Action = "SIGN"
	ActionDeliver Action = "DELIVER"
)

var (
	// ErrInvalidDetail signals a caller-supplied detail that cannot be
	// canonicalized for hashing.
	ErrInvalidDetail = errors.New("chain: detail cannot be canonicalized")

	// ErrEntryNotFound signals an out-of-range sequence lookup.
	ErrEntryNotFound = errors.New("chain: entry not found")
)

// Entry is one immutable, hash-chained log entry.
type Entry struct {
	Sequence     uint64    `json:"sequence"`
	Action       Action    `json:"action"`
	PerformedBy  string    `json:"performed_by"`
	Timestamp    time.Time `json:"timestamp"`
	Details      string    `json:"details,omitempty"`
	PreviousHash string    `json:"previous_hash"`
	Hash         string    `json:"hash"`
}

// hashInput is the canonical hashable subset of an entry: everything but
// the hash itself. Key order is fixed by JCS, timestamp rendering by
// canonical.Timestamp.
type hashInput struct {
	Action       Action `json:"action"`
	Details      string `json:"details"`
	PerformedBy  string `json:"performed_by"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    string `json:"timestamp"`
}

// EntryHash recomputes the digest of e from its own content. Used both at
// append time and by independent verification.
func EntryHash(e Entry) (string, error) {
	return canonical.Hash(hashInput{
		Action:       e.Action,
		Details:      e.Details,
		PerformedBy:  e.PerformedBy,
		PreviousHash: e.PreviousHash,
		Timestamp:    canonical.Timestamp(e.Timestamp),
	})
}

// DetailString renders an arbitrary detail value in its one canonical
// string form: absent detail is the empty string, strings pass through
// verbatim, anything else becomes canonical JSON.
func DetailString(detail any) (string, error) {
	switch d := detail.(type) {
	case nil:
		return "", nil
	case string:
		return d, nil
	default:
		b, err := canonical.Marshal(detail)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidDetail, err)
		}
		return string(b), nil
	}
}

// Chain is the append-only action log of a single record.
//
// The chain is single-writer: Append holds the chain lock for the whole
// entry construction. Snapshots copy the arena so readers never observe a
// partially appended entry.
type Chain struct {
	mu      sync.RWMutex
	entries []Entry
	clock   func() time.Time
}

// New creates an empty chain.
func New() *Chain {
	return &Chain{clock: time.Now}
}

// FromHistory rehydrates a chain from previously persisted entries.
// The history is trusted as-loaded; integrity is the verifier's concern.
func FromHistory(history []Entry) *Chain {
	c := New()
	c.entries = append(c.entries, history...)
	return c
}

// WithClock overrides the clock, for tests.
func (c *Chain) WithClock(clock func() time.Time) *Chain {
	c.clock = clock
	return c
}

// Append constructs the next entry, links it to the current head, computes
// its digest and extends the chain by exactly one entry. Prior entries are
// never touched.
func (c *Chain) Append(action Action, performedBy string, detail any) (Entry, error) {
	detailStr, err := DetailString(detail)
	if err != nil {
		return Entry{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock().UTC()
	if n := len(c.entries); n > 0 && !now.After(c.entries[n-1].Timestamp) {
		// Timestamps are monotonic per chain.
		now = c.entries[n-1].Timestamp.Add(time.Nanosecond)
	}

	entry := Entry{
		Sequence:     uint64(len(c.entries)),
		Action:       action,
		PerformedBy:  performedBy,
		Timestamp:    now,
		Details:      detailStr,
		PreviousHash: c.headLocked(),
	}
	entry.Hash, err = EntryHash(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("chain: hashing entry %d: %w", entry.Sequence, err)
	}

	c.entries = append(c.entries, entry)
	return entry, nil
}

// Head returns the hash of the most recent entry, or the genesis sentinel
// for an empty chain.
func (c *Chain) Head() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headLocked()
}

func (c *Chain) headLocked() string {
	if len(c.entries) == 0 {
		return canonical.GenesisHash
	}
	return c.entries[len(c.entries)-1].Hash
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entry returns the entry at the given sequence.
func (c *Chain) Entry(seq uint64) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if seq >= uint64(len(c.entries)) {
		return Entry{}, fmt.Errorf("%w: sequence %d", ErrEntryNotFound, seq)
	}
	return c.entries[seq], nil
}

// Snapshot returns a copy of the full history, safe to read and verify
// while the writer keeps appending.
func (c *Chain) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}
