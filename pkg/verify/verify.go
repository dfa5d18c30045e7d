// Package verify walks a record's action history independently and reports
// whether the hash chain still holds.
//
// Verification is advisory: a corrupted chain is a finding for consumers to
// surface, never an error condition, and the verifier never attempts repair.
package verify

import (
	"fmt"

	"github.com/registrum/registrum/pkg/canonical"
	"github.com/registrum/registrum/pkg/chain"
)

// Status is the outcome of a chain verification.
type Status string

const (
	StatusVerified  Status = "VERIFIED"
	StatusCorrupted Status = "CORRUPTED"
)

// Report describes a verification outcome. For a corrupted chain, Sequence
// and Reason locate the first defect found.
type Report struct {
	Status   Status `json:"status"`
	Entries  int    `json:"entries"`
	Sequence uint64 `json:"sequence,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// OK reports whether the chain verified clean.
func (r Report) OK() bool { return r.Status == StatusVerified }

// Verify checks every entry of history: the link to its predecessor first,
// then its recomputed content digest. An empty history verifies trivially.
//
// Verify is pure: it never mutates its input and identical input always
// yields an identical report, so it is safe to call concurrently against
// chain snapshots. Malformed entries are themselves evidence of tampering
// and map to CORRUPTED rather than an error.
func Verify(history []chain.Entry) Report {
	report := Report{Status: StatusVerified, Entries: len(history)}

	expectedPrev := canonical.GenesisHash
	for i, entry := range history {
		seq := uint64(i)
		if entry.Sequence != seq {
			return corrupted(report, seq, fmt.Sprintf("sequence %d out of order (stored %d)", seq, entry.Sequence))
		}
		// Link break is detected before any recomputation.
		if entry.PreviousHash != expectedPrev {
			return corrupted(report, seq, fmt.Sprintf("previous hash mismatch: stored %s, expected %s", entry.PreviousHash, expectedPrev))
		}
		if !canonical.IsHash(entry.Hash) {
			return corrupted(report, seq, "stored hash is not a well-formed digest")
		}
		computed, err := chain.EntryHash(entry)
		if err != nil {
			return corrupted(report, seq, fmt.Sprintf("entry cannot be rehashed: %v", err))
		}
		if computed != entry.Hash {
			return corrupted(report, seq, fmt.Sprintf("content hash mismatch: stored %s, computed %s", entry.Hash, computed))
		}
		expectedPrev = entry.Hash
	}
	return report
}

func corrupted(r Report, seq uint64, reason string) Report {
	r.Status = StatusCorrupted
	r.Sequence = seq
	r.Reason = reason
	return r
}
