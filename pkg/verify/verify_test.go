package verify

import (
	"strings"
	"testing"
	"time"

	"github.com/registrum/registrum/pkg/canonical"
	"github.com/registrum/registrum/pkg/chain"
)

func buildHistory(t *testing.T, n int) []chain.Entry {
	t.Helper()
	c := chain.New()
	actions := []chain.Action{chain.ActionCreate, chain.ActionSubmit, chain.ActionSign, chain.ActionDeliver}
	for i := 0; i < n; i++ {
		if _, err := c.Append(actions[i%len(actions)], "actor-1", nil); err != nil {
			t.Fatal(err)
		}
	}
	return c.Snapshot()
}

func TestVerifyEmptyHistory(t *testing.T) {
	report := Verify(nil)
	if !report.OK() {
		t.Fatal("empty history has no claims to falsify")
	}
}

func TestVerifyValidHistory(t *testing.T) {
	report := Verify(buildHistory(t, 4))
	if !report.OK() {
		t.Fatalf("append-built history should verify, got %s at %d: %s", report.Status, report.Sequence, report.Reason)
	}
	if report.Entries != 4 {
		t.Fatalf("expected 4 entries reported, got %d", report.Entries)
	}
}

func TestVerifyDetectsFieldTampering(t *testing.T) {
	mutations := map[string]func(*chain.Entry){
		"action":        func(e *chain.Entry) { e.Action = chain.ActionDeliver },
		"performed_by":  func(e *chain.Entry) { e.PerformedBy = "intruder" },
		"timestamp":     func(e *chain.Entry) { e.Timestamp = e.Timestamp.Add(time.Second) },
		"details":       func(e *chain.Entry) { e.Details = "forged" },
		"previous_hash": func(e *chain.Entry) { e.PreviousHash = strings.Repeat("ab", 32) },
		"hash":          func(e *chain.Entry) { e.Hash = flipHex(e.Hash) },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			history := buildHistory(t, 3)
			mutate(&history[1])
			report := Verify(history)
			if report.OK() {
				t.Fatalf("mutated %s went undetected", name)
			}
		})
	}
}

func TestVerifyDetectsReorder(t *testing.T) {
	history := buildHistory(t, 3)
	history[0], history[1] = history[1], history[0]
	if Verify(history).OK() {
		t.Fatal("reordered entries went undetected")
	}
}

func TestVerifyDetectsFlippedHexCharacter(t *testing.T) {
	history := buildHistory(t, 3)
	history[1].Hash = flipHex(history[1].Hash)

	report := Verify(history)
	if report.Status != StatusCorrupted {
		t.Fatal("flipped hex character went undetected")
	}
	if report.Sequence != 1 {
		t.Fatalf("corruption located at %d, want 1", report.Sequence)
	}
}

func TestVerifyShortCircuitsOnLinkBreak(t *testing.T) {
	history := buildHistory(t, 3)
	history[2].PreviousHash = strings.Repeat("cd", 32)

	report := Verify(history)
	if report.Sequence != 2 {
		t.Fatalf("link break should be found at 2, got %d", report.Sequence)
	}
	if !strings.Contains(report.Reason, "previous hash") {
		t.Fatalf("link break must be reported before rehashing, reason: %s", report.Reason)
	}
}

func TestVerifyMalformedEntryIsCorruption(t *testing.T) {
	history := []chain.Entry{{
		Sequence:     0,
		Action:       chain.ActionCreate,
		PreviousHash: canonical.GenesisHash,
		Hash:         "not-a-digest",
	}}
	report := Verify(history)
	if report.Status != StatusCorrupted {
		t.Fatal("malformed entry must map to CORRUPTED, not an error")
	}
}

func TestVerifyIdempotent(t *testing.T) {
	history := buildHistory(t, 3)
	first := Verify(history)
	second := Verify(history)
	if first != second {
		t.Fatal("repeated verification of identical input must agree")
	}
	if !first.OK() {
		t.Fatal("unexpected corruption")
	}
}

// flipHex flips one hex character, keeping the digest well-formed.
func flipHex(h string) string {
	b := []byte(h)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
