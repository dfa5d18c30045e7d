// Package record implements the civil-status record entity and the status
// state machine that gates every modification to it.
//
// A record moves forward only: DRAFT -> PENDING -> SIGNED -> DELIVERED.
// Each successful transition appends exactly one entry to the record's
// tamper-evident action chain; SIGN additionally seals the record with a
// qualified signature. A failed transition changes nothing.
package record

import (
	"sync"
	"time"

	"github.com/registrum/registrum/pkg/chain"
	"github.com/registrum/registrum/pkg/signature"
)

// Status is the lifecycle state of a record.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusSigned    Status = "SIGNED"
	StatusDelivered Status = "DELIVERED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSigned, StatusDelivered:
		return true
	}
	return false
}

// CivilDetails are the registered facts of a birth certificate.
type CivilDetails struct {
	RegistrationNumber string `json:"registration_number"`
	SubjectName        string `json:"subject_name"`
	BirthDate          string `json:"birth_date"`
	BirthPlace         string `json:"birth_place"`
	FatherName         string `json:"father_name,omitempty"`
	MotherName         string `json:"mother_name,omitempty"`
}

// Record is one civil-status record together with its trust artifacts.
//
// The embedded mutex is the per-record single-writer lock: a transition
// owns the record's state and history for its whole duration. Readers work
// against History.Snapshot() and never block a writer.
type Record struct {
	mu sync.Mutex

	ID        string       `json:"id"`
	Details   CivilDetails `json:"details"`
	CreatedBy string       `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
	Status    Status       `json:"status"`

	// History is owned exclusively by the record's chain; append-only.
	History *chain.Chain `json:"-"`

	// PKISignature is set by the SIGN transition and immutable afterwards.
	PKISignature *signature.QualifiedSignature `json:"pki_signature,omitempty"`
}

// SigningSubset is the fixed, minimal set of record fields sealed by the
// qualified signature. Issuance and any later re-verification by a relying
// party must use the same content and encoding.
type SigningSubset struct {
	RegistrationNumber string `json:"registration_number"`
	SubjectName        string `json:"subject_name"`
	BirthDate          string `json:"birth_date"`
}

// SigningSubset extracts the sealed fields of the record.
func (r *Record) SigningSubset() SigningSubset {
	return SigningSubset{
		RegistrationNumber: r.Details.RegistrationNumber,
		SubjectName:        r.Details.SubjectName,
		BirthDate:          r.Details.BirthDate,
	}
}
