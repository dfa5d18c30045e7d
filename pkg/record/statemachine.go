package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/registrum/registrum/pkg/audit"
	"github.com/registrum/registrum/pkg/chain"
	"github.com/registrum/registrum/pkg/identity"
	"github.com/registrum/registrum/pkg/observability"
	"github.com/registrum/registrum/pkg/signature"
)

// Transition names a requested record operation.
type Transition string

const (
	TransitionCreate  Transition = "CREATE"
	TransitionEdit    Transition = "EDIT"
	TransitionSubmit  Transition = "SUBMIT"
	TransitionSign    Transition = "SIGN"
	TransitionDeliver Transition = "DELIVER"
)

// IllegalTransitionError reports a transition rejected by the guard table.
// The record was not touched: no status change, no log entry.
type IllegalTransitionError struct {
	Transition Transition
	From       Status
	Role       identity.Role
	Reason     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("record: transition %s from %s by role %s not permitted: %s",
		e.Transition, e.From, e.Role, e.Reason)
}

// guardRule is one row of the guard table.
type guardRule struct {
	from      Status
	to        Status
	roles     map[identity.Role]bool
	ownerOnly bool
	signs     bool
	action    chain.Action
}

// guardTable is the authoritative mapping of transitions to legal source
// states, authorized roles and side effects. Forward-only: there is no
// rollback from PENDING to DRAFT, and DELIVERED is terminal.
var guardTable = map[Transition]guardRule{
	TransitionCreate: {
		to:     StatusDraft,
		roles:  map[identity.Role]bool{identity.RoleAgent: true},
		action: chain.ActionCreate,
	},
	TransitionEdit: {
		from:      StatusDraft,
		to:        StatusDraft,
		roles:     map[identity.Role]bool{identity.RoleAgent: true},
		ownerOnly: true,
		action:    chain.ActionEdit,
	},
	TransitionSubmit: {
		from:   StatusDraft,
		to:     StatusPending,
		roles:  map[identity.Role]bool{identity.RoleAgent: true},
		action: chain.ActionSubmit,
	},
	TransitionSign: {
		from:   StatusPending,
		to:     StatusSigned,
		roles:  map[identity.Role]bool{identity.RoleValidator: true},
		signs:  true,
		action: chain.ActionSign,
	},
	TransitionDeliver: {
		from:   StatusSigned,
		to:     StatusDelivered,
		roles:  map[identity.Role]bool{identity.RoleValidator: true},
		action: chain.ActionDeliver,
	},
}

// StateMachine applies role-gated transitions to records.
type StateMachine struct {
	issuer  signature.Issuer
	auditor audit.Logger
	obs     *observability.Instruments
	clock   func() time.Time
}

// Option configures a StateMachine.
type Option func(*StateMachine)

// WithAuditLogger attaches an operational audit logger.
func WithAuditLogger(l audit.Logger) Option {
	return func(m *StateMachine) { m.auditor = l }
}

// WithInstruments attaches observability instruments.
func WithInstruments(obs *observability.Instruments) Option {
	return func(m *StateMachine) { m.obs = obs }
}

// WithClock overrides the clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *StateMachine) { m.clock = clock }
}

// NewStateMachine creates a state machine sealing records with the given
// signature issuer.
func NewStateMachine(issuer signature.Issuer, opts ...Option) *StateMachine {
	m := &StateMachine{
		issuer:  issuer,
		auditor: audit.Nop{},
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new record in DRAFT and appends its first chain entry.
func (m *StateMachine) Create(ctx context.Context, details CivilDetails, actor identity.Actor, detail any) (*Record, error) {
	ctx, span := m.obs.StartTransition(ctx, "", string(TransitionCreate))
	defer span.End()

	rule := guardTable[TransitionCreate]
	if err := m.authorize(ctx, rule, TransitionCreate, "", "", actor); err != nil {
		return nil, err
	}
	if err := ValidateDetails(details); err != nil {
		m.deny(ctx, "", TransitionCreate, actor, audit.OutcomeFailed, err)
		return nil, err
	}

	rec := &Record{
		ID:        uuid.New().String(),
		Details:   details,
		CreatedBy: actor.ID,
		CreatedAt: m.clock().UTC(),
		Status:    StatusDraft,
		History:   chain.New(),
	}
	if _, err := rec.History.Append(rule.action, actor.ID, detail); err != nil {
		m.deny(ctx, rec.ID, TransitionCreate, actor, audit.OutcomeFailed, err)
		return nil, err
	}

	m.applied(ctx, rec.ID, TransitionCreate, actor)
	return rec, nil
}

// Edit updates the civil details of a DRAFT record owned by the actor.
func (m *StateMachine) Edit(ctx context.Context, rec *Record, details CivilDetails, actor identity.Actor, detail any) (chain.Entry, error) {
	return m.apply(ctx, rec, TransitionEdit, actor, detail, func(r *Record) error {
		if err := ValidateDetails(details); err != nil {
			return err
		}
		r.Details = details
		return nil
	})
}

// Apply performs a transition without content change: SUBMIT, SIGN, DELIVER.
// EDIT with new content goes through Edit.
func (m *StateMachine) Apply(ctx context.Context, rec *Record, transition Transition, actor identity.Actor, detail any) (chain.Entry, error) {
	if transition == TransitionCreate {
		return chain.Entry{}, &IllegalTransitionError{
			Transition: transition, From: rec.Status, Role: actor.Role,
			Reason: "CREATE does not apply to an existing record",
		}
	}
	return m.apply(ctx, rec, transition, actor, detail, nil)
}

// apply is the one transition path. It holds the record's single-writer
// lock for guard check, signature issuance, chain append and status commit,
// so the transition is indivisible: either the status changes and exactly
// one entry is appended, or nothing happens.
func (m *StateMachine) apply(ctx context.Context, rec *Record, transition Transition, actor identity.Actor, detail any, mutate func(*Record) error) (chain.Entry, error) {
	ctx, span := m.obs.StartTransition(ctx, rec.ID, string(transition))
	defer span.End()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rule, ok := guardTable[transition]
	if !ok {
		err := &IllegalTransitionError{Transition: transition, From: rec.Status, Role: actor.Role, Reason: "unknown transition"}
		m.deny(ctx, rec.ID, transition, actor, audit.OutcomeDenied, err)
		return chain.Entry{}, err
	}
	if rec.Status != rule.from {
		err := &IllegalTransitionError{Transition: transition, From: rec.Status, Role: actor.Role,
			Reason: fmt.Sprintf("not legal from status %s", rec.Status)}
		m.deny(ctx, rec.ID, transition, actor, audit.OutcomeDenied, err)
		return chain.Entry{}, err
	}
	if err := m.authorize(ctx, rule, transition, rec.ID, rec.Status, actor); err != nil {
		return chain.Entry{}, err
	}
	if rule.ownerOnly && rec.CreatedBy != actor.ID {
		err := &IllegalTransitionError{Transition: transition, From: rec.Status, Role: actor.Role,
			Reason: fmt.Sprintf("record is owned by %s", rec.CreatedBy)}
		m.deny(ctx, rec.ID, transition, actor, audit.OutcomeDenied, err)
		return chain.Entry{}, err
	}

	// Side effects are staged; nothing is committed until all succeed.
	var sig *signature.QualifiedSignature
	if rule.signs {
		issued, err := m.issuer.Issue(ctx, rec.SigningSubset(), actor.Name)
		if err != nil {
			m.deny(ctx, rec.ID, transition, actor, audit.OutcomeFailed, err)
			return chain.Entry{}, err
		}
		if err := ctx.Err(); err != nil {
			// Cancelled after issuance: the signature is discarded, never
			// attached to the record.
			m.deny(ctx, rec.ID, transition, actor, audit.OutcomeFailed, err)
			return chain.Entry{}, fmt.Errorf("record: transition cancelled: %w", err)
		}
		sig = &issued
		detail = signDetail(detail, issued.CertificateID)
	}

	// Mutations are validated before any chain write.
	staged := rec.Details
	if mutate != nil {
		if err := mutate(rec); err != nil {
			rec.Details = staged
			m.deny(ctx, rec.ID, transition, actor, audit.OutcomeFailed, err)
			return chain.Entry{}, err
		}
	}

	entry, err := rec.History.Append(rule.action, actor.ID, detail)
	if err != nil {
		rec.Details = staged
		m.deny(ctx, rec.ID, transition, actor, audit.OutcomeFailed, err)
		return chain.Entry{}, err
	}

	rec.Status = rule.to
	if sig != nil {
		rec.PKISignature = sig
	}

	m.applied(ctx, rec.ID, transition, actor)
	return entry, nil
}

func (m *StateMachine) authorize(ctx context.Context, rule guardRule, transition Transition, recordID string, from Status, actor identity.Actor) error {
	if err := actor.Validate(); err != nil {
		m.deny(ctx, recordID, transition, actor, audit.OutcomeDenied, err)
		return &IllegalTransitionError{Transition: transition, From: from, Role: actor.Role, Reason: err.Error()}
	}
	if !rule.roles[actor.Role] {
		err := &IllegalTransitionError{Transition: transition, From: from, Role: actor.Role,
			Reason: "role not authorized for this transition"}
		m.deny(ctx, recordID, transition, actor, audit.OutcomeDenied, err)
		return err
	}
	return nil
}

// signDetail attaches the certificate reference to the caller's detail.
func signDetail(detail any, certificateID string) any {
	if detail == nil {
		return map[string]any{"certificate_id": certificateID}
	}
	return map[string]any{"certificate_id": certificateID, "context": detail}
}

func (m *StateMachine) applied(ctx context.Context, recordID string, transition Transition, actor identity.Actor) {
	m.obs.TransitionApplied(ctx, string(transition))
	_ = m.auditor.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		RecordID:   recordID,
		Transition: string(transition),
		Outcome:    audit.OutcomeApplied,
	})
}

func (m *StateMachine) deny(ctx context.Context, recordID string, transition Transition, actor identity.Actor, outcome audit.Outcome, cause error) {
	m.obs.TransitionDenied(ctx, string(transition))
	_ = m.auditor.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		RecordID:   recordID,
		Transition: string(transition),
		Outcome:    outcome,
		Metadata:   map[string]any{"reason": cause.Error()},
	})
}
