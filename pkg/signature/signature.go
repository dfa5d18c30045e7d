// Package signature issues and verifies qualified signatures for record
// sealing events.
//
// Each signing event generates a fresh Ed25519 keypair, signs the canonical
// payload and discards the private key. The resulting bundle is
// self-contained: a relying party can check it against the embedded public
// key, but the key is not chained to any external root of trust. That
// limitation is carried in the Kind tag so integrators can distinguish a
// self-attested bundle from a future CA-issued one.
package signature

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/registrum/registrum/pkg/canonical"
)

// Algorithm identifies the one signature scheme and digest pair used by
// the whole system. Not negotiable per record.
const Algorithm = "Ed25519-SHA256/JCS"

// Kind tags the trust model behind a signature bundle.
type Kind string

const (
	// KindSelfAttested marks a bundle whose keypair was generated for this
	// one event and proves internal consistency only.
	KindSelfAttested Kind = "SELF_ATTESTED"
	// KindCAIssued is reserved for bundles backed by a real certificate
	// authority. No issuer produces it yet.
	KindCAIssued Kind = "CA_ISSUED"
)

// ErrSignatureGeneration signals a failed key generation or signing
// operation. The enclosing transition must abort entirely.
var ErrSignatureGeneration = errors.New("signature: generation failed")

// QualifiedSignature bundles one signing event: signature bytes, the public
// key they verify against, and the legal context of the sealing.
type QualifiedSignature struct {
	Kind           Kind      `json:"kind"`
	Algorithm      string    `json:"algorithm"`
	SignatureValue string    `json:"signature_value"`
	PublicKey      string    `json:"public_key"`
	CertificateID  string    `json:"certificate_id"`
	Timestamp      time.Time `json:"timestamp"`
	Issuer         string    `json:"issuer"`
	SignedBy       string    `json:"signed_by"`
	LegalNotice    string    `json:"legal_notice"`
}

// Issuer produces a QualifiedSignature over a canonical payload.
type Issuer interface {
	Issue(ctx context.Context, payload any, actorName string) (QualifiedSignature, error)
}

// SelfAttestedIssuer issues per-event Ed25519 signatures.
type SelfAttestedIssuer struct {
	issuer      string
	legalNotice string
	entropy     io.Reader
	clock       func() time.Time
}

// NewSelfAttestedIssuer creates an issuer with the given legal metadata.
func NewSelfAttestedIssuer(issuerName, legalNotice string) *SelfAttestedIssuer {
	return &SelfAttestedIssuer{
		issuer:      issuerName,
		legalNotice: legalNotice,
		entropy:     rand.Reader,
		clock:       time.Now,
	}
}

// WithEntropy overrides the randomness source, for tests.
func (s *SelfAttestedIssuer) WithEntropy(r io.Reader) *SelfAttestedIssuer {
	s.entropy = r
	return s
}

// WithClock overrides the clock, for tests.
func (s *SelfAttestedIssuer) WithClock(clock func() time.Time) *SelfAttestedIssuer {
	s.clock = clock
	return s
}

// Issue signs the canonical form of payload with a freshly generated
// keypair. The private key never leaves this call.
func (s *SelfAttestedIssuer) Issue(ctx context.Context, payload any, actorName string) (QualifiedSignature, error) {
	if err := ctx.Err(); err != nil {
		return QualifiedSignature{}, fmt.Errorf("%w: %w", ErrSignatureGeneration, err)
	}

	data, err := canonical.Marshal(payload)
	if err != nil {
		return QualifiedSignature{}, fmt.Errorf("%w: payload not canonicalizable: %w", ErrSignatureGeneration, err)
	}

	pub, priv, err := ed25519.GenerateKey(s.entropy)
	if err != nil {
		return QualifiedSignature{}, fmt.Errorf("%w: %w", ErrSignatureGeneration, err)
	}
	sig := ed25519.Sign(priv, data)

	return QualifiedSignature{
		Kind:           KindSelfAttested,
		Algorithm:      Algorithm,
		SignatureValue: base64.StdEncoding.EncodeToString(sig),
		PublicKey:      base64.StdEncoding.EncodeToString(pub),
		CertificateID:  "cert-" + uuid.New().String(),
		Timestamp:      s.clock().UTC(),
		Issuer:         s.issuer,
		SignedBy:       actorName,
		LegalNotice:    s.legalNotice,
	}, nil
}

// Verify checks a bundle against the payload it claims to seal. For a
// self-attested bundle this proves internal consistency only, not the
// identity of the signer.
func (q QualifiedSignature) Verify(payload any) (bool, error) {
	data, err := canonical.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("signature: payload not canonicalizable: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(q.PublicKey)
	if err != nil {
		return false, fmt.Errorf("signature: invalid public key encoding: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("signature: invalid public key size %d", len(pub))
	}
	sig, err := base64.StdEncoding.DecodeString(q.SignatureValue)
	if err != nil {
		return false, fmt.Errorf("signature: invalid signature encoding: %w", err)
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}
