package signature

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func testPayload() map[string]string {
	return map[string]string{
		"registration_number": "2024-PAR-000123",
		"subject_name":        "Lucie Martin",
		"birth_date":          "2024-02-29",
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "Sealed under civil-status regulations")
	sig, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	require.NoError(t, err)

	assert.Equal(t, KindSelfAttested, sig.Kind)
	assert.Equal(t, Algorithm, sig.Algorithm)
	assert.True(t, strings.HasPrefix(sig.CertificateID, "cert-"))
	assert.Equal(t, "Officer Dupont", sig.SignedBy)
	assert.NotEmpty(t, sig.LegalNotice)

	ok, err := sig.Verify(testPayload())
	require.NoError(t, err)
	assert.True(t, ok, "bundle must verify against the payload it sealed")
}

func TestVerifyRejectsDifferentPayload(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice")
	sig, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	require.NoError(t, err)

	altered := testPayload()
	altered["subject_name"] = "Someone Else"
	ok, err := sig.Verify(altered)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssueFreshKeypairPerEvent(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice")
	first, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	require.NoError(t, err)
	second, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	require.NoError(t, err)

	assert.NotEqual(t, first.PublicKey, second.PublicKey, "no signing key may be reused across events")
	assert.NotEqual(t, first.CertificateID, second.CertificateID)
}

func TestIssueGenerationFailure(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice").WithEntropy(failingReader{})
	_, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	assert.ErrorIs(t, err, ErrSignatureGeneration)
}

func TestIssueUnserializablePayload(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice")
	_, err := issuer.Issue(context.Background(), map[string]any{"f": func() {}}, "Officer Dupont")
	assert.ErrorIs(t, err, ErrSignatureGeneration)
}

func TestIssueHonorsCancelledContext(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := issuer.Issue(ctx, testPayload(), "Officer Dupont")
	assert.ErrorIs(t, err, ErrSignatureGeneration)
}

func TestVerifyMalformedEncodings(t *testing.T) {
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice")
	sig, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	require.NoError(t, err)

	broken := sig
	broken.PublicKey = "!!not-base64!!"
	_, err = broken.Verify(testPayload())
	assert.Error(t, err)

	broken = sig
	broken.SignatureValue = "!!not-base64!!"
	_, err = broken.Verify(testPayload())
	assert.Error(t, err)

	broken = sig
	broken.PublicKey = "c2hvcnQ=" // wrong key size
	_, err = broken.Verify(testPayload())
	assert.Error(t, err)
}

func TestIssueTimestampUTC(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	issuer := NewSelfAttestedIssuer("Registrum Civil Registry", "notice").WithClock(func() time.Time { return fixed })
	sig, err := issuer.Issue(context.Background(), testPayload(), "Officer Dupont")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, sig.Timestamp.Location())
}
