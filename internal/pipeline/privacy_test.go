package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func TestProtectPII_EncryptsHashesMasksAndClears(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testJob())
	rec := domain.ExtractionRecord{
		Name:    "Hong Gildong",
		Phone:   "010-1234-5678",
		Email:   "hong.gildong@example.com",
		Address: "Seoul Gangnam-gu",
	}

	a, err := f.p.protectPII(&rec)
	require.NoError(t, err)

	assert.Equal(t, 3, a.count)
	assert.NotEmpty(t, a.phoneEncrypted)
	assert.NotEmpty(t, a.emailEncrypted)
	assert.NotEmpty(t, a.addressEncrypted)
	assert.NotEmpty(t, a.phoneHash)
	assert.NotEmpty(t, a.emailHash)
	assert.Equal(t, "010-****-5678", a.phoneMasked)
	assert.Equal(t, "h***@example.com", a.emailMasked)
	assert.Equal(t, "Seoul", a.addressMasked)

	// Plaintext never survives the stage.
	assert.Empty(t, rec.Phone)
	assert.Empty(t, rec.Email)
	assert.Empty(t, rec.Address)
	assert.Equal(t, "Hong Gildong", rec.Name) // name is data, not contact PII

	// Ciphertext round-trips through the codec.
	phone, err := f.p.codec.Decrypt(a.phoneEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "010-1234-5678", phone)
}

func TestProtectPII_PartialFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testJob())
	rec := domain.ExtractionRecord{Email: "hong@example.com"}

	a, err := f.p.protectPII(&rec)
	require.NoError(t, err)

	assert.Equal(t, 1, a.count)
	assert.Empty(t, a.phoneEncrypted)
	assert.Empty(t, a.phoneHash)
	assert.Empty(t, a.phoneMasked)
	assert.NotEmpty(t, a.emailEncrypted)
	assert.Empty(t, a.addressEncrypted)
}

func TestProtectPII_NothingToProtect(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testJob())
	rec := domain.ExtractionRecord{Name: "Hong Gildong"}

	a, err := f.p.protectPII(&rec)
	require.NoError(t, err)
	assert.Zero(t, a.count)
}

func TestProtectPII_SameInputSameHash(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testJob())

	one := domain.ExtractionRecord{Phone: "010-1234-5678"}
	two := domain.ExtractionRecord{Phone: "010-1234-5678"}
	a1, err := f.p.protectPII(&one)
	require.NoError(t, err)
	a2, err := f.p.protectPII(&two)
	require.NoError(t, err)

	// Hashes support exact-match lookup; ciphertexts use fresh nonces.
	assert.Equal(t, a1.phoneHash, a2.phoneHash)
	assert.NotEqual(t, a1.phoneEncrypted, a2.phoneEncrypted)
}
