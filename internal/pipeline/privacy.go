package pipeline

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-resume-analyzer/pkg/pii"
)

// piiArtifacts is what the privacy stage leaves behind: ciphertext for
// recovery, salted hashes for exact-match lookup, masks for display. The
// plaintext fields themselves are cleared from the record.
type piiArtifacts struct {
	phoneEncrypted   []byte
	emailEncrypted   []byte
	addressEncrypted []byte
	phoneHash        string
	emailHash        string
	phoneMasked      string
	emailMasked      string
	addressMasked    string
	count            int
}

// protectPII encrypts, hashes and masks the contact fields, then strips
// the plaintext from the record so no later stage or stored row can leak
// it. A cipher failure is terminal: persisting plaintext instead is not
// an acceptable fallback.
func (p *Pipeline) protectPII(rec *domain.ExtractionRecord) (piiArtifacts, error) {
	defer observeStage("privacy", time.Now())

	var a piiArtifacts
	if rec.Phone != "" {
		blob, err := p.codec.Encrypt(rec.Phone)
		if err != nil {
			return piiArtifacts{}, fmt.Errorf("%w: phone: %v", domain.ErrCryptoFailure, err)
		}
		a.phoneEncrypted = blob
		a.phoneHash = p.codec.HashPhone(rec.Phone)
		a.phoneMasked = pii.MaskPhone(rec.Phone)
		a.count++
	}
	if rec.Email != "" {
		blob, err := p.codec.Encrypt(rec.Email)
		if err != nil {
			return piiArtifacts{}, fmt.Errorf("%w: email: %v", domain.ErrCryptoFailure, err)
		}
		a.emailEncrypted = blob
		a.emailHash = p.codec.HashEmail(rec.Email)
		a.emailMasked = pii.MaskEmail(rec.Email)
		a.count++
	}
	if rec.Address != "" {
		blob, err := p.codec.Encrypt(rec.Address)
		if err != nil {
			return piiArtifacts{}, fmt.Errorf("%w: address: %v", domain.ErrCryptoFailure, err)
		}
		a.addressEncrypted = blob
		a.addressMasked = pii.MaskAddress(rec.Address)
		a.count++
	}
	rec.Phone, rec.Email, rec.Address = "", "", ""
	return a, nil
}
