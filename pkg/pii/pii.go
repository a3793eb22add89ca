// Package pii provides field-level protection for personally identifiable
// information: authenticated encryption, salted lookup hashes, and display
// masking. Plaintext PII must never outlive the pipeline stage that calls
// into this package.
package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the required encryption key length (AES-256).
const KeySize = 32

// Codec encrypts, decrypts, and hashes PII fields with a fixed key and salt.
type Codec struct {
	aead cipher.AEAD
	salt string
}

// NewCodec builds a Codec from a raw 32-byte key and a hash salt.
func NewCodec(key []byte, salt string) (*Codec, error) {
	const op = "pii.NewCodec"
	if len(key) != KeySize {
		return nil, fmt.Errorf("op=%s: key must be %d bytes, got %d", op, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	return &Codec{aead: aead, salt: salt}, nil
}

// Encrypt seals plaintext with a fresh random nonce. The returned blob is
// nonce || ciphertext || auth tag, suitable for direct column storage.
func (c *Codec) Encrypt(plaintext string) ([]byte, error) {
	const op = "pii.Encrypt"
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("op=%s: %w", op, err)
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Codec) Decrypt(blob []byte) (string, error) {
	const op = "pii.Decrypt"
	ns := c.aead.NonceSize()
	if len(blob) < ns+c.aead.Overhead() {
		return "", fmt.Errorf("op=%s: blob too short", op)
	}
	plaintext, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("op=%s: %w", op, err)
	}
	return string(plaintext), nil
}

// HashEmail returns the salted hash of a normalized email, or "" for empty
// input. Equal hashes imply the addresses are considered duplicates.
func (c *Codec) HashEmail(email string) string {
	n := NormalizeEmail(email)
	if n == "" {
		return ""
	}
	return c.hash(n)
}

// HashPhone returns the salted hash of a normalized phone number, or "" for
// empty input.
func (c *Codec) HashPhone(phone string) string {
	n := NormalizePhone(phone)
	if n == "" {
		return ""
	}
	return c.hash(n)
}

func (c *Codec) hash(normalized string) string {
	sum := sha256.Sum256([]byte(c.salt + normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeEmail lowercases and trims an email address so that hashing is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone keeps the prefix and the last four digits: "010-****-5678".
// Numbers too short to mask safely collapse to "****".
func MaskPhone(phone string) string {
	digits := NormalizePhone(phone)
	if len(digits) < 7 {
		if digits == "" {
			return ""
		}
		return "****"
	}
	return digits[:3] + "-****-" + digits[len(digits)-4:]
}

// MaskEmail keeps the first rune of the local part and the full domain:
// "a***@example.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***"
	}
	local := []rune(email[:at])
	return string(local[0]) + "***@" + email[at+1:]
}

// MaskAddress reduces an address to its first locality token.
func MaskAddress(address string) string {
	fields := strings.Fields(strings.TrimSpace(address))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
