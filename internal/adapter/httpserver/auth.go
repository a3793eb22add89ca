package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Argon2Params defines parameters for Argon2id secret hashing.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

var defaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashSecret creates an Argon2id hash of a tenant secret.
func HashSecret(secret string, params Argon2Params) (string, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(secret), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
	// Format: argon2id$iterations$memory$parallelism$salt$hash
	encoded := fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// VerifySecret verifies a tenant secret against its Argon2id hash.
func VerifySecret(secret, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	var par uint8
	if par64 > math.MaxUint8 {
		par = math.MaxUint8
	} else {
		par = uint8(par64)
	}
	actual := argon2.IDKey([]byte(secret), salt, iters, mem, par, defaultArgon2Params.KeyLen)
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// sessionTTL bounds how long an issued token stays valid.
const sessionTTL = 24 * time.Hour

// SessionManager issues and verifies HMAC-signed bearer tokens carrying
// the tenant id. Tokens are self-contained; revocation happens by
// rotating the secret.
type SessionManager struct {
	secret []byte
}

// NewSessionManager creates a session manager over the shared secret.
func NewSessionManager(secret string) *SessionManager {
	return &SessionManager{secret: []byte(secret)}
}

// CreateToken issues a signed session token for the tenant.
func (sm *SessionManager) CreateToken(tenantID string) (string, error) {
	if len(sm.secret) == 0 {
		return "", fmt.Errorf("session secret not configured")
	}
	now := time.Now()
	payload := fmt.Sprintf("%s:%d:%d", tenantID, now.Unix(), now.Add(sessionTTL).Unix())
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(payload))
	sig := mac.Sum(nil)
	token := base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(sig)
	return token, nil
}

// VerifyToken checks the signature and expiry and returns the tenant id.
func (sm *SessionManager) VerifyToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: malformed token", domain.ErrUnauthorized)
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: malformed token payload", domain.ErrUnauthorized)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: malformed token signature", domain.ErrUnauthorized)
	}
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write(payloadBytes)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", fmt.Errorf("%w: bad token signature", domain.ErrUnauthorized)
	}
	fields := strings.Split(string(payloadBytes), ":")
	if len(fields) != 3 {
		return "", fmt.Errorf("%w: malformed token payload", domain.ErrUnauthorized)
	}
	expires, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || time.Now().Unix() >= expires {
		return "", fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
	}
	return fields[0], nil
}

type tenantKey struct{}

// TenantFrom returns the authenticated tenant id from the request
// context, or empty when the request is unauthenticated.
func TenantFrom(r *http.Request) string {
	if v := r.Context().Value(tenantKey{}); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// withTenant is exposed for handler tests.
func withTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantAuth requires a valid bearer session token and injects the
// tenant id into the request context.
func (sm *SessionManager) TenantAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized), nil)
			return
		}
		tenantID, err := sm.VerifyToken(strings.TrimPrefix(authz, "Bearer "))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), tenantID)))
	})
}

// AdminGuard requires the operator API key on X-Admin-Key.
func AdminGuard(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Key")
			if adminKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
				writeError(w, r, fmt.Errorf("%w: admin key required", domain.ErrUnauthorized), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
