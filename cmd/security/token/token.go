package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the refresh-token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "CHATTY_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the smallest accepted HMAC-SHA256 key.
	MinHMACKeyBytes = 32
)

// HashSHA256Base64 returns the standard (padded) base64 encoding of SHA-256(s).
func HashSHA256Base64(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HashHMACSHA256Base64 returns the standard base64 encoding of HMAC-SHA256(s, key).
func HashHMACSHA256Base64(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// HMACEnabled reports whether the env key is present (non-empty after trim).
// It does not enforce a minimum length; use HMACKeyFromEnv for policy checks.
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}

// RefreshHasher turns opaque refresh secrets into their stored lookup form.
// The zero value hashes with plain SHA-256.
type RefreshHasher struct {
	key []byte
}

// NewRefreshHasher returns a hasher that uses HMAC-SHA256 when key is non-empty.
func NewRefreshHasher(key []byte) RefreshHasher {
	if len(key) == 0 {
		return RefreshHasher{}
	}
	return RefreshHasher{key: append([]byte(nil), key...)}
}

// RefreshHasherFromEnv builds a RefreshHasher from CHATTY_TOKEN_HMAC_KEY.
// With require set, a missing or short key is an error; otherwise a missing key
// falls back to SHA-256 and a short key is still rejected.
func RefreshHasherFromEnv(require bool) (RefreshHasher, error) {
	key, err := HMACKeyFromEnv(MinHMACKeyBytes)
	switch {
	case err == nil:
		return NewRefreshHasher(key), nil
	case errors.Is(err, ErrHMACKeyMissing) && !require:
		return RefreshHasher{}, nil
	default:
		return RefreshHasher{}, err
	}
}

// Keyed reports whether the hasher is in HMAC mode.
func (h RefreshHasher) Keyed() bool { return len(h.key) > 0 }

// Key returns a copy of the HMAC key, or nil in SHA-256 mode.
func (h RefreshHasher) Key() []byte {
	if len(h.key) == 0 {
		return nil
	}
	return append([]byte(nil), h.key...)
}

// Hash returns the deterministic base64 digest of secret.
func (h RefreshHasher) Hash(secret string) string {
	if len(h.key) == 0 {
		return HashSHA256Base64(secret)
	}
	return HashHMACSHA256Base64(secret, h.key)
}
