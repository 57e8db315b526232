package token

import (
	"errors"
	"strings"
	"testing"
)

func TestHashSHA256Base64_KnownVector(t *testing.T) {
	t.Parallel()

	// sha256("abc")
	const want = "ungWv48Bz+pBQUDeXa4iI7ADYaOWF3qctBD/YfIAFa0="
	if got := HashSHA256Base64("abc"); got != want {
		t.Fatalf("HashSHA256Base64(abc)=%q want %q", got, want)
	}
}

func TestRefreshHasher_ZeroValueIsSHA(t *testing.T) {
	t.Parallel()

	var h RefreshHasher
	if h.Keyed() {
		t.Fatalf("zero value must not be keyed")
	}
	if h.Hash("secret") != HashSHA256Base64("secret") {
		t.Fatalf("zero value must hash with SHA-256")
	}
	if h.Key() != nil {
		t.Fatalf("zero value must have no key")
	}
}

func TestRefreshHasher_KeyedIsDeterministicAndDistinct(t *testing.T) {
	t.Parallel()

	key := []byte(strings.Repeat("k", MinHMACKeyBytes))
	h := NewRefreshHasher(key)
	if !h.Keyed() {
		t.Fatalf("expected keyed hasher")
	}

	a := h.Hash("secret")
	if a != h.Hash("secret") {
		t.Fatalf("hash must be deterministic")
	}
	if a == HashSHA256Base64("secret") {
		t.Fatalf("keyed hash must differ from plain SHA-256")
	}
	if a == h.Hash("secret2") {
		t.Fatalf("distinct secrets must produce distinct digests")
	}

	if got := h.Key(); string(got) != string(key) {
		t.Fatalf("Key()=%q", got)
	}

	// Mutating the caller's slice or the returned key must not affect the hasher.
	key[0] = 'x'
	h.Key()[1] = 'x'
	if a != h.Hash("secret") {
		t.Fatalf("hasher must copy its key")
	}
}

func TestRefreshHasherFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	h, err := RefreshHasherFromEnv(false)
	if err != nil || h.Keyed() {
		t.Fatalf("expected SHA fallback, got keyed=%v err=%v", h.Keyed(), err)
	}

	if _, err := RefreshHasherFromEnv(true); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "too-short")
	if _, err := RefreshHasherFromEnv(false); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, strings.Repeat("a", 40))
	h, err = RefreshHasherFromEnv(true)
	if err != nil || !h.Keyed() {
		t.Fatalf("expected keyed hasher, got keyed=%v err=%v", h.Keyed(), err)
	}
	if !HMACEnabled() {
		t.Fatalf("HMACEnabled must report true")
	}
}
