package password

import (
	"errors"
	"sync"
)

// dummyPassword only ever feeds the timing-equalizing verify; it never authenticates anyone.
const dummyPassword = "chatty-timing-equalizer-password"

// Hasher adapts Config to the credential hashing contract used by the auth core:
// Hash enforces the policy and Verify never fails loudly on bad input.
type Hasher struct {
	cfg Config

	dummyOnce sync.Once
	dummyHash string
}

// NewHasher returns a Hasher bound to cfg.
func NewHasher(cfg Config) *Hasher {
	return &Hasher{cfg: cfg}
}

// NewHasherFromEnv loads Config via FromEnv and wraps it.
func NewHasherFromEnv() (*Hasher, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	return NewHasher(cfg), nil
}

// Config returns the effective configuration.
func (h *Hasher) Config() Config { return h.cfg }

// Hash validates the password against the policy and returns a PHC Argon2id string.
func (h *Hasher) Hash(password string) (string, error) {
	return h.cfg.Hash(password)
}

// Verify reports whether password matches encoded.
// Malformed or out-of-bounds hashes report false.
func (h *Hasher) Verify(password, encoded string) bool {
	ok, err := h.cfg.Verify(encoded, password)
	if err != nil {
		return false
	}
	return ok
}

// VerifyDummy burns one verification against a throwaway hash so that
// "unknown account" and "wrong password" take comparable time.
func (h *Hasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		cfg := h.cfg
		cfg.Policy.MinLength = 1
		cfg.Policy.RejectVeryWeak = false
		if enc, err := cfg.Hash(dummyPassword); err == nil {
			h.dummyHash = enc
		}
	})
	if h.dummyHash == "" {
		return
	}
	_, _ = h.cfg.Verify(h.dummyHash, password)
}

// IsPolicyViolation reports whether err came from the password policy rather than hashing itself.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrWeakPassword)
}
