package app

import (
	"errors"
	"fmt"

	"chatty/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy.
// It fails instead of falling back to plain SHA-256 refresh hashes when HMAC is required.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// The key is used as raw bytes, so length is measured in bytes.
	if _, err := token.HMACKeyFromEnv(token.MinHMACKeyBytes); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return fmt.Errorf("security policy: CHATTY_REQUIRE_TOKEN_HMAC=true but %s is missing", token.HMACEnvKey)
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return fmt.Errorf("security policy: CHATTY_REQUIRE_TOKEN_HMAC=true but %s is too short (min %d bytes)", token.HMACEnvKey, token.MinHMACKeyBytes)
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: CHATTY_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
