package tokens

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"chatty/cmd/security/token"
)

// Algorithm names the access-token scheme selected from the configured key material.
type Algorithm string

const (
	AlgorithmRS256   Algorithm = "RS256"
	AlgorithmPaseto  Algorithm = "v4.public"
	AlgorithmHS256   Algorithm = "HS256"
	minJWTSecretSize           = 32
)

// Config defines the token issuance settings.
type Config struct {
	// Issuer and Audience land in the "iss" and "aud" claims and are enforced on verify.
	Issuer   string
	Audience string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// ClockSkew is tolerated on "nbf"/"exp" during verification.
	ClockSkew time.Duration

	// RefreshTokenBytes is the entropy of each opaque refresh secret.
	RefreshTokenBytes int

	// Signing material; the first non-empty one (in this order) wins.
	JWTPrivateKeyPEM     string
	PasetoV4SecretKeyHex string
	JWTSecret            string

	// RefreshHMACKey switches refresh hashing to HMAC-SHA256 when set.
	RefreshHMACKey []byte
}

// DefaultConfig returns the defaults without any signing material.
func DefaultConfig() Config {
	return Config{
		Issuer:            "Chatty.BE",
		Audience:          "Chatty.Clients",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   30 * 24 * time.Hour,
		ClockSkew:         30 * time.Second,
		RefreshTokenBytes: 64,
	}
}

// Algorithm reports which scheme the configured key material selects.
// It returns "" when no key material is configured.
func (c Config) Algorithm() Algorithm {
	switch {
	case strings.TrimSpace(c.JWTPrivateKeyPEM) != "":
		return AlgorithmRS256
	case strings.TrimSpace(c.PasetoV4SecretKeyHex) != "":
		return AlgorithmPaseto
	case c.JWTSecret != "":
		return AlgorithmHS256
	default:
		return ""
	}
}

// Validate checks invariants that LoadConfigFromEnv also enforces, so hand-built configs get the same guarantees.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" || strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("%w: issuer and audience are required", ErrConfig)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token lifetimes must be positive", ErrConfig)
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("%w: negative clock skew", ErrConfig)
	}
	if c.RefreshTokenBytes < 32 || c.RefreshTokenBytes > 128 {
		return fmt.Errorf("%w: refresh token bytes out of range [32..128]", ErrConfig)
	}
	switch c.Algorithm() {
	case "":
		return fmt.Errorf("%w: no signing key configured", ErrConfig)
	case AlgorithmHS256:
		if len(c.JWTSecret) < minJWTSecretSize {
			return fmt.Errorf("%w: CHATTY_JWT_SECRET must be at least %d bytes", ErrConfig, minJWTSecretSize)
		}
	}
	return nil
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Signing material (at least one required):
//   - CHATTY_JWT_PRIVATE_KEY (PEM; literal "\n" sequences are accepted)
//   - CHATTY_JWT_PRIVATE_KEY_FILE (path to a PEM file)
//   - CHATTY_PASETO_V4_SECRET_KEY_HEX
//   - CHATTY_JWT_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - CHATTY_AUTH_ISSUER
//   - CHATTY_AUTH_AUDIENCE
//   - CHATTY_AUTH_ACCESS_TTL
//   - CHATTY_AUTH_REFRESH_TTL
//   - CHATTY_AUTH_CLOCK_SKEW
//   - CHATTY_AUTH_REFRESH_TOKEN_BYTES
//   - CHATTY_TOKEN_HMAC_KEY (required when CHATTY_REQUIRE_TOKEN_HMAC=true)
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("CHATTY_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("CHATTY_AUTH_AUDIENCE")); v != "" {
		cfg.Audience = v
	}

	var err error
	if cfg.AccessTokenTTL, err = envDuration("CHATTY_AUTH_ACCESS_TTL", cfg.AccessTokenTTL, false); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = envDuration("CHATTY_AUTH_REFRESH_TTL", cfg.RefreshTokenTTL, false); err != nil {
		return Config{}, err
	}
	if cfg.ClockSkew, err = envDuration("CHATTY_AUTH_CLOCK_SKEW", cfg.ClockSkew, true); err != nil {
		return Config{}, err
	}

	if v := strings.TrimSpace(os.Getenv("CHATTY_AUTH_REFRESH_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 128 {
			return Config{}, fmt.Errorf("%w: CHATTY_AUTH_REFRESH_TOKEN_BYTES", ErrConfig)
		}
		cfg.RefreshTokenBytes = n
	}

	cfg.JWTPrivateKeyPEM = strings.ReplaceAll(os.Getenv("CHATTY_JWT_PRIVATE_KEY"), `\n`, "\n")
	if cfg.JWTPrivateKeyPEM == "" {
		if path := strings.TrimSpace(os.Getenv("CHATTY_JWT_PRIVATE_KEY_FILE")); path != "" {
			b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied key path.
			if err != nil {
				return Config{}, fmt.Errorf("%w: read CHATTY_JWT_PRIVATE_KEY_FILE: %v", ErrConfig, err)
			}
			cfg.JWTPrivateKeyPEM = string(b)
		}
	}
	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("CHATTY_PASETO_V4_SECRET_KEY_HEX"))
	cfg.JWTSecret = os.Getenv("CHATTY_JWT_SECRET")

	requireHMAC, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("CHATTY_REQUIRE_TOKEN_HMAC")))
	hasher, err := token.RefreshHasherFromEnv(requireHMAC)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.RefreshHMACKey = hasher.Key()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envDuration(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%w: %s", ErrConfig, key)
	}
	return d, nil
}
