package tokens

import (
	"fmt"
	"time"

	"chatty/cmd/security/token"
)

// Subject is the identity an access token is minted for.
type Subject struct {
	UserID      string
	Email       string
	UserName    string
	DisplayName *string
}

// AccessToken is a signed access token and its expiry.
type AccessToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// RefreshSecret is a freshly minted opaque refresh secret.
// Secret must reach the client exactly once and is never logged or stored.
type RefreshSecret struct {
	Secret    string
	Hash      string
	ExpiresAt time.Time
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID      string
	Email       string
	UserName    string
	DisplayName *string
	TokenID     string
	Issuer      string
	Audience    string
	IssuedAt    time.Time
	NotBefore   time.Time
	ExpiresAt   time.Time
}

// AccessTokenManager issues and verifies short-lived access tokens for one signing scheme.
type AccessTokenManager interface {
	Issue(sub Subject, now time.Time) (AccessToken, error)
	Verify(token string, now time.Time) (Claims, error)
	Algorithm() Algorithm
}

// Signer bundles the access-token scheme with refresh-secret minting and hashing.
// It is built once at startup and shared; all methods are safe for concurrent use.
type Signer struct {
	access       AccessTokenManager
	hasher       token.RefreshHasher
	refreshTTL   time.Duration
	refreshBytes int
}

// New validates cfg and builds the Signer for the selected scheme.
func New(cfg Config) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		access AccessTokenManager
		err    error
	)
	switch cfg.Algorithm() {
	case AlgorithmRS256:
		access, err = NewJWTRS256Manager(cfg)
	case AlgorithmPaseto:
		access, err = NewPasetoV4PublicManager(cfg)
	case AlgorithmHS256:
		access, err = NewJWTHS256Manager(cfg)
	default:
		err = fmt.Errorf("%w: no signing key configured", ErrConfig)
	}
	if err != nil {
		return nil, err
	}

	return &Signer{
		access:       access,
		hasher:       token.NewRefreshHasher(cfg.RefreshHMACKey),
		refreshTTL:   cfg.RefreshTokenTTL,
		refreshBytes: cfg.RefreshTokenBytes,
	}, nil
}

// Algorithm reports the access-token scheme in use.
func (s *Signer) Algorithm() Algorithm { return s.access.Algorithm() }

// IssueAccessToken mints a signed access token with a fresh jti.
func (s *Signer) IssueAccessToken(sub Subject, now time.Time) (AccessToken, error) {
	return s.access.Issue(sub, now)
}

// VerifyAccessToken checks signature, issuer, audience and time bounds at now.
func (s *Signer) VerifyAccessToken(tok string, now time.Time) (Claims, error) {
	return s.access.Verify(tok, now)
}

// IssueRefreshSecret mints an opaque refresh secret valid until now + refresh TTL.
func (s *Signer) IssueRefreshSecret(now time.Time) (RefreshSecret, error) {
	plain, err := newOpaqueRefreshToken(s.refreshBytes)
	if err != nil {
		return RefreshSecret{}, err
	}
	return RefreshSecret{
		Secret:    plain,
		Hash:      s.hasher.Hash(plain),
		ExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

// HashRefreshSecret returns the stored lookup form of a presented secret.
func (s *Signer) HashRefreshSecret(secret string) string {
	return s.hasher.Hash(secret)
}
