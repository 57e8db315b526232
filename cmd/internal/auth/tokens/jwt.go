package tokens

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// accessJWTClaims is the JWT body for access tokens.
type accessJWTClaims struct {
	Email       string `json:"email"`
	UserName    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	alg       Algorithm
	method    jwt.SigningMethod
	signKey   any
	verifyKey any

	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration
}

// NewJWTRS256Manager builds an AccessTokenManager signing JWTs with an RSA private key (PEM).
func NewJWTRS256Manager(cfg Config) (AccessTokenManager, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: parse RSA private key: %v", ErrConfig, err)
	}
	return newJWTManager(cfg, AlgorithmRS256, jwt.SigningMethodRS256, key, &key.PublicKey), nil
}

// NewJWTHS256Manager builds an AccessTokenManager signing JWTs with a shared secret.
func NewJWTHS256Manager(cfg Config) (AccessTokenManager, error) {
	if len(cfg.JWTSecret) < minJWTSecretSize {
		return nil, fmt.Errorf("%w: JWT secret too short", ErrConfig)
	}
	secret := []byte(cfg.JWTSecret)
	return newJWTManager(cfg, AlgorithmHS256, jwt.SigningMethodHS256, secret, secret), nil
}

func newJWTManager(cfg Config, alg Algorithm, method jwt.SigningMethod, signKey, verifyKey any) *jwtManager {
	return &jwtManager{
		alg:       alg,
		method:    method,
		signKey:   signKey,
		verifyKey: verifyKey,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
	}
}

func (m *jwtManager) Algorithm() Algorithm { return m.alg }

func (m *jwtManager) Issue(sub Subject, now time.Time) (AccessToken, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return AccessToken{}, fmt.Errorf("tokens: empty subject")
	}

	exp := now.Add(m.ttl)
	jti := uuid.NewString()

	claims := accessJWTClaims{
		Email:    sub.Email,
		UserName: sub.UserName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   sub.UserID,
			Audience:  jwt.ClaimStrings{m.audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	if sub.DisplayName != nil && strings.TrimSpace(*sub.DisplayName) != "" {
		claims.DisplayName = *sub.DisplayName
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
	if err != nil {
		return AccessToken{}, err
	}

	return AccessToken{Token: signed, TokenID: jti, ExpiresAt: exp}, nil
}

func (m *jwtManager) Verify(tok string, now time.Time) (Claims, error) {
	var c accessJWTClaims

	parsed, err := jwt.ParseWithClaims(tok, &c,
		func(*jwt.Token) (any, error) { return m.verifyKey, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if c.Subject == "" || c.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID:   c.Subject,
		Email:    c.Email,
		UserName: c.UserName,
		TokenID:  c.ID,
		Issuer:   c.Issuer,
		Audience: m.audience,
	}
	if c.DisplayName != "" {
		dn := c.DisplayName
		out.DisplayName = &dn
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.NotBefore != nil {
		out.NotBefore = c.NotBefore.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
