package tokens

import (
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

type pasetoV4PublicManager struct {
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds an AccessTokenManager based on PASETO v4.public.
//
// It uses an Ed25519 asymmetric keypair and enforces issuer, audience and time rules.
// Time checks run against the caller's clock, shifted by the configured skew.
func NewPasetoV4PublicManager(cfg Config) (AccessTokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: paseto secret key", ErrConfig)
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// validWithSkew applies the skew like the JWT leeway: iat and nbf may be up to
// skew in the future, and exp is honoured until skew after it passes.
func validWithSkew(now time.Time, skew time.Duration) paseto.Rule {
	return func(tok paseto.Token) error {
		exp, err := tok.GetExpiration()
		if err != nil {
			return err
		}
		if !now.Before(exp.Add(skew)) {
			return fmt.Errorf("tokens: expired at %s", exp.Format(time.RFC3339))
		}
		late := now.Add(skew)
		if nbf, err := tok.GetNotBefore(); err == nil && late.Before(nbf) {
			return fmt.Errorf("tokens: not valid before %s", nbf.Format(time.RFC3339))
		}
		if iat, err := tok.GetIssuedAt(); err == nil && late.Before(iat) {
			return fmt.Errorf("tokens: issued in the future")
		}
		return nil
	}
}

func (m *pasetoV4PublicManager) Algorithm() Algorithm { return AlgorithmPaseto }

func (m *pasetoV4PublicManager) Issue(sub Subject, now time.Time) (AccessToken, error) {
	if strings.TrimSpace(sub.UserID) == "" {
		return AccessToken{}, fmt.Errorf("tokens: empty subject")
	}

	exp := now.Add(m.ttl)
	jti := uuid.NewString()

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetAudience(m.audience)
	tok.SetSubject(sub.UserID)
	tok.SetJti(jti)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)

	tok.SetString("email", sub.Email)
	tok.SetString("username", sub.UserName)
	if sub.DisplayName != nil && strings.TrimSpace(*sub.DisplayName) != "" {
		tok.SetString("displayName", *sub.DisplayName)
	}

	return AccessToken{Token: tok.V4Sign(m.secret, nil), TokenID: jti, ExpiresAt: exp}, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (Claims, error) {
	// Fresh parser per call; rules accumulate on the value.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ForAudience(m.audience))
	p.AddRule(validWithSkew(now, m.clockSkew))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidToken
	}
	jti, err := parsed.GetJti()
	if err != nil || jti == "" {
		return Claims{}, ErrInvalidToken
	}

	iss, _ := parsed.GetIssuer()
	aud, _ := parsed.GetAudience()
	exp, _ := parsed.GetExpiration()
	iat, _ := parsed.GetIssuedAt()
	nbf, _ := parsed.GetNotBefore()
	email, _ := parsed.GetString("email")
	username, _ := parsed.GetString("username")

	out := Claims{
		UserID:    sub,
		Email:     email,
		UserName:  username,
		TokenID:   jti,
		Issuer:    iss,
		Audience:  aud,
		IssuedAt:  iat,
		NotBefore: nbf,
		ExpiresAt: exp,
	}
	if dn, err := parsed.GetString("displayName"); err == nil && dn != "" {
		out.DisplayName = &dn
	}
	return out, nil
}
