package session

import (
	"fmt"
	"strings"
	"time"

	"chatty/cmd/identity/ids"
)

// Revocation reasons stored in RefreshTokenRecord.RevokedReason.
// They form the audit trail; callers never see them.
const (
	ReasonReplaced       = "replaced"
	ReasonExpired        = "expired"
	ReasonReuseDetected  = "reuse detected"
	ReasonUserLogout     = "user logout"
	ReasonLogoutAll      = "logout all"
	ReasonPasswordChange = "password change"
)

// State is the lifecycle position of a record.
type State string

const (
	StateActive         State = "active"
	StateExpired        State = "expired"
	StateRotated        State = "rotated"
	StateExpiredRevoked State = "expired_revoked"
	StateLoggedOut      State = "logged_out"
	StateReuseRevoked   State = "reuse_revoked"
)

// RefreshTokenRecord is the stored form of one issued refresh secret.
type RefreshTokenRecord struct {
	ID          string
	UserID      string
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CreatedByIP *string

	RevokedAt         *time.Time
	RevokedReason     *string
	RevokedByIP       *string
	ReplacedByTokenID *string
	Reused            bool
}

// NewRecord builds an active record for a freshly issued secret.
func NewRecord(userID, tokenHash string, now, expiresAt time.Time, createdByIP string) (RefreshTokenRecord, error) {
	if strings.TrimSpace(userID) == "" || tokenHash == "" {
		return RefreshTokenRecord{}, fmt.Errorf("%w: missing user or hash", ErrInvalidRecord)
	}
	if !expiresAt.After(now) {
		return RefreshTokenRecord{}, fmt.Errorf("%w: expiry not after creation", ErrInvalidRecord)
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return RefreshTokenRecord{}, err
	}

	return RefreshTokenRecord{
		ID:          id,
		UserID:      userID,
		TokenHash:   tokenHash,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		CreatedByIP: optional(createdByIP),
	}, nil
}

// IsRevoked reports whether the record reached a terminal state.
func (r RefreshTokenRecord) IsRevoked() bool { return r.RevokedAt != nil }

// IsExpired reports whether now is at or past ExpiresAt.
func (r RefreshTokenRecord) IsExpired(now time.Time) bool { return !r.ExpiresAt.After(now) }

// IsActive reports whether the record can still be exchanged.
func (r RefreshTokenRecord) IsActive(now time.Time) bool {
	return !r.IsRevoked() && !r.IsExpired(now)
}

// State derives the lifecycle state at now.
func (r RefreshTokenRecord) State(now time.Time) State {
	if !r.IsRevoked() {
		if r.IsExpired(now) {
			return StateExpired
		}
		return StateActive
	}
	if r.Reused {
		return StateReuseRevoked
	}

	reason := ""
	if r.RevokedReason != nil {
		reason = *r.RevokedReason
	}
	switch reason {
	case ReasonReplaced:
		return StateRotated
	case ReasonExpired:
		return StateExpiredRevoked
	case ReasonReuseDetected:
		return StateReuseRevoked
	default:
		return StateLoggedOut
	}
}

// Revoke moves an unrevoked record to a terminal state.
// replacedBy is only meaningful for rotation and may be empty.
func (r *RefreshTokenRecord) Revoke(now time.Time, reason, ip, replacedBy string) error {
	if r.IsRevoked() {
		return ErrAlreadyRevoked
	}
	if replacedBy != "" && (!ids.Valid(replacedBy) || replacedBy == r.ID) {
		return fmt.Errorf("%w: bad replacement id %q", ErrInvalidRecord, replacedBy)
	}

	at := now
	r.RevokedAt = &at
	r.RevokedReason = optional(reason)
	r.RevokedByIP = optional(ip)
	r.ReplacedByTokenID = optional(replacedBy)
	return nil
}

// RevokeForReuse revokes the record as part of a reuse cascade.
func (r *RefreshTokenRecord) RevokeForReuse(now time.Time, ip string) error {
	if err := r.Revoke(now, ReasonReuseDetected, ip, ""); err != nil {
		return err
	}
	r.Reused = true
	return nil
}

// Clone returns a deep copy; pointer fields are not shared.
func (r RefreshTokenRecord) Clone() RefreshTokenRecord {
	out := r
	out.CreatedByIP = clonePtr(r.CreatedByIP)
	out.RevokedAt = clonePtr(r.RevokedAt)
	out.RevokedReason = clonePtr(r.RevokedReason)
	out.RevokedByIP = clonePtr(r.RevokedByIP)
	out.ReplacedByTokenID = clonePtr(r.ReplacedByTokenID)
	return out
}

// View is the client-facing projection of a record.
type View struct {
	TokenID     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CreatedByIP *string
	IsRevoked   bool
	IsReused    bool
}

// View projects the record.
func (r RefreshTokenRecord) View() View {
	return View{
		TokenID:     r.ID,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		CreatedByIP: clonePtr(r.CreatedByIP),
		IsRevoked:   r.IsRevoked(),
		IsReused:    r.Reused,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
