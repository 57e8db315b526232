// Package audit records security-relevant auth events.
//
// Recording is best effort: failures are logged and never change the outcome
// of the operation that produced the event.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatty/cmd/internal/storage/pgdb"
)

// Audit actions.
const (
	ActionRegister           = "auth.register"
	ActionLoginSuccess       = "auth.login.success"
	ActionLoginFailed        = "auth.login.failed"
	ActionRefreshSuccess     = "auth.refresh.success"
	ActionRefreshReuse       = "auth.refresh.reuse_detected"
	ActionRefreshExpired     = "auth.refresh.expired"
	ActionLogout             = "auth.logout"
	ActionLogoutAll          = "auth.logout_all"
	ActionPasswordChanged    = "auth.password.changed"
	ActionPasswordChangeFail = "auth.password.change_failed"
)

// Event is one audit row. Meta must never carry secrets or token material.
// A zero At is stamped with the wall clock on insert.
type Event struct {
	At      time.Time
	Action  string
	UserID  string
	TokenID string
	IP      string
	Meta    map[string]any
}

// Recorder stores audit events.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Nop discards events.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Event) {}

// PostgresRecorder inserts events into the audit_log table.
type PostgresRecorder struct {
	db     pgdb.DBTX
	schema string
	log    *slog.Logger
}

// NewPostgresRecorder builds a recorder; an empty schema means the default.
func NewPostgresRecorder(db pgdb.DBTX, schema string, log *slog.Logger) (*PostgresRecorder, error) {
	if schema == "" {
		schema = pgdb.DefaultSchema
	}
	v, err := pgdb.CheckSchema(schema)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRecorder{db: db, schema: v, log: log}, nil
}

// Record implements Recorder.
func (r *PostgresRecorder) Record(ctx context.Context, e Event) {
	if r == nil || r.db == nil {
		return
	}

	action := strings.TrimSpace(e.Action)
	if action == "" {
		return
	}

	var metaVal *string
	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}

	tbl := pgdb.Ident(r.schema, "audit_log")

	_, err := r.db.Exec(ctx,
		`INSERT INTO `+tbl+` (user_id, token_id, action, created_at, ip, meta)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		trimOrNil(e.UserID), trimOrNil(e.TokenID), action, at.UTC(), trimOrNil(e.IP), metaVal,
	)
	if err != nil {
		r.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

// Memory keeps events in memory; used by tests and the in-memory store mode.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Actions returns the recorded actions in order.
func (m *Memory) Actions() []string {
	evs := m.Events()
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Action)
	}
	return out
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
