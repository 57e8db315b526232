package audit

import (
	"context"
	"testing"
	"time"

	"chatty/cmd/internal/storage/pgdb"
	"chatty/cmd/internal/storage/pgtest"
)

// Integration tests are opt-in and require CHATTY_DATABASE_URL.

func TestPostgresRecorder_UsesEventTime(t *testing.T) {
	t.Parallel()

	pool := pgtest.OpenPool(t)
	schema := pgtest.NewSchema(t, pool)

	rec, err := NewPostgresRecorder(pool, schema, nil)
	if err != nil {
		t.Fatalf("NewPostgresRecorder: %v", err)
	}

	ctx := context.Background()
	at := time.Date(2024, 2, 29, 23, 59, 58, 0, time.UTC)
	rec.Record(ctx, Event{At: at, Action: ActionLogout, UserID: "u1", TokenID: "t1", IP: " 10.0.0.1 "})

	var (
		got time.Time
		ip  *string
	)
	err = pool.QueryRow(ctx,
		`SELECT created_at, ip FROM `+pgdb.Ident(schema, "audit_log")+` WHERE action = $1`,
		ActionLogout,
	).Scan(&got, &ip)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !got.Equal(at) {
		t.Fatalf("created_at=%s want %s", got, at)
	}
	if ip == nil || *ip != "10.0.0.1" {
		t.Fatalf("ip=%v", ip)
	}
}
