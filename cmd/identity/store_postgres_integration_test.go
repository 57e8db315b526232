package identity

import (
	"context"
	"testing"
	"time"

	"chatty/cmd/internal/storage/pgtest"
)

// Integration tests are opt-in and require CHATTY_DATABASE_URL.

func newIntegrationStore(t *testing.T) *PostgresStore {
	t.Helper()

	pool := pgtest.OpenPool(t)
	schema := pgtest.NewSchema(t, pool)

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s
}

func mustAddUser(t *testing.T, s *PostgresStore, userName, email string) User {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u, err := NewUser(userName, email, "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$a2V5", time.Now().UTC().Truncate(time.Microsecond))
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := s.Add(ctx, u); err != nil {
		t.Fatalf("Add(%s): %v", userName, err)
	}
	return u
}

func TestPostgresStore_AddAndLookup(t *testing.T) {
	t.Parallel()

	s := newIntegrationStore(t)
	u := mustAddUser(t, s, "Navid", "Navid@Example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	byID, err := s.GetByID(ctx, u.ID)
	if err != nil || byID == nil {
		t.Fatalf("GetByID: %v %v", byID, err)
	}
	if byID.UserName != "Navid" || byID.NormalizedEmail != "navid@example.com" {
		t.Fatalf("unexpected user: %+v", byID)
	}
	if !byID.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", byID.CreatedAt, u.CreatedAt)
	}

	byEmail, err := s.GetByEmail(ctx, "navid@example.com")
	if err != nil || byEmail == nil || byEmail.ID != u.ID {
		t.Fatalf("GetByEmail: %v %v", byEmail, err)
	}
	byName, err := s.GetByUserName(ctx, "navid")
	if err != nil || byName == nil || byName.ID != u.ID {
		t.Fatalf("GetByUserName: %v %v", byName, err)
	}

	missing, err := s.GetByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing user, got %v %v", missing, err)
	}

	taken, err := s.IsEmailTaken(ctx, "navid@example.com")
	if err != nil || !taken {
		t.Fatalf("IsEmailTaken: %v %v", taken, err)
	}
	taken, err = s.IsUserNameTaken(ctx, "someone-else")
	if err != nil || taken {
		t.Fatalf("IsUserNameTaken(free): %v %v", taken, err)
	}
}

func TestPostgresStore_Add_ConflictUserName_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := newIntegrationStore(t)
	mustAddUser(t, s, "Navid", "one@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dup, err := NewUser("nAvId", "two@example.com", "$argon2id$stub", time.Now().UTC())
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	err = s.Add(ctx, dup)
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f := ConflictField(err); f != FieldUserName {
		t.Fatalf("expected conflict field %q, got %q", FieldUserName, f)
	}
}

func TestPostgresStore_Add_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s := newIntegrationStore(t)
	mustAddUser(t, s, "first", "User@Example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dup, err := NewUser("second", " user@EXAMPLE.com ", "$argon2id$stub", time.Now().UTC())
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	err = s.Add(ctx, dup)
	if !IsConflict(err) || ConflictField(err) != FieldEmail {
		t.Fatalf("expected email conflict, got %v", err)
	}
}

func TestPostgresStore_Update(t *testing.T) {
	t.Parallel()

	s := newIntegrationStore(t)
	u := mustAddUser(t, s, "mutable", "mutable@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	dn := "Mutable M."
	u.PasswordHash = "$argon2id$changed"
	u.UpdatedAt = &now
	u.DisplayName = &dn
	if err := s.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.GetByID(ctx, u.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v %v", got, err)
	}
	if got.PasswordHash != "$argon2id$changed" {
		t.Fatalf("password hash not updated")
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at mismatch: %v", got.UpdatedAt)
	}
	if got.DisplayName == nil || *got.DisplayName != dn {
		t.Fatalf("display name mismatch: %v", got.DisplayName)
	}

	ghost := u
	ghost.ID, _ = NewULID(now)
	if err := s.Update(ctx, ghost); !IsNotFound(err) {
		t.Fatalf("expected not found for missing row, got %v", err)
	}
}
