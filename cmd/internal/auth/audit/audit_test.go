package audit

import (
	"context"
	"sync"
	"testing"
)

func TestMemory_RecordsInOrder(t *testing.T) {
	t.Parallel()

	m := &Memory{}
	m.Record(context.Background(), Event{Action: ActionLoginSuccess, UserID: "u1"})
	m.Record(context.Background(), Event{Action: ActionLogout, UserID: "u1", TokenID: "t1"})

	got := m.Actions()
	if len(got) != 2 || got[0] != ActionLoginSuccess || got[1] != ActionLogout {
		t.Fatalf("unexpected actions: %v", got)
	}

	evs := m.Events()
	evs[0].Action = "mutated"
	if m.Actions()[0] != ActionLoginSuccess {
		t.Fatalf("Events must return a copy")
	}
}

func TestMemory_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	m := &Memory{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(context.Background(), Event{Action: ActionRefreshSuccess})
		}()
	}
	wg.Wait()

	if n := len(m.Events()); n != 50 {
		t.Fatalf("expected 50 events, got %d", n)
	}
}

func TestNewPostgresRecorder_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresRecorder(nil, `bad"schema`, nil); err == nil {
		t.Fatalf("expected error for invalid schema")
	}
	r, err := NewPostgresRecorder(nil, "", nil)
	if err != nil {
		t.Fatalf("default schema: %v", err)
	}
	// A recorder without a handle drops events silently.
	r.Record(context.Background(), Event{Action: ActionLogout})
}

func TestNop(t *testing.T) {
	t.Parallel()
	Nop{}.Record(context.Background(), Event{Action: ActionLogout})
}
