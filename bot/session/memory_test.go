package session

import (
	"context"
	"testing"
	"time"

	"github.com/maxexpress/maxbot/bot/flow"
	"github.com/maxexpress/maxbot/bot/market"
)

func TestLoadMaterializesFreshIdleSession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Load(ctx, 42)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.UserID != 42 || sess.State != flow.StateIdle {
		t.Fatalf("fresh session = %+v, want idle for user 42", sess)
	}
	if store.Len() != 0 {
		t.Error("Load must not create a stored row")
	}

	// Idempotence: loading again without a save yields the same value.
	again, err := store.Load(ctx, 42)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again != sess {
		t.Errorf("second Load = %+v, want %+v", again, sess)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	want := Session{
		UserID: 42,
		State:  flow.StateAwaitingQuery,
		Data: flow.Data{
			Marketplace: market.Poizon,
		},
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, 42)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("round-trip = %+v, want %+v", got, want)
	}
}

func TestDeleteResetsToIdle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := Session{UserID: 42, State: flow.StateCompleted}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, 42); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := store.Load(ctx, 42)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != flow.StateIdle {
		t.Errorf("state after delete = %s, want idle", got.State)
	}
}
