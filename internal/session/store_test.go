package session_test

import (
	"testing"
	"time"

	"github.com/voxtask/voxtask/internal/nlu"
	"github.com/voxtask/voxtask/internal/session"
)

// fakeClock is a controllable time source for expiry tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(window time.Duration, maxTurns int) (*session.Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)}
	return session.NewStore(window, maxTurns, session.WithClock(clock.Now)), clock
}

func TestStore_SetGetClear(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(5*time.Minute, 10)

	store.Set("u1", session.Context{
		Intent:       nlu.IntentCreateTask,
		Entities:     nlu.EntitySet{nlu.SlotPriority: "medium"},
		LastActivity: clock.Now(),
		TurnCount:    1,
	})

	got, ok := store.Get("u1")
	if !ok {
		t.Fatal("expected context for u1")
	}
	if got.Intent != nlu.IntentCreateTask || got.TurnCount != 1 {
		t.Errorf("got %+v", got)
	}

	store.Clear("u1")
	if _, ok := store.Get("u1"); ok {
		t.Error("context should be gone after Clear")
	}
}

func TestStore_InactivityExpiry(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(5*time.Minute, 10)

	store.Set("u1", session.Context{Intent: nlu.IntentCreateTask, LastActivity: clock.Now()})

	clock.Advance(5*time.Minute + time.Second)
	if _, ok := store.Get("u1"); ok {
		t.Error("idle context must be invisible after the inactivity window")
	}
	if store.Len() != 0 {
		t.Error("expired context should be evicted on read")
	}
}

func TestStore_MaxTurnsExpiry(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(5*time.Minute, 3)

	store.Set("u1", session.Context{Intent: nlu.IntentCreateTask, LastActivity: clock.Now(), TurnCount: 3})
	if _, ok := store.Get("u1"); ok {
		t.Error("context at max turns must be treated as absent")
	}
}

func TestStore_SetReplacesExisting(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(5*time.Minute, 10)

	store.Set("u1", session.Context{Intent: nlu.IntentCreateTask, LastActivity: clock.Now()})
	store.Set("u1", session.Context{Intent: nlu.IntentCreateProject, LastActivity: clock.Now()})

	got, ok := store.Get("u1")
	if !ok || got.Intent != nlu.IntentCreateProject {
		t.Errorf("got %+v, want single replaced context", got)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestStore_EntitiesAreCopied(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(5*time.Minute, 10)

	entities := nlu.EntitySet{nlu.SlotTaskName: "original"}
	store.Set("u1", session.Context{Intent: nlu.IntentCreateTask, Entities: entities, LastActivity: clock.Now()})
	entities[nlu.SlotTaskName] = "mutated"

	got, _ := store.Get("u1")
	if got.Entities[nlu.SlotTaskName] != "original" {
		t.Error("stored entities must not alias the caller's map")
	}
}

func TestStore_Sweep(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(time.Minute, 10)

	store.Set("old", session.Context{Intent: nlu.IntentCreateTask, LastActivity: clock.Now()})
	clock.Advance(2 * time.Minute)
	store.Set("fresh", session.Context{Intent: nlu.IntentHelp, LastActivity: clock.Now()})

	if n := store.Sweep(); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Error("unexpired context must survive the sweep")
	}
}

func TestStore_UsersAreIndependent(t *testing.T) {
	t.Parallel()
	store, clock := newTestStore(5*time.Minute, 10)

	store.Set("u1", session.Context{Intent: nlu.IntentCreateTask, LastActivity: clock.Now()})
	store.Clear("u2")

	if _, ok := store.Get("u1"); !ok {
		t.Error("clearing one user must not affect another")
	}
}
