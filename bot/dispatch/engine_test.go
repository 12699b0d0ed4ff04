package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/maxexpress/maxbot/bot/event"
	"github.com/maxexpress/maxbot/bot/flow"
	"github.com/maxexpress/maxbot/bot/market"
	"github.com/maxexpress/maxbot/bot/session"
)

func testMachine(t *testing.T) *flow.Machine {
	t.Helper()
	cat, err := market.NewCatalog(market.Config{
		Help1688:      "Помощь по 1688",
		HelpPinduoduo: "Помощь по Pinduoduo",
		HelpPoizon:    "Помощь по Poizon",
		HelpTaobao:    "Помощь по Taobao",
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return flow.NewMachine(cat)
}

// flakyStore fails load and/or save on demand, wrapping a memory store.
type flakyStore struct {
	inner    *session.MemoryStore
	failLoad atomic.Bool
	failSave atomic.Bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{inner: session.NewMemoryStore()}
}

func (f *flakyStore) Load(ctx context.Context, userID int64) (session.Session, error) {
	if f.failLoad.Load() {
		return session.Session{}, fmt.Errorf("%w: connection refused", session.ErrUnavailable)
	}
	return f.inner.Load(ctx, userID)
}

func (f *flakyStore) Save(ctx context.Context, s session.Session) error {
	if f.failSave.Load() {
		return fmt.Errorf("%w: connection refused", session.ErrUnavailable)
	}
	return f.inner.Save(ctx, s)
}

func (f *flakyStore) Delete(ctx context.Context, userID int64) error {
	return f.inner.Delete(ctx, userID)
}

func TestProcessWalksFullDialogue(t *testing.T) {
	store := session.NewMemoryStore()
	e := NewEngine(store, testMachine(t), nil)
	ctx := context.Background()

	reply := e.Process(ctx, 1, event.Command{Name: "start"})
	if len(reply.Buttons) != 4 {
		t.Fatalf("start reply has %d buttons, want 4", len(reply.Buttons))
	}

	reply = e.Process(ctx, 1, event.Callback{Key: flow.CallbackMarket, Payload: "poizon"})
	if !strings.HasPrefix(reply.Text, "Помощь по Poizon") {
		t.Fatalf("marketplace reply = %q, want Poizon help", reply.Text)
	}

	e.Process(ctx, 1, event.Text{Body: "sneaker link"})

	sess, err := store.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sess.State != flow.StateCompleted || sess.Data.Query != "sneaker link" {
		t.Errorf("stored session = %+v, want completed with the query", sess)
	}
}

func TestCancelDeletesStoredSession(t *testing.T) {
	store := session.NewMemoryStore()
	e := NewEngine(store, testMachine(t), nil)
	ctx := context.Background()

	e.Process(ctx, 1, event.Command{Name: "start"})
	if store.Len() != 1 {
		t.Fatalf("stored sessions = %d, want 1", store.Len())
	}

	e.Process(ctx, 1, event.Command{Name: "cancel"})
	if store.Len() != 0 {
		t.Errorf("stored sessions after /cancel = %d, want 0", store.Len())
	}
}

// A save failure must not swallow the computed reply, and once the store is
// unreachable the next event degrades to a fresh idle session instead of
// resurrecting the uncommitted state.
func TestStoreUnavailableDegradesGracefully(t *testing.T) {
	store := newFlakyStore()
	e := NewEngine(store, testMachine(t), nil)
	ctx := context.Background()

	e.Process(ctx, 1, event.Command{Name: "start"})

	store.failSave.Store(true)
	reply := e.Process(ctx, 1, event.Callback{Key: flow.CallbackMarket, Payload: "poizon"})
	if !strings.HasPrefix(reply.Text, "Помощь по Poizon") {
		t.Fatalf("reply = %q, want the computed Poizon help despite save failure", reply.Text)
	}

	store.failLoad.Store(true)
	reply = e.Process(ctx, 1, event.Text{Body: "sneaker link"})
	if strings.Contains(reply.Text, "принят") {
		t.Errorf("reply = %q: text must not complete a flow the store never saw", reply.Text)
	}
}

// raceStore flags any overlap of two events inside one user's critical
// section, proving per-user serialization.
type raceStore struct {
	inner  *session.MemoryStore
	mu     sync.Mutex
	active map[int64]int
	raced  atomic.Bool
}

func newRaceStore() *raceStore {
	return &raceStore{inner: session.NewMemoryStore(), active: make(map[int64]int)}
}

func (r *raceStore) enter(userID int64) {
	r.mu.Lock()
	r.active[userID]++
	if r.active[userID] > 1 {
		r.raced.Store(true)
	}
	r.mu.Unlock()
}

func (r *raceStore) leave(userID int64) {
	r.mu.Lock()
	r.active[userID]--
	r.mu.Unlock()
}

func (r *raceStore) Load(ctx context.Context, userID int64) (session.Session, error) {
	r.enter(userID)
	return r.inner.Load(ctx, userID)
}

func (r *raceStore) Save(ctx context.Context, s session.Session) error {
	defer r.leave(s.UserID)
	return r.inner.Save(ctx, s)
}

func (r *raceStore) Delete(ctx context.Context, userID int64) error {
	defer r.leave(userID)
	return r.inner.Delete(ctx, userID)
}

func TestEventsForOneUserAreSerialized(t *testing.T) {
	store := newRaceStore()
	e := NewEngine(store, testMachine(t), nil)
	ctx := context.Background()

	const users = 8
	const eventsPerUser = 25

	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		for i := 0; i < eventsPerUser; i++ {
			wg.Add(1)
			go func(userID int64, i int) {
				defer wg.Done()
				if i%2 == 0 {
					e.Process(ctx, userID, event.Command{Name: "start"})
				} else {
					e.Process(ctx, userID, event.Callback{Key: flow.CallbackMarket, Payload: "taobao"})
				}
			}(u, i)
		}
	}
	wg.Wait()

	if store.raced.Load() {
		t.Fatal("two events for one user overlapped inside load-transition-save")
	}
	if got := e.ActiveDialogues(); got != 0 {
		t.Errorf("lock map holds %d entries after drain, want 0 (eviction)", got)
	}
}

type fakeActions struct {
	registered atomic.Int32
	tracked    atomic.Int32
	lastCode   string
	profile    flow.Data
}

func (a *fakeActions) RegisterUser(_ context.Context, _ int64, profile flow.Data) (string, error) {
	a.registered.Add(1)
	a.profile = profile
	return "Вы зарегистрированы!\nВаш клиентский код: MX201 💼", nil
}

func (a *fakeActions) TrackParcel(_ context.Context, trackCode string) (string, error) {
	a.tracked.Add(1)
	a.lastCode = trackCode
	return "", nil
}

func TestActionsExecuteAfterTransition(t *testing.T) {
	store := session.NewMemoryStore()
	actions := &fakeActions{}
	e := NewEngine(store, testMachine(t), actions)
	ctx := context.Background()

	e.Process(ctx, 1, event.Command{Name: "register"})
	e.Process(ctx, 1, event.Text{Body: "Иван"})
	e.Process(ctx, 1, event.Text{Body: "Иванов"})
	reply := e.Process(ctx, 1, event.Text{Body: "996555123456"})

	if actions.registered.Load() != 1 {
		t.Fatalf("RegisterUser called %d times, want 1", actions.registered.Load())
	}
	if actions.profile.FirstName != "Иван" || actions.profile.Phone != "996555123456" {
		t.Errorf("registered profile = %+v", actions.profile)
	}
	if !strings.Contains(reply.Text, "MX201") {
		t.Errorf("reply = %q, want the action's text with the client code", reply.Text)
	}

	e.Process(ctx, 1, event.Command{Name: "track"})
	reply = e.Process(ctx, 1, event.Text{Body: "LP00112233"})
	if actions.tracked.Load() != 1 || actions.lastCode != "LP00112233" {
		t.Fatalf("TrackParcel calls = %d, code = %q", actions.tracked.Load(), actions.lastCode)
	}
	// Empty action text keeps the transition's own wording.
	if reply.Text == "" {
		t.Error("track reply must not be empty")
	}
}
