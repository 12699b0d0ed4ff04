package flow

import (
	"strings"
	"testing"

	"github.com/maxexpress/maxbot/bot/event"
	"github.com/maxexpress/maxbot/bot/market"
)

func newTestMachine(t *testing.T) *Machine {
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
	return NewMachine(cat)
}

func TestStartShowsAllMarketplaces(t *testing.T) {
	m := newTestMachine(t)

	next, _, reply := m.Transition(StateIdle, Data{}, event.Command{Name: "start"})
	if next != StateAwaitingMarketplace {
		t.Fatalf("next = %s, want %s", next, StateAwaitingMarketplace)
	}
	if len(reply.Buttons) != len(market.Kinds()) {
		t.Fatalf("menu has %d buttons, want %d", len(reply.Buttons), len(market.Kinds()))
	}
	for _, k := range market.Kinds() {
		found := false
		for _, b := range reply.Buttons {
			if b.Payload == string(k) && b.Key == CallbackMarket {
				found = true
			}
		}
		if !found {
			t.Errorf("menu is missing marketplace %s", k)
		}
	}
}

func TestMarketplaceChoiceYieldsHelpText(t *testing.T) {
	m := newTestMachine(t)

	ev := event.Callback{Key: CallbackMarket, Payload: "poizon"}
	next, data, reply := m.Transition(StateAwaitingMarketplace, Data{}, ev)
	if next != StateAwaitingQuery {
		t.Fatalf("next = %s, want %s", next, StateAwaitingQuery)
	}
	if data.Marketplace != market.Poizon {
		t.Fatalf("marketplace = %s, want %s", data.Marketplace, market.Poizon)
	}
	if !strings.HasPrefix(reply.Text, "Помощь по Poizon") {
		t.Errorf("reply %q does not start with the configured help text", reply.Text)
	}
}

func TestInvalidMarketplaceRepromptsWithoutTransition(t *testing.T) {
	m := newTestMachine(t)

	cases := []event.Event{
		event.Callback{Key: CallbackMarket, Payload: "aliexpress"},
		event.Callback{Key: "other", Payload: "poizon"},
		event.Text{Body: "poizon"},
	}
	for _, ev := range cases {
		next, _, reply := m.Transition(StateAwaitingMarketplace, Data{}, ev)
		if next != StateAwaitingMarketplace {
			t.Errorf("%#v: next = %s, want unchanged", ev, next)
		}
		if len(reply.Buttons) == 0 {
			t.Errorf("%#v: re-prompt must offer the menu again", ev)
		}
	}
}

func TestQueryCompletesFlow(t *testing.T) {
	m := newTestMachine(t)

	seed := Data{Marketplace: market.Poizon}
	next, data, reply := m.Transition(StateAwaitingQuery, seed, event.Text{Body: "sneaker link"})
	if next != StateCompleted {
		t.Fatalf("next = %s, want %s", next, StateCompleted)
	}
	if data.Marketplace != market.Poizon || data.Query != "sneaker link" {
		t.Fatalf("data = %+v, want marketplace and query preserved", data)
	}
	if reply.Text == "" {
		t.Error("completion must acknowledge the query")
	}

	// Completed is a resting state: another text does not restart anything.
	again, _, _ := m.Transition(next, data, event.Text{Body: "more"})
	if again != StateCompleted {
		t.Errorf("completed + text = %s, want unchanged", again)
	}

	// /start restarts the flow.
	restart, _, _ := m.Transition(next, data, event.Command{Name: "start"})
	if restart != StateAwaitingMarketplace {
		t.Errorf("completed + /start = %s, want %s", restart, StateAwaitingMarketplace)
	}
}

func TestCancelResetsFromAnyState(t *testing.T) {
	m := newTestMachine(t)

	for _, st := range States() {
		next, data, reply := m.Transition(st, Data{Marketplace: market.Taobao}, event.Command{Name: "cancel"})
		if next != StateIdle {
			t.Errorf("%s + /cancel = %s, want idle", st, next)
		}
		if data != (Data{}) {
			t.Errorf("%s + /cancel kept payload %+v", st, data)
		}
		if !reply.Reset {
			t.Errorf("%s + /cancel must mark the session for reset", st)
		}
	}
}

func TestHelpDoesNotAlterState(t *testing.T) {
	m := newTestMachine(t)

	for _, st := range States() {
		in := Data{FirstName: "Иван"}
		next, data, reply := m.Transition(st, in, event.Command{Name: "help"})
		if next != st || data != in {
			t.Errorf("%s + /help changed state to %s", st, next)
		}
		if reply.Text == "" {
			t.Errorf("%s + /help produced no reply", st)
		}
	}
}

func TestRegistrationDialogue(t *testing.T) {
	m := newTestMachine(t)

	st, data, _ := m.Transition(StateIdle, Data{}, event.Command{Name: "register"})
	if st != StateRegFirstName {
		t.Fatalf("after /register state = %s", st)
	}

	st, data, _ = m.Transition(st, data, event.Text{Body: "Иван"})
	if st != StateRegLastName || data.FirstName != "Иван" {
		t.Fatalf("after first name: state %s, data %+v", st, data)
	}

	st, data, _ = m.Transition(st, data, event.Text{Body: "Иванов"})
	if st != StateRegPhone || data.LastName != "Иванов" {
		t.Fatalf("after last name: state %s, data %+v", st, data)
	}

	// A non-phone answer re-prompts and keeps the collected names.
	st, data, reply := m.Transition(st, data, event.Text{Body: "не скажу"})
	if st != StateRegPhone || data.FirstName != "Иван" {
		t.Fatalf("bad phone must keep state: %s, %+v", st, data)
	}
	if !strings.Contains(reply.Text, "еще раз") {
		t.Errorf("bad phone reply %q must re-prompt", reply.Text)
	}

	st, data, reply = m.Transition(st, data, event.Text{Body: "996555123456"})
	if st != StateIdle {
		t.Fatalf("after phone: state %s, want idle", st)
	}
	if reply.Action != ActionRegisterUser {
		t.Fatalf("reply action = %q, want %q", reply.Action, ActionRegisterUser)
	}
	got := reply.ActionData
	if got.FirstName != "Иван" || got.LastName != "Иванов" || got.Phone != "996555123456" {
		t.Errorf("action payload = %+v, want the collected profile", got)
	}
	if data != (Data{}) {
		t.Errorf("session payload after registration = %+v, want empty", data)
	}
}

func TestTrackDialogue(t *testing.T) {
	m := newTestMachine(t)

	st, data, _ := m.Transition(StateIdle, Data{}, event.Command{Name: "track"})
	if st != StateAwaitingTrackCode {
		t.Fatalf("after /track state = %s", st)
	}

	st, _, reply := m.Transition(st, data, event.Text{Body: "MX20250101"})
	if st != StateIdle {
		t.Fatalf("after track code state = %s, want idle", st)
	}
	if reply.Action != ActionTrackParcel || reply.ActionData.TrackCode != "MX20250101" {
		t.Errorf("reply = %+v, want track action with the code", reply)
	}
}

// Transition must be total: unlisted (state, event) pairs leave the state
// unchanged and still produce a reply.
func TestTransitionTotality(t *testing.T) {
	m := newTestMachine(t)

	events := []event.Event{
		event.Command{Name: "start"},
		event.Command{Name: "cancel"},
		event.Command{Name: "help"},
		event.Command{Name: "register"},
		event.Command{Name: "track"},
		event.Command{Name: "settings"},
		event.Text{Body: "произвольный текст"},
		event.Callback{Key: CallbackMarket, Payload: "taobao"},
		event.Callback{Key: CallbackMarket, Payload: "bogus"},
		event.Callback{Key: "unrelated", Payload: ""},
	}

	known := map[State]bool{}
	for _, st := range States() {
		known[st] = true
	}

	for _, st := range append(States(), State("legacy_tag")) {
		for _, ev := range events {
			next, _, reply := m.Transition(st, Data{}, ev)
			if next != st && !known[next] {
				t.Errorf("%s + %#v: transitioned into unknown state %s", st, ev, next)
			}
			if reply.Text == "" {
				t.Errorf("%s + %#v: no reply produced", st, ev)
			}
		}
	}
}

func TestLooksLikePhone(t *testing.T) {
	valid := []string{"996555123456", "+996 555 123-456", "(996) 5551234"}
	invalid := []string{"не скажу", "12345", "996555abc"}
	for _, s := range valid {
		if !looksLikePhone(s) {
			t.Errorf("looksLikePhone(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if looksLikePhone(s) {
			t.Errorf("looksLikePhone(%q) = true, want false", s)
		}
	}
}
