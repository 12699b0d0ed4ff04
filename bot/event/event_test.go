package event

import (
	"errors"
	"reflect"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func newTestContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Token: "test", Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b.NewContext(upd)
}

func textUpdate(body string) tele.Update {
	return tele.Update{Message: &tele.Message{
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 7},
		Text:   body,
	}}
}

func TestNormalizeCommand(t *testing.T) {
	cases := []struct {
		body string
		want Command
	}{
		{"/start", Command{Name: "start", Args: []string{}}},
		{"/START", Command{Name: "start", Args: []string{}}},
		{"/track ABC123", Command{Name: "track", Args: []string{"ABC123"}}},
		{"/help@max_express_bot", Command{Name: "help", Args: []string{}}},
		{"  /cancel  ", Command{Name: "cancel", Args: []string{}}},
	}
	for _, tc := range cases {
		ev, err := Normalize(newTestContext(t, textUpdate(tc.body)))
		if err != nil {
			t.Fatalf("Normalize(%q): %v", tc.body, err)
		}
		got, ok := ev.(Command)
		if !ok {
			t.Fatalf("Normalize(%q) = %T, want Command", tc.body, ev)
		}
		if got.Name != tc.want.Name || !reflect.DeepEqual(got.Args, tc.want.Args) {
			t.Errorf("Normalize(%q) = %+v, want %+v", tc.body, got, tc.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	ev, err := Normalize(newTestContext(t, textUpdate("sneaker link")))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got, ok := ev.(Text); !ok || got.Body != "sneaker link" {
		t.Errorf("Normalize = %#v, want Text{sneaker link}", ev)
	}
}

func TestNormalizeCallback(t *testing.T) {
	upd := tele.Update{Callback: &tele.Callback{
		Sender: &tele.User{ID: 7},
		Data:   "\fmarket|poizon",
	}}
	ev, err := Normalize(newTestContext(t, upd))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	got, ok := ev.(Callback)
	if !ok {
		t.Fatalf("Normalize = %T, want Callback", ev)
	}
	if got.Key != "market" || got.Payload != "poizon" {
		t.Errorf("Callback = %+v, want {market poizon}", got)
	}
}

func TestNormalizeContactAsText(t *testing.T) {
	upd := tele.Update{Message: &tele.Message{
		Sender:  &tele.User{ID: 7},
		Chat:    &tele.Chat{ID: 7},
		Contact: &tele.Contact{PhoneNumber: "996555123456"},
	}}
	ev, err := Normalize(newTestContext(t, upd))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got, ok := ev.(Text); !ok || got.Body != "996555123456" {
		t.Errorf("Normalize = %#v, want Text with phone number", ev)
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	cases := []struct {
		name string
		upd  tele.Update
	}{
		{"photo without caption", tele.Update{Message: &tele.Message{
			Sender: &tele.User{ID: 7},
			Chat:   &tele.Chat{ID: 7},
			Photo:  &tele.Photo{},
		}}},
		{"empty text", textUpdate("   ")},
		{"no payload update", tele.Update{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Normalize(newTestContext(t, tc.upd)); !errors.Is(err, ErrUnsupportedUpdate) {
				t.Errorf("Normalize = %v, want ErrUnsupportedUpdate", err)
			}
		})
	}
}
