// Package flow holds the per-user dialogue state machine. Transition is a
// pure function of (state, data, event): it performs no I/O, which keeps
// every dialogue path unit-testable. Side effects (registering a user,
// querying the parcel tracker) are requested through an Action tag on the
// Reply and executed by the dispatch engine.
package flow

import (
	"github.com/maxexpress/maxbot/bot/event"
	"github.com/maxexpress/maxbot/bot/market"
)

// State tags the current dialogue step. The tag is persisted with the
// session; an unknown tag loaded from storage is treated as idle.
type State string

const (
	StateIdle                State = "idle"
	StateAwaitingMarketplace State = "awaiting_marketplace"
	StateAwaitingQuery       State = "awaiting_query"
	StateCompleted           State = "completed"
	StateRegFirstName        State = "reg_first_name"
	StateRegLastName         State = "reg_last_name"
	StateRegPhone            State = "reg_phone"
	StateAwaitingTrackCode   State = "awaiting_track_code"
)

// States lists every dialogue state.
func States() []State {
	return []State{
		StateIdle,
		StateAwaitingMarketplace,
		StateAwaitingQuery,
		StateCompleted,
		StateRegFirstName,
		StateRegLastName,
		StateRegPhone,
		StateAwaitingTrackCode,
	}
}

// Data is the state payload persisted alongside the tag.
type Data struct {
	Marketplace market.Kind `json:"marketplace,omitempty"`
	Query       string      `json:"query,omitempty"`
	FirstName   string      `json:"first_name,omitempty"`
	LastName    string      `json:"last_name,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	TrackCode   string      `json:"track_code,omitempty"`
}

// Action asks the dispatch engine to run a side effect after the transition.
type Action string

const (
	ActionNone         Action = ""
	ActionRegisterUser Action = "register_user"
	ActionTrackParcel  Action = "track_parcel"
)

// CallbackMarket is the inline-button key carrying a marketplace choice.
const CallbackMarket = "market"

// Button is one inline choice on a reply.
type Button struct {
	Label   string
	Key     string
	Payload string
}

// Reply is what the user receives for one processed event. When Action is
// set, ActionData carries the collected input for the side effect; the
// engine may replace Text with the action's outcome. Reset marks an
// explicit user reset and removes the stored session row.
type Reply struct {
	Text       string
	Buttons    []Button
	Action     Action
	ActionData Data
	Reset      bool
}

// Machine evaluates dialogue transitions against the marketplace catalog.
type Machine struct {
	markets *market.Catalog
}

func NewMachine(cat *market.Catalog) *Machine {
	return &Machine{markets: cat}
}

// Transition computes the next dialogue step. It is total: any (state,
// event) pair not listed below leaves the state unchanged and re-prompts.
func (m *Machine) Transition(st State, data Data, ev event.Event) (State, Data, Reply) {
	if cmd, ok := ev.(event.Command); ok {
		return m.applyCommand(st, data, cmd)
	}

	switch st {
	case StateAwaitingMarketplace:
		if cb, ok := ev.(event.Callback); ok && cb.Key == CallbackMarket {
			if kind, valid := market.Parse(cb.Payload); valid {
				help, _ := m.markets.Help(kind)
				return StateAwaitingQuery, Data{Marketplace: kind}, Reply{
					Text: help + "\n\n" + textQueryPrompt,
				}
			}
		}
		// Invalid selection: state unchanged, menu re-offered.
		return st, data, m.menuReply(textChooseAgain)

	case StateAwaitingQuery:
		if txt, ok := ev.(event.Text); ok {
			next := data
			next.Query = txt.Body
			return StateCompleted, next, Reply{Text: textQueryAccepted}
		}
		return st, data, Reply{Text: textQueryPrompt}

	case StateRegFirstName:
		if txt, ok := ev.(event.Text); ok {
			return StateRegLastName, Data{FirstName: txt.Body}, Reply{Text: textAskLastName}
		}
		return st, data, Reply{Text: textBadInput + "\n" + textAskFirstNameAgain}

	case StateRegLastName:
		if txt, ok := ev.(event.Text); ok {
			next := data
			next.LastName = txt.Body
			return StateRegPhone, next, Reply{Text: textAskPhone}
		}
		return st, data, Reply{Text: textBadInput + "\n" + textAskLastNameAgain}

	case StateRegPhone:
		if txt, ok := ev.(event.Text); ok && looksLikePhone(txt.Body) {
			collected := data
			collected.Phone = txt.Body
			return StateIdle, Data{}, Reply{
				Text:       textRegistered,
				Action:     ActionRegisterUser,
				ActionData: collected,
			}
		}
		return st, data, Reply{Text: textBadInput + "\n" + textAskPhoneAgain}

	case StateAwaitingTrackCode:
		if txt, ok := ev.(event.Text); ok {
			return StateIdle, Data{}, Reply{
				Text:       textTrackChecking,
				Action:     ActionTrackParcel,
				ActionData: Data{TrackCode: txt.Body},
			}
		}
		return st, data, Reply{Text: textAskTrackCode}

	case StateCompleted:
		return st, data, Reply{Text: textCompletedHint}

	case StateIdle:
		return st, data, Reply{Text: textIdleHint}
	}

	// Unknown persisted tag: behave as idle without rewriting the row.
	return st, data, Reply{Text: textIdleHint}
}

func (m *Machine) applyCommand(st State, data Data, cmd event.Command) (State, Data, Reply) {
	switch cmd.Name {
	case "start":
		return StateAwaitingMarketplace, Data{}, m.menuReply(textWelcome)
	case "cancel":
		return StateIdle, Data{}, Reply{Text: textCancelled, Reset: true}
	case "help":
		return st, data, Reply{Text: textHelp}
	case "register":
		return StateRegFirstName, Data{}, Reply{Text: textRegisterIntro + "\n\n" + textAskFirstName}
	case "track":
		return StateAwaitingTrackCode, Data{}, Reply{Text: textAskTrackCode}
	}
	return st, data, Reply{Text: textUnknownCommand}
}

func (m *Machine) menuReply(text string) Reply {
	kinds := market.Kinds()
	buttons := make([]Button, 0, len(kinds))
	for _, k := range kinds {
		buttons = append(buttons, Button{
			Label:   k.Title(),
			Key:     CallbackMarket,
			Payload: string(k),
		})
	}
	return Reply{Text: text, Buttons: buttons}
}

// looksLikePhone accepts loosely formatted numbers like "996 555 123-456".
func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7
}
