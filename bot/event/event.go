// Package event converts raw Telegram updates into the canonical events
// the dialogue engine understands. Normalization is pure: it only reads
// the update and never touches storage or the network.
package event

import (
	"errors"
	"strings"

	"github.com/maxexpress/maxbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// ErrUnsupportedUpdate marks update shapes the engine does not consume:
// non-text media, empty edits, updates without an identifiable sender.
// The dispatcher drops such updates without replying.
var ErrUnsupportedUpdate = errors.New("unsupported update")

// Event is the closed union of normalized inputs. Exactly one event is
// produced per inbound update.
type Event interface {
	isEvent()
}

// Command is a slash command with optional arguments.
type Command struct {
	Name string
	Args []string
}

// Text is a free-form text message.
type Text struct {
	Body string
}

// Callback is a pressed inline button: registry key plus payload.
type Callback struct {
	Key     string
	Payload string
}

func (Command) isEvent()  {}
func (Text) isEvent()     {}
func (Callback) isEvent() {}

// Normalize maps a Telegram update to an Event or ErrUnsupportedUpdate.
func Normalize(c tele.Context) (Event, error) {
	if c == nil || c.Sender() == nil {
		return nil, ErrUnsupportedUpdate
	}

	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		if cb.Unique != "" {
			key, payload = cb.Unique, strings.TrimSpace(cb.Data)
		}
		if key == "" {
			return nil, ErrUnsupportedUpdate
		}
		return Callback{Key: key, Payload: payload}, nil
	}

	msg := c.Message()
	if msg == nil {
		return nil, ErrUnsupportedUpdate
	}

	// A shared contact is treated as the user typing their phone number.
	if msg.Contact != nil && msg.Contact.PhoneNumber != "" {
		return Text{Body: msg.Contact.PhoneNumber}, nil
	}

	body := strings.TrimSpace(msg.Text)
	if body == "" {
		return nil, ErrUnsupportedUpdate
	}

	if strings.HasPrefix(body, "/") {
		return parseCommand(body), nil
	}

	return Text{Body: body}, nil
}

// parseCommand splits "/name@bot arg1 arg2" into name and args.
func parseCommand(body string) Command {
	fields := strings.Fields(body)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return Command{
		Name: strings.ToLower(name),
		Args: fields[1:],
	}
}
