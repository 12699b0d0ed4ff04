// Package dispatch orchestrates one inbound update end to end: normalize,
// serialize per user, load the session, run the dialogue transition, execute
// requested side effects, persist, reply. Events for different users run
// concurrently; events for one user are strictly ordered.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maxexpress/maxbot/bot/event"
	"github.com/maxexpress/maxbot/bot/flow"
	"github.com/maxexpress/maxbot/bot/session"
	"github.com/maxexpress/maxbot/core/logger"
	tghelpers "github.com/maxexpress/maxbot/core/telegram/helpers"
	"github.com/maxexpress/maxbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const engineComponent = "bot.dispatch"

// Actions executes the side effects a dialogue transition requests. The
// returned text, when non-empty, replaces the transition's reply text.
type Actions interface {
	RegisterUser(ctx context.Context, userID int64, profile flow.Data) (string, error)
	TrackParcel(ctx context.Context, trackCode string) (string, error)
}

// Engine drives the dialogue for every user.
type Engine struct {
	store   session.Store
	machine *flow.Machine
	actions Actions

	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewEngine(store session.Store, machine *flow.Machine, actions Actions) *Engine {
	return &Engine{
		store:   store,
		machine: machine,
		actions: actions,
		locks:   make(map[int64]*userLock),
	}
}

// lockUser acquires the per-user serialization slot. Slots are created
// lazily and evicted once the last holder releases, so the lock map does
// not grow with the total user population.
func (e *Engine) lockUser(userID int64) (release func()) {
	e.mu.Lock()
	l := e.locks[userID]
	if l == nil {
		l = &userLock{}
		e.locks[userID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, userID)
		}
		e.mu.Unlock()
	}
}

// ActiveDialogues reports how many users currently hold or wait on a slot.
func (e *Engine) ActiveDialogues() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locks)
}

// Process applies one normalized event under the user's serialization slot
// and returns the reply to deliver. Store failures never fail the event:
// load degrades to a fresh idle session, a failed save is logged and the
// flow restarts on the next event.
func (e *Engine) Process(ctx context.Context, userID int64, ev event.Event) flow.Reply {
	release := e.lockUser(userID)
	defer release()

	sess, err := e.store.Load(ctx, userID)
	if err != nil {
		logger.Warn(ctx, engineComponent, "session.load.degraded",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		sess = session.New(userID)
	}

	next, data, reply := e.machine.Transition(sess.State, sess.Data, ev)

	if reply.Action != flow.ActionNone {
		reply.Text = e.runAction(ctx, userID, reply)
	}

	if reply.Reset {
		if err := e.store.Delete(ctx, userID); err != nil {
			logger.Warn(ctx, engineComponent, "session.reset.failed",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
		return reply
	}

	prev := sess.State
	sess.State = next
	sess.Data = data
	sess.UpdatedAt = time.Now().UTC()
	if err := e.store.Save(ctx, sess); err != nil {
		// Reply still goes out; the next event re-derives an idle session.
		logger.Warn(ctx, engineComponent, "session.save.failed",
			slog.Int64("user_id", userID),
			slog.String("state", string(next)),
			slog.String("err", err.Error()),
		)
	}

	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, engineComponent, "dialogue.step",
			slog.Int64("user_id", userID),
			slog.String("state", string(prev)),
			slog.String("next_state", string(next)),
		)
	}
	return reply
}

func (e *Engine) runAction(ctx context.Context, userID int64, reply flow.Reply) string {
	if e.actions == nil {
		return reply.Text
	}

	var (
		text string
		err  error
	)
	switch reply.Action {
	case flow.ActionRegisterUser:
		text, err = e.actions.RegisterUser(ctx, userID, reply.ActionData)
	case flow.ActionTrackParcel:
		text, err = e.actions.TrackParcel(ctx, reply.ActionData.TrackCode)
	default:
		return reply.Text
	}

	if err != nil {
		logger.Error(ctx, engineComponent, "action.failed",
			slog.Int64("user_id", userID),
			slog.String("action", string(reply.Action)),
			slog.String("err", err.Error()),
		)
		return flow.ActionFailedText
	}
	if text != "" {
		return text
	}
	return reply.Text
}

// HandleUpdate is the telebot entrypoint: it normalizes the raw update,
// processes it and delivers the reply. Unsupported update shapes are
// dropped silently.
func (e *Engine) HandleUpdate(c tele.Context) error {
	ev, err := event.Normalize(c)
	if err != nil {
		if errors.Is(err, event.ErrUnsupportedUpdate) {
			ctx := tghelpers.BuildContext(c)
			logger.Debug(ctx, engineComponent, "update.dropped",
				slog.String("status", "drop"),
				slog.String("reason", "unsupported"),
			)
			return nil
		}
		return err
	}

	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	// The serialization slot is released before the network send so a slow
	// Telegram round-trip never blocks the user's next event.
	reply := e.Process(ctx, userID, ev)
	return deliver(c, reply)
}

func deliver(c tele.Context, reply flow.Reply) error {
	if reply.Text == "" {
		return nil
	}
	if len(reply.Buttons) == 0 {
		return tghelpers.SendText(c, reply.Text)
	}

	btns := make([]keyboard.InlineBtn, 0, len(reply.Buttons))
	for _, b := range reply.Buttons {
		btns = append(btns, keyboard.InlineBtn{
			Text:   b.Label,
			Unique: b.Key,
			Data:   b.Payload,
		})
	}
	return tghelpers.SendMarkup(c, reply.Text, keyboard.InlineButtonsNPerRow(btns, 2))
}
