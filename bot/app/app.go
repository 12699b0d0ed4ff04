// Package app assembles the bot: infrastructure bootstrap, domain services,
// the dialogue engine and the Telegram routing table.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/maxexpress/maxbot/bot/dispatch"
	"github.com/maxexpress/maxbot/bot/flow"
	"github.com/maxexpress/maxbot/bot/market"
	"github.com/maxexpress/maxbot/bot/session"
	"github.com/maxexpress/maxbot/bot/users"
	"github.com/maxexpress/maxbot/bot/vendor"
	"github.com/maxexpress/maxbot/core/bootstrap"
	"github.com/maxexpress/maxbot/core/buildinfo"
	tg "github.com/maxexpress/maxbot/core/telegram"
	"github.com/maxexpress/maxbot/core/telegram/commands"
	tghelpers "github.com/maxexpress/maxbot/core/telegram/helpers"
	"github.com/maxexpress/maxbot/core/telegram/router"
	tgsender "github.com/maxexpress/maxbot/core/telegram/sender"
)

// App holds the wired bot components.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	registry *tg.Registry
	engine   *dispatch.Engine
	users    *users.Service
}

// New bootstraps infrastructure and wires the domain services together.
func New(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := market.NewCatalog(cfg.Marketplaces)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	tracker, err := vendor.NewClient(cfg.Vendor)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	usersSvc := users.NewService(res.DB)
	engine := dispatch.NewEngine(
		session.NewPostgresStore(res.DB),
		flow.NewMachine(catalog),
		&sideEffects{users: usersSvc, tracker: tracker},
	)

	a := &App{
		cfg:    cfg,
		db:     res.DB,
		engine: engine,
		users:  usersSvc,
	}
	a.registry = a.buildRegistry()
	return a, nil
}

// sideEffects adapts the domain services to the dialogue engine's actions.
type sideEffects struct {
	users   *users.Service
	tracker *vendor.Client
}

func (s *sideEffects) RegisterUser(ctx context.Context, userID int64, profile flow.Data) (string, error) {
	u, err := s.users.Register(ctx, userID, profile.FirstName, profile.LastName, profile.Phone)
	if errors.Is(err, users.ErrAlreadyRegistered) {
		existing, gerr := s.users.GetByTelegramID(ctx, userID)
		if gerr != nil {
			return "", err
		}
		return flow.AlreadyRegisteredText(existing.ClientCode), nil
	}
	if err != nil {
		return "", err
	}
	return flow.RegisteredText(u.ClientCode), nil
}

func (s *sideEffects) TrackParcel(ctx context.Context, trackCode string) (string, error) {
	status, err := s.tracker.Track(ctx, trackCode)
	if err != nil {
		return "", err
	}
	return flow.TrackStatusText(status.Ready()), nil
}

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()

	// Dialogue commands all funnel into the engine; the transition decides
	// what each command means for the user's current step.
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.engine.HandleUpdate,
		Description: "Выбрать маркетплейс",
	})
	reg.RegisterCommand("/register", commands.Command{
		Handler:     a.handleRegister,
		Description: "Регистрация и клиентский код",
	})
	reg.RegisterCommand("/track", commands.Command{
		Handler:     a.engine.HandleUpdate,
		Description: "Отследить посылку",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.engine.HandleUpdate,
		Description: "Сбросить диалог",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.engine.HandleUpdate,
		Description: "Справка по командам",
	})
	reg.RegisterCommand("/code", commands.Command{
		Handler:     a.handleCode,
		Description: "Показать клиентский код",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Статистика бота",
		AdminOnly:   true,
		Hidden:      true,
	})

	_ = reg.RegisterCallback(flow.CallbackMarket, a.engine.HandleUpdate)

	return reg
}

// handleRegister short-circuits for accounts that already exist; otherwise
// the registration dialogue starts in the engine.
func (a *App) handleRegister(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	exists, err := a.users.Exists(ctx, c.Sender().ID)
	if err == nil && exists {
		u, gerr := tghelpers.CurrentUser[users.User](ctx, a.users, c.Sender().ID)
		if gerr == nil {
			return tghelpers.SendText(c, flow.AlreadyRegisteredText(u.ClientCode))
		}
	}
	return a.engine.HandleUpdate(c)
}

func (a *App) handleCode(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	u, err := tghelpers.CurrentUser[users.User](ctx, a.users, c.Sender().ID)
	if errors.Is(err, users.ErrNotFound) {
		return tghelpers.SendText(c, flow.NotRegisteredText)
	}
	if err != nil {
		return tghelpers.SendText(c, flow.ActionFailedText)
	}
	return tghelpers.SendText(c, flow.ClientCodeText(u.ClientCode))
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	count, err := a.users.Count(ctx)
	if err != nil {
		return tghelpers.SendText(c, flow.ActionFailedText)
	}
	text := fmt.Sprintf("max_express_bot %s\nЗарегистрировано пользователей: %d\nАктивных диалогов: %d",
		buildinfo.Version, count, a.engine.ActiveDialogues())
	return tghelpers.SendText(c, text)
}

// TelegramRunOptions builds the routing table for the shared runner.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.engine, a.registry, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      routes,
		DispatcherOptions: tgsender.Options{
			QueueSize:    256,
			Workers:      4,
			MaxRetries:   2,
			RetryBackoff: 2 * time.Second,
		},
		OnStop: func(context.Context, tg.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
