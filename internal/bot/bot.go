package bot

import (
	"fmt"
	"log/slog"
	"net/http"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	"github.com/Proton-105/budget-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/i18n"
	"github.com/Proton-105/budget-bot/internal/idempotency"
	"github.com/Proton-105/budget-bot/internal/middleware"
	"github.com/Proton-105/budget-bot/pkg/config"
)

// Dependencies are the collaborators the transport delegates to.
type Dependencies struct {
	Service      handlers.BudgetService
	Translations *i18n.Manager
	Idempotency  idempotency.Manager
	RateLimit    *middleware.RateLimitMiddleware
	ErrHandler   *errors.Handler
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot *telebot.Bot
	webhook *telebot.Webhook
	log     *slog.Logger
	cfg     config.Config
	router  *Router
}

// New builds a telegram bot instance configured according to the application settings.
// In webhook mode updates arrive through WebhookHandler instead of long polling.
func New(cfg config.Config, log *slog.Logger, deps Dependencies) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	var webhook *telebot.Webhook
	if cfg.Bot.Mode == "webhook" {
		webhook = &telebot.Webhook{
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
		settings.Poller = webhook
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot: tb,
		webhook: webhook,
		log:     log,
		cfg:     cfg,
		router:  NewBudgetRouter(cfg, log, deps),
	}

	b.registerTelebotHandlers()

	return b, nil
}

// NewBudgetRouter assembles the middleware chain and registers every
// budget command, the menu aliases and the report pagination callback.
func NewBudgetRouter(cfg config.Config, log *slog.Logger, deps Dependencies) *Router {
	localizer := handlers.NewLocalizer(deps.Translations, cfg.Bot.DefaultLanguage)
	budget := handlers.NewBudget(deps.Service, localizer, log)

	dispatcher := NewDispatcher(log)
	router := NewRouter(dispatcher, log)

	router.Use(RecoveryMiddleware(log, deps.ErrHandler, localizer))
	router.Use(CorrelationMiddleware(nil))
	router.Use(ErrorHandlingMiddleware(deps.ErrHandler, localizer))
	// Inside error handling so a failed update drops its record and a
	// redelivery runs again.
	router.Use(middleware.Idempotency(deps.Idempotency, log))
	router.Use(LoggingMiddleware(log))
	if deps.RateLimit != nil {
		router.Use(deps.RateLimit.Handle)
	}
	router.Use(middleware.Metrics)

	router.RegisterCommand(CommandStart, budget.Start())
	router.RegisterCommand(CommandStatus, budget.Status())
	router.RegisterCommand(CommandReport, budget.Report())
	router.RegisterCommand(CommandRefund, budget.Refund())
	router.RegisterCommand(CommandSetLimit, budget.SetLimit())
	router.RegisterCommand(CommandSetDays, budget.SetDays())
	router.RegisterCommand(CommandSetTimezone, budget.SetTimezone())
	router.RegisterCommand(CommandStop, budget.Stop())
	router.RegisterCommand(CommandHelp, budget.Help())
	router.SetDefault(budget.Text())

	for text, command := range keyboard.MenuCommands(localizer.All()...) {
		dispatcher.RegisterAlias(text, command)
	}

	router.RegisterCallback(keyboard.ActionReport, budget.ReportPage())

	return router
}

// Start publishes the command menu and runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	commands := make([]telebot.Command, 0, len(menuCommands))
	for _, cmd := range menuCommands {
		commands = append(commands, telebot.Command{Text: cmd.Command[1:], Description: cmd.Description})
	}
	if err := b.telebot.SetCommands(commands); err != nil {
		b.log.Warn("failed to publish bot commands", slog.Any("error", err))
	}

	b.log.Info("telegram bot started", slog.String("mode", b.cfg.Bot.Mode))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// WebhookHandler returns the HTTP handler receiving updates in webhook
// mode, or nil when long polling.
func (b *Bot) WebhookHandler() http.Handler {
	if b.webhook == nil {
		return nil
	}
	return b.webhook
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil || b.router == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
}
