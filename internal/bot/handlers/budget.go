package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/budget"
)

// BudgetService is the conversation core the handlers delegate to.
type BudgetService interface {
	HandleText(ctx context.Context, userID int64, text string) (budget.Reply, error)
	Init(ctx context.Context, userID int64) (budget.Reply, error)
	Status(ctx context.Context, userID int64) (budget.Reply, error)
	Report(ctx context.Context, userID int64, page int) (budget.Reply, error)
	Refund(ctx context.Context, userID int64, arg string) (budget.Reply, error)
	SetLimit(ctx context.Context, userID int64, arg string) (budget.Reply, error)
	SetDays(ctx context.Context, userID int64, arg string) (budget.Reply, error)
	SetTimezone(ctx context.Context, userID int64, arg string) (budget.Reply, error)
	Stop(ctx context.Context, userID int64) (budget.Reply, error)
	Help() budget.Reply
}

// Budget builds the telebot handlers for every budget command.
type Budget struct {
	service   BudgetService
	localizer *Localizer
	log       *slog.Logger
}

// NewBudget wires the handlers to service.
func NewBudget(service BudgetService, localizer *Localizer, log *slog.Logger) *Budget {
	if log == nil {
		log = slog.Default()
	}

	return &Budget{
		service:   service,
		localizer: localizer,
		log:       log,
	}
}

type userCall func(c telebot.Context, userID int64) (budget.Reply, error)

// respond runs call for the sender and sends the rendered result.
func (b *Budget) respond(call userCall) Handler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			b.log.Warn("update without sender", slog.String("command", Command(c)))
			return nil
		}

		result, err := call(c, userID)
		if err != nil {
			return err
		}

		return c.Send(Render(b.localizer.For(c), result))
	}
}

// Text handles free text: onboarding answers and purchases.
func (b *Budget) Text() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.HandleText(Context(c), userID, c.Text())
	})
}

// Status handles /status.
func (b *Budget) Status() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.Status(Context(c), userID)
	})
}

// Refund handles /refund <amount>.
func (b *Budget) Refund() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.Refund(Context(c), userID, Args(c))
	})
}

// SetLimit handles /setlimit <amount>.
func (b *Budget) SetLimit() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.SetLimit(Context(c), userID, Args(c))
	})
}

// SetDays handles /setdays <days>.
func (b *Budget) SetDays() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.SetDays(Context(c), userID, Args(c))
	})
}

// SetTimezone handles /settimezone ±HH:MM.
func (b *Budget) SetTimezone() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.SetTimezone(Context(c), userID, Args(c))
	})
}

// Stop handles /stop.
func (b *Budget) Stop() Handler {
	return b.respond(func(c telebot.Context, userID int64) (budget.Reply, error) {
		return b.service.Stop(Context(c), userID)
	})
}
