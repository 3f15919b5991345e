package middleware

import (
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/ratelimit"
)

// RateLimitMiddleware charges incoming Telegram updates against the
// configured rate limit rules.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// Handle rejects the update with a rate-limit error once any limit is exceeded.
// Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		if m == nil || m.limiter == nil || m.rules == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		userID := sender.ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		ctx := handlers.Context(c)
		command := handlers.Command(c)

		checks, err := m.rules.Checks(command, userID)
		if err != nil {
			m.log.DebugContext(ctx, "rate limit rule unavailable", slog.Any("error", err))
		}

		for _, check := range checks {
			result, err := m.limiter.Allow(ctx, check.Key, check.Rule)
			switch {
			case errors.Is(err, ratelimit.ErrLimitExceeded):
				m.log.WarnContext(ctx, "rate limit exceeded",
					slog.Int64("user_id", userID),
					slog.String("scope", string(check.Scope)),
					slog.String("command", command),
				)
				return apperrors.NewRateLimitError(result.RetryAfter(time.Now()))
			case err != nil:
				m.log.WarnContext(ctx, "rate limiter error",
					slog.Int64("user_id", userID),
					slog.String("scope", string(check.Scope)),
					slog.Any("error", err),
				)
			}
		}

		return next(c)
	}
}
