package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	errors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/pkg/logger"
)

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, localizer *handlers.Localizer) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx := handlers.Context(c)
					log.ErrorContext(ctx, "panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					facing := errors.UserFacing{Key: errors.MessageInternal}
					if errHandler != nil {
						if handled, ok := errHandler.Handle(ctx, fmt.Errorf("panic recovered: %v", r)); ok {
							facing = handled
						}
					}

					if c != nil {
						if sendErr := c.Send(localizer.For(c).Format(facing.Key, facing.Params)); sendErr != nil {
							log.ErrorContext(ctx, "failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// CorrelationMiddleware attaches a request context carrying a fresh
// correlation id to every update.
func CorrelationMiddleware(base context.Context) handlers.Middleware {
	if base == nil {
		base = context.Background()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			handlers.SetContext(c, logger.WithCorrelationID(base, ""))
			return next(c)
		}
	}
}

// ErrorHandlingMiddleware turns handler failures into a localized reply in
// the same chat.
func ErrorHandlingMiddleware(errHandler *errors.Handler, localizer *handlers.Localizer) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			facing := errors.UserFacing{Key: errors.MessageInternal}
			if errHandler != nil {
				if handled, ok := errHandler.Handle(handlers.Context(c), err); ok {
					facing = handled
				}
			}

			if c != nil {
				_ = c.Send(localizer.For(c).Format(facing.Key, facing.Params))
				if c.Callback() != nil {
					_ = c.Respond()
				}
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := handlers.Context(c)
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			command := handlers.Command(c)

			log.DebugContext(ctx, "handling update", slog.Int64("user_id", userID), slog.String("command", command))
			err := next(c)
			log.InfoContext(ctx, "handled update",
				slog.Int64("user_id", userID),
				slog.String("command", command),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}
