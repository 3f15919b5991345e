package middleware

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	"github.com/Proton-105/budget-bot/internal/idempotency"
)

// Idempotency ensures handlers execute at most once per Telegram update, so
// a redelivered purchase is not subtracted twice.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			ctx := handlers.Context(c)

			result, err := manager.Execute(ctx, key, idempotency.DefaultTTL, func(execCtx context.Context) (interface{}, error) {
				return nil, next(c)
			})
			if err != nil {
				if errors.Is(err, idempotency.ErrRequestInProgress) {
					log.InfoContext(ctx, "duplicate update still in progress", slog.String("key", key))
					return nil
				}

				return err
			}

			if result != nil && result.FromCache {
				log.InfoContext(ctx, "duplicate update skipped", slog.String("key", key))
			}

			return nil
		}
	}
}

// extractIdempotencyKey prefers the update id and falls back to the
// callback or message id. Updates built without any of them yield "".
func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return idempotency.UpdateKey(id)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return idempotency.CallbackKey(cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return idempotency.MessageKey(chatID, msg.ID)
	}

	return ""
}
