package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/ratelimit"
	"github.com/Proton-105/budget-bot/pkg/config"
)

type fakeContext struct {
	telebot.Context
	sender *telebot.User
	store  map[string]interface{}
}

func newFakeContext(userID int64, command string) *fakeContext {
	c := &fakeContext{sender: &telebot.User{ID: userID}, store: map[string]interface{}{}}
	handlers.SetCommand(c, command, "")
	return c
}

func (f *fakeContext) Sender() *telebot.User { return f.sender }

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }

func (f *fakeContext) Set(key string, value interface{}) { f.store[key] = value }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newRateLimit(cfg config.RateLimitConfig) *RateLimitMiddleware {
	log := discardLogger()
	return NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(log), ratelimit.NewRules(cfg), log)
}

func TestRateLimitMiddleware_CommandLimit(t *testing.T) {
	mw := newRateLimit(config.RateLimitConfig{
		Enabled:  true,
		PerUser:  config.RateLimitRule{Limit: 10, Window: "1m"},
		Commands: map[string]config.RateLimitRule{"report": {Limit: 1, Window: "1m"}},
	})

	calls := 0
	handler := mw.Handle(func(telebot.Context) error {
		calls++
		return nil
	})

	require.NoError(t, handler(newFakeContext(7, "report")))

	err := handler(newFakeContext(7, "report"))
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.MessageRateLimited, appErr.UserMessage)
	assert.NotEmpty(t, appErr.UserParams["seconds"])

	require.NoError(t, handler(newFakeContext(7, "status")), "other commands use the per-user budget")
	require.NoError(t, handler(newFakeContext(8, "report")), "limits are per user")
	assert.Equal(t, 3, calls)
}

func TestRateLimitMiddleware_WhitelistAndDisabled(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 1, Window: "1m"},
		Whitelist: []int64{42},
	}
	mw := newRateLimit(cfg)
	handler := mw.Handle(func(telebot.Context) error { return nil })

	for i := 0; i < 3; i++ {
		require.NoError(t, handler(newFakeContext(42, "status")))
	}

	require.NoError(t, handler(newFakeContext(1, "status")))
	require.Error(t, handler(newFakeContext(1, "status")))

	cfg.Enabled = false
	mw.rules.Update(cfg)
	assert.NoError(t, handler(newFakeContext(1, "status")))
}

func TestRateLimitMiddleware_ReplyWaitsForOldestHit(t *testing.T) {
	mw := newRateLimit(config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 1, Window: "30s"},
	})
	handler := mw.Handle(func(telebot.Context) error { return nil })

	require.NoError(t, handler(newFakeContext(3, "status")))

	var appErr *apperrors.AppError
	require.ErrorAs(t, handler(newFakeContext(3, "")), &appErr)
	seconds, err := strconv.Atoi(appErr.UserParams["seconds"])
	require.NoError(t, err)
	assert.InDelta(t, 30, seconds, 1)
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := New(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "status=503")
	assert.Contains(t, buf.String(), "path=/readyz")
}

func TestMetrics_UsesRoutedCommand(t *testing.T) {
	c := newFakeContext(1, "status")
	assert.Equal(t, "status", extractCommandName(c))
	assert.Equal(t, "unknown", extractCommandName(&fakeContext{store: map[string]interface{}{}}))

	err := Metrics(func(telebot.Context) error { return errors.New("boom") })(c)
	assert.EqualError(t, err, "boom")
}

type deliveryContext struct {
	telebot.Context
	update   telebot.Update
	callback *telebot.Callback
	message  *telebot.Message
}

func (d deliveryContext) Update() telebot.Update { return d.update }
func (d deliveryContext) Callback() *telebot.Callback { return d.callback }
func (d deliveryContext) Message() *telebot.Message { return d.message }

func TestExtractIdempotencyKey(t *testing.T) {
	assert.Equal(t, "update:42", extractIdempotencyKey(deliveryContext{
		update:   telebot.Update{ID: 42},
		callback: &telebot.Callback{ID: "ignored"},
	}))
	assert.Equal(t, "cb:abc", extractIdempotencyKey(deliveryContext{
		callback: &telebot.Callback{ID: "abc"},
	}))
	assert.Equal(t, "msg:-100:9", extractIdempotencyKey(deliveryContext{
		message: &telebot.Message{ID: 9, Chat: &telebot.Chat{ID: -100}},
	}))
	assert.Empty(t, extractIdempotencyKey(deliveryContext{}))
}
