package bot

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	"github.com/Proton-105/budget-bot/internal/budget"
	errors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/i18n"
	"github.com/Proton-105/budget-bot/internal/idempotency"
	"github.com/Proton-105/budget-bot/internal/middleware"
	"github.com/Proton-105/budget-bot/internal/ratelimit"
	"github.com/Proton-105/budget-bot/internal/repository"
	"github.com/Proton-105/budget-bot/internal/state"
	"github.com/Proton-105/budget-bot/pkg/config"
	"github.com/Proton-105/budget-bot/pkg/logger"
)

type sent struct {
	text string
	opts []interface{}
}

// fakeContext implements the parts of telebot.Context the router uses.
// Calling anything else panics through the nil embedded interface.
type fakeContext struct {
	telebot.Context

	update    telebot.Update
	sender    *telebot.User
	text      string
	callback  *telebot.Callback
	store     map[string]interface{}
	sent      []sent
	edited    []sent
	responded int
}

func newTextContext(userID int64, updateID int, text string) *fakeContext {
	return &fakeContext{
		update: telebot.Update{ID: updateID},
		sender: &telebot.User{ID: userID, LanguageCode: "en"},
		text:   text,
		store:  make(map[string]interface{}),
	}
}

func newCallbackContext(userID int64, updateID int, data string) *fakeContext {
	c := newTextContext(userID, updateID, "")
	c.callback = &telebot.Callback{ID: "cb-" + strconv.Itoa(updateID), Data: data}
	return c
}

func (f *fakeContext) Update() telebot.Update { return f.update }
func (f *fakeContext) Message() *telebot.Message { return nil }
func (f *fakeContext) Callback() *telebot.Callback { return f.callback }
func (f *fakeContext) Sender() *telebot.User { return f.sender }
func (f *fakeContext) Text() string { return f.text }
func (f *fakeContext) Get(key string) interface{} { return f.store[key] }
func (f *fakeContext) Set(key string, v interface{}) { f.store[key] = v }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, sent{text: what.(string), opts: opts})
	return nil
}

func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.edited = append(f.edited, sent{text: what.(string), opts: opts})
	return nil
}

func (f *fakeContext) Respond(...*telebot.CallbackResponse) error {
	f.responded++
	return nil
}

func (f *fakeContext) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1].text
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{Bot: config.BotConfig{DefaultLanguage: "ru"}}
}

type harness struct {
	router *Router
	store  *repository.MemoryStore
}

func newHarness(t *testing.T, mutate func(*Dependencies)) *harness {
	t.Helper()

	translations, err := i18n.Load("ru")
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	service := budget.NewService(store, state.NewMemoryLocker(time.Second), testLogger(),
		budget.WithClock(func() time.Time { return now }),
	)

	deps := Dependencies{
		Service:      service,
		Translations: translations,
		ErrHandler:   errors.NewHandler(testLogger(), false),
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &harness{router: NewBudgetRouter(testConfig(), testLogger(), deps), store: store}
}

func (h *harness) say(t *testing.T, userID int64, text string) *fakeContext {
	t.Helper()

	c := newTextContext(userID, 0, text)
	require.NoError(t, h.router.Route(c))
	return c
}

func TestRouter_OnboardingFlow(t *testing.T) {
	h := newHarness(t, nil)

	start := h.say(t, 1, "/start")
	assert.Contains(t, start.lastText(t), "How much money do you have?")
	require.Len(t, start.sent[0].opts, 1)
	markup, ok := start.sent[0].opts[0].(*telebot.ReplyMarkup)
	require.True(t, ok)
	assert.NotEmpty(t, markup.ReplyKeyboard)

	assert.Equal(t, "How many days should this money last?", h.say(t, 1, "100").lastText(t))
	assert.Contains(t, h.say(t, 1, "10").lastText(t), "Your average daily budget: 10.00.")

	purchase := h.say(t, 1, "15,5").lastText(t)
	assert.Contains(t, purchase, "Purchase of 15.50 added.")
	assert.Contains(t, purchase, "Balance: 84.50.")
}

func TestRouter_CommandArgumentsAndBotSuffix(t *testing.T) {
	h := newHarness(t, nil)
	h.say(t, 2, "/start")
	h.say(t, 2, "100")
	h.say(t, 2, "10")

	assert.Equal(t, "Refunded 20.00. Current balance: 120.00.", h.say(t, 2, "/refund 20").lastText(t))
	assert.Equal(t, "Budget limit changed. New limit: 500.00.", h.say(t, 2, "/SetLimit@budget_bot   500").lastText(t))
	assert.Equal(t, "Please provide a valid number of days. Example: /setdays 15", h.say(t, 2, "/setdays").lastText(t))
	assert.Equal(t, "Please provide a valid number of days. Example: /setdays 15", h.say(t, 2, "/setdays 9999999999").lastText(t))
	assert.Equal(t, "Please enter a valid amount.", h.say(t, 2, "1e200000000").lastText(t))
	assert.Equal(t, "Timezone changed to UTC+03:00.", h.say(t, 2, "/settimezone +03:00").lastText(t))
}

func TestRouter_MenuButtonsAndLanguages(t *testing.T) {
	h := newHarness(t, nil)
	h.say(t, 3, "/start")
	h.say(t, 3, "100")
	h.say(t, 3, "10")

	status := h.say(t, 3, "📊 Balance").lastText(t)
	assert.Contains(t, status, "Balance: 100.00.")
	assert.Contains(t, status, "Until the end of the day:")

	c := newTextContext(3, 0, "📊 Остаток")
	c.sender.LanguageCode = "ru"
	require.NoError(t, h.router.Route(c))
	assert.Contains(t, c.lastText(t), "Остаток средств: 100.00.")
}

func TestRouter_HelpWorksWithoutRecord(t *testing.T) {
	h := newHarness(t, nil)

	help := h.say(t, 9, "❓ Help")
	assert.Contains(t, help.lastText(t), "/settimezone <±HH:MM>")
	require.Len(t, help.sent[0].opts, 1)

	assert.Equal(t, help.lastText(t), h.say(t, 9, "/help").lastText(t))
}

func TestRouter_UnknownCommandIsConversationText(t *testing.T) {
	h := newHarness(t, nil)
	h.say(t, 4, "/start")

	assert.Equal(t, "Please enter a valid amount.", h.say(t, 4, "/unknown").lastText(t))
}

func TestRouter_ReportPagination(t *testing.T) {
	h := newHarness(t, nil)
	h.say(t, 5, "/start")
	h.say(t, 5, "1000")
	h.say(t, 5, "10")
	for i := 0; i < 25; i++ {
		h.say(t, 5, "1")
	}

	report := h.say(t, 5, "/report")
	assert.Contains(t, report.lastText(t), "Your purchases:")
	assert.Contains(t, report.lastText(t), "20. 1.00")
	assert.NotContains(t, report.lastText(t), "21. 1.00")
	require.Len(t, report.sent[0].opts, 1)
	markup := report.sent[0].opts[0].(*telebot.ReplyMarkup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "report:2", markup.InlineKeyboard[0][1].Data)

	page := newCallbackContext(5, 0, "report:2")
	require.NoError(t, h.router.Route(page))
	require.Len(t, page.edited, 1)
	assert.Contains(t, page.edited[0].text, "21. 1.00")
	assert.Contains(t, page.edited[0].text, "25. 1.00")
	assert.Equal(t, 1, page.responded)
}

func TestRouter_UnknownCallbackIsAnswered(t *testing.T) {
	h := newHarness(t, nil)

	c := newCallbackContext(6, 0, "\fsomething:1")
	require.NoError(t, h.router.Route(c))
	assert.Equal(t, 1, c.responded)
	assert.Empty(t, c.sent)
}

func TestRouter_DuplicateUpdateIsSkipped(t *testing.T) {
	h := newHarness(t, func(d *Dependencies) {
		d.Idempotency = idempotency.NewManager(idempotency.NewMemoryStore(), testLogger())
	})
	h.say(t, 7, "/start")
	h.say(t, 7, "100")
	h.say(t, 7, "10")

	first := newTextContext(7, 42, "30")
	require.NoError(t, h.router.Route(first))
	duplicate := newTextContext(7, 42, "30")
	require.NoError(t, h.router.Route(duplicate))

	assert.Len(t, first.sent, 1)
	assert.Empty(t, duplicate.sent)

	rec, err := h.store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "70", rec.TotalAmount.String())
}

func TestRouter_FailedUpdateRunsAgainOnRedelivery(t *testing.T) {
	locker := state.NewMemoryLocker(10 * time.Millisecond)
	store := repository.NewMemoryStore()
	h := newHarness(t, func(d *Dependencies) {
		d.Service = budget.NewService(store, locker, testLogger())
		d.Idempotency = idempotency.NewManager(idempotency.NewMemoryStore(), testLogger())
	})

	_, unlock, err := locker.Lock(context.Background(), 11)
	require.NoError(t, err)

	failed := newTextContext(11, 50, "/start")
	require.NoError(t, h.router.Route(failed))
	assert.Equal(t,
		"Your previous message is still being processed. Please retry in a second.",
		failed.lastText(t),
	)

	unlock()

	redelivered := newTextContext(11, 50, "/start")
	require.NoError(t, h.router.Route(redelivered))
	require.Len(t, redelivered.sent, 1)
	assert.Contains(t, redelivered.lastText(t), "How much money do you have?")

	_, err = store.Get(context.Background(), 11)
	require.NoError(t, err)
}

func TestRouter_RateLimitReply(t *testing.T) {
	rules := ratelimit.NewRules(config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 1, Window: "1m"},
	})
	h := newHarness(t, func(d *Dependencies) {
		d.RateLimit = middleware.NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(testLogger()), rules, testLogger())
	})

	h.say(t, 8, "/start")
	limited := h.say(t, 8, "/help").lastText(t)
	assert.True(t, strings.HasPrefix(limited, "Too many requests."), limited)
}

func TestRouter_PanicIsRecovered(t *testing.T) {
	h := newHarness(t, nil)
	h.router.RegisterCommand("/boom", func(telebot.Context) error { panic("boom") })

	c := h.say(t, 9, "/boom")
	assert.Equal(t, "Something went wrong. Please try again later.", c.lastText(t))
}

func TestRouter_BusyUserGetsRetryHint(t *testing.T) {
	locker := state.NewMemoryLocker(10 * time.Millisecond)
	h := newHarness(t, func(d *Dependencies) {
		d.Service = budget.NewService(repository.NewMemoryStore(), locker, testLogger())
	})

	_, unlock, err := locker.Lock(context.Background(), 10)
	require.NoError(t, err)
	defer unlock()

	assert.Equal(t,
		"Your previous message is still being processed. Please retry in a second.",
		h.say(t, 10, "/status").lastText(t),
	)
}

func TestRouter_ContextCarriesCorrelationID(t *testing.T) {
	h := newHarness(t, nil)

	var seen context.Context
	h.router.RegisterCommand("/probe", func(c telebot.Context) error {
		seen = handlers.Context(c)
		return nil
	})

	h.say(t, 11, "/probe")
	require.NotNil(t, seen)
	assert.NotEmpty(t, logger.CorrelationIDFromContext(seen))
}
