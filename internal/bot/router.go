package bot

import (
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
	"github.com/Proton-105/budget-bot/internal/bot/keyboard"
)

// Router dispatches commands, callbacks, and conversation text through the
// middleware chain.
type Router struct {
	mu          sync.RWMutex
	callbacks   map[string]handlers.CallbackHandler
	dispatcher  *Dispatcher
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(log)
	}

	return &Router{
		callbacks:   make(map[string]handlers.CallbackHandler),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.dispatcher.RegisterCommand(cmd, h)
}

// RegisterCallback registers a handler for the action part of callback data.
func (r *Router) RegisterCallback(action string, h handlers.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[action] = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the handler for text that is not a command.
func (r *Router) SetDefault(h handlers.Handler) {
	r.dispatcher.SetConversation(h)
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	if callback := c.Callback(); callback != nil {
		return r.handleCallback(c, callback.Data)
	}

	return r.handleMessage(c)
}

func (r *Router) handleCallback(c telebot.Context, raw string) error {
	cb, err := keyboard.ParseCallback(raw)
	if err != nil {
		r.log.Info("ignoring malformed callback", slog.String("data", raw), slog.Any("error", err))
		return c.Respond()
	}

	handler := r.findCallbackHandler(cb.Action)
	if handler == nil {
		r.log.Info("no callback handler found", slog.String("action", cb.Action))
		return c.Respond()
	}

	handlers.SetCommand(c, cb.Action, "")
	handlers.SetCallbackData(c, cb.Data)

	exec := handlers.Handler(func(ctx telebot.Context) error {
		return handler(ctx)
	})

	return r.executeHandler(exec, c)
}

func (r *Router) handleMessage(c telebot.Context) error {
	handler, cmd, args := r.dispatcher.Resolve(c.Text())
	if handler == nil {
		return nil
	}

	if cmd == "" {
		cmd = commandText
	}
	handlers.SetCommand(c, cmd, args)

	return r.executeHandler(handler, c)
}

func (r *Router) executeHandler(h handlers.Handler, c telebot.Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) findCallbackHandler(action string) handlers.CallbackHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbacks[action]
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
