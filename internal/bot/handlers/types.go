package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Keys under which the router stores per-update values in telebot.Context.
const (
	contextKey  = "budget.ctx"
	argsKey     = "budget.args"
	commandKey  = "budget.command"
	callbackKey = "budget.callback_data"
)

// Context returns the request context attached to the update, or
// context.Background when none was set.
func Context(c telebot.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

// SetContext attaches ctx to the update.
func SetContext(c telebot.Context, ctx context.Context) {
	if c != nil {
		c.Set(contextKey, ctx)
	}
}

// Args returns the text following the command token.
func Args(c telebot.Context) string {
	if c == nil {
		return ""
	}
	args, _ := c.Get(argsKey).(string)
	return args
}

// Command returns the normalized command the update was routed as.
func Command(c telebot.Context) string {
	if c == nil {
		return ""
	}
	command, _ := c.Get(commandKey).(string)
	return command
}

// SetCommand records the command and its argument string on the update.
func SetCommand(c telebot.Context, command, args string) {
	if c == nil {
		return
	}
	c.Set(commandKey, command)
	c.Set(argsKey, args)
}

// CallbackData returns the decoded payload of an inline button press.
func CallbackData(c telebot.Context) string {
	if c == nil {
		return ""
	}
	data, _ := c.Get(callbackKey).(string)
	return data
}

// SetCallbackData records the decoded callback payload on the update.
func SetCallbackData(c telebot.Context, data string) {
	if c != nil {
		c.Set(callbackKey, data)
	}
}

func senderID(c telebot.Context) (int64, bool) {
	if c == nil || c.Sender() == nil {
		return 0, false
	}
	return c.Sender().ID, true
}
