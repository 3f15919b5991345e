package bot

import (
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/Proton-105/budget-bot/internal/bot/handlers"
)

// Dispatcher recognizes commands in message text. Text that is not a
// known command, including unknown slash commands, goes to the
// conversation handler.
type Dispatcher struct {
	commands     map[string]handlers.Handler
	aliases      map[string]string
	conversation handlers.Handler
	log          *slog.Logger
	mu           sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		commands: make(map[string]handlers.Handler),
		aliases:  make(map[string]string),
		log:      log,
	}
}

// RegisterCommand registers a handler for a bot command such as "/status".
func (d *Dispatcher) RegisterCommand(cmd string, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[strings.ToLower(cmd)] = h
}

// RegisterAlias maps an exact message text, e.g. a menu button label, to a command.
func (d *Dispatcher) RegisterAlias(text, cmd string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.aliases[text] = strings.ToLower(cmd)
}

// SetConversation sets the handler receiving non-command text.
func (d *Dispatcher) SetConversation(h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conversation = h
}

// Resolve picks the handler for text and returns the command name and its
// raw argument string. The command is empty for conversation text.
func (d *Dispatcher) Resolve(text string) (handlers.Handler, string, string) {
	text = strings.TrimSpace(text)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if cmd, ok := d.aliases[text]; ok {
		if handler := d.commands[cmd]; handler != nil {
			return handler, cmd, ""
		}
	}

	if cmd, args, ok := parseCommand(text); ok {
		if handler := d.commands[cmd]; handler != nil {
			return handler, cmd, args
		}
		d.log.Debug("unknown command routed to conversation", slog.String("command", cmd))
	}

	return d.conversation, "", text
}

// parseCommand splits "/cmd@bot args" into "/cmd" and "args".
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	token, rest := text, ""
	if idx := strings.IndexFunc(text, unicode.IsSpace); idx >= 0 {
		token, rest = text[:idx], text[idx:]
	}
	if idx := strings.Index(token, "@"); idx > 0 {
		token = token[:idx]
	}
	if len(token) < 2 {
		return "", "", false
	}

	return strings.ToLower(token), strings.TrimSpace(rest), true
}
