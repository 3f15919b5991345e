package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		cmd     string
		args    string
		matched bool
	}{
		{name: "plain", text: "/status", cmd: "/status", matched: true},
		{name: "with args", text: "/refund 20", cmd: "/refund", args: "20", matched: true},
		{name: "bot suffix", text: "/setdays@budget_bot 15", cmd: "/setdays", args: "15", matched: true},
		{name: "newline separator", text: "/settimezone\n+03:00", cmd: "/settimezone", args: "+03:00", matched: true},
		{name: "upper case", text: "/HELP", cmd: "/help", matched: true},
		{name: "bare slash", text: "/", matched: false},
		{name: "text", text: "15", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, ok := parseCommand(tt.text)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestDispatcher_Resolve(t *testing.T) {
	d := NewDispatcher(testLogger())

	var called string
	d.RegisterCommand(CommandStatus, func(telebot.Context) error { called = "status"; return nil })
	d.SetConversation(func(telebot.Context) error { called = "text"; return nil })
	d.RegisterAlias("📊 Balance", CommandStatus)

	tests := []struct {
		text   string
		cmd    string
		args   string
		target string
	}{
		{text: "/status", cmd: CommandStatus, target: "status"},
		{text: " 📊 Balance ", cmd: CommandStatus, target: "status"},
		{text: "/nope 5", cmd: "", args: "/nope 5", target: "text"},
		{text: "12.5", cmd: "", args: "12.5", target: "text"},
	}

	for _, tt := range tests {
		handler, cmd, args := d.Resolve(tt.text)
		require.NotNil(t, handler, tt.text)
		assert.Equal(t, tt.cmd, cmd, tt.text)
		assert.Equal(t, tt.args, args, tt.text)

		require.NoError(t, handler(nil))
		assert.Equal(t, tt.target, called, tt.text)
	}
}
