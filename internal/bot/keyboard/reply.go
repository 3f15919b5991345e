package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/i18n"
)

// MenuItem ties a main-menu button to the command it stands for.
type MenuItem struct {
	Key     string
	Command string
}

// MenuItems lists the main-menu buttons in display order.
var MenuItems = []MenuItem{
	{Key: "main_menu.status", Command: "/status"},
	{Key: "main_menu.report", Command: "/report"},
	{Key: "main_menu.help", Command: "/help"},
}

// MainMenu builds a localized reply keyboard for the bot main menu.
func MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	lookup := func(key string) string {
		if t == nil {
			return key
		}
		return t.T(key)
	}

	statusBtn := markup.Text(lookup(MenuItems[0].Key))
	reportBtn := markup.Text(lookup(MenuItems[1].Key))
	helpBtn := markup.Text(lookup(MenuItems[2].Key))

	markup.Reply(
		markup.Row(statusBtn, reportBtn),
		markup.Row(helpBtn),
	)

	return markup
}

// MenuCommands maps every localized button text to its command, across
// all given translators.
func MenuCommands(translators ...i18n.Translator) map[string]string {
	commands := make(map[string]string, len(MenuItems)*len(translators))
	for _, t := range translators {
		if t == nil {
			continue
		}
		for _, item := range MenuItems {
			commands[t.T(item.Key)] = item.Command
		}
	}
	return commands
}
