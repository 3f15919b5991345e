package handlers

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/keyboard"
)

// Start handles /start: it creates a record when none exists and shows
// the main menu.
func (b *Budget) Start() Handler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			b.log.Warn("start handler invoked without sender")
			return nil
		}

		result, err := b.service.Init(Context(c), userID)
		if err != nil {
			return err
		}

		t := b.localizer.For(c)
		return c.Send(Render(t, result), keyboard.MainMenu(t))
	}
}

// Help lists the commands together with the main menu.
func (b *Budget) Help() Handler {
	return func(c telebot.Context) error {
		t := b.localizer.For(c)
		return c.Send(Render(t, b.service.Help()), keyboard.MainMenu(t))
	}
}
