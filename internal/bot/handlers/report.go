package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/bot/keyboard"
)

// Report handles /report and sends the first page of purchases.
func (b *Budget) Report() Handler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		result, err := b.service.Report(Context(c), userID, keyboard.ParsePage(Args(c)))
		if err != nil {
			return err
		}

		t := b.localizer.For(c)
		markup, err := keyboard.ReportPagination(t, result.Page, result.Pages)
		if err != nil {
			return err
		}
		if markup == nil {
			return c.Send(Render(t, result))
		}
		return c.Send(Render(t, result), markup)
	}
}

// ReportPage handles the inline ◀️/▶️ buttons by editing the report in place.
func (b *Budget) ReportPage() CallbackHandler {
	return func(c telebot.Context) error {
		userID, ok := senderID(c)
		if !ok {
			return nil
		}

		result, err := b.service.Report(Context(c), userID, keyboard.ParsePage(CallbackData(c)))
		if err != nil {
			return err
		}

		t := b.localizer.For(c)
		markup, err := keyboard.ReportPagination(t, result.Page, result.Pages)
		if err != nil {
			return err
		}

		text := Render(t, result)
		if markup != nil {
			err = c.Edit(text, markup)
		} else {
			err = c.Edit(text)
		}
		if err != nil && !errors.Is(err, telebot.ErrSameMessageContent) {
			b.log.Warn("failed to edit report page", slog.Int64("user_id", userID), slog.Any("error", err))
		}

		return c.Respond()
	}
}
