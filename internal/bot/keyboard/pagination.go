package keyboard

import (
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/i18n"
)

// ActionReport is the callback action of the purchase report pages.
const ActionReport = "report"

// PaginationButtons returns up to three inline buttons (prev, current page, next)
// allowing the caller to paginate lists using a shared action prefix.
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	page = min(max(page, 1), totalPages)

	buttons := make([]InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.prev", "◀️"),
			Unique: action,
			Data:   strconv.Itoa(page - 1),
		})
	}

	buttons = append(buttons, InlineButton{
		Text:   paginationLabel(t, page, totalPages),
		Unique: action,
		Data:   strconv.Itoa(page),
	})

	if page < totalPages {
		buttons = append(buttons, InlineButton{
			Text:   translated(t, "pagination.next", "▶️"),
			Unique: action,
			Data:   strconv.Itoa(page + 1),
		})
	}

	return buttons
}

// ReportPagination builds the inline navigation for a report page.
// A single page needs no navigation and yields nil.
func ReportPagination(t i18n.Translator, page, totalPages int) (*telebot.ReplyMarkup, error) {
	if totalPages <= 1 {
		return nil, nil
	}

	return NewInlineKeyboard().
		AddRow(PaginationButtons(t, ActionReport, page, totalPages)...).
		Build()
}

// ParsePage reads the page number carried in callback data.
func ParsePage(data string) int {
	page, err := strconv.Atoi(strings.TrimSpace(data))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}

func paginationLabel(t i18n.Translator, page, total int) string {
	fallback := strconv.Itoa(page) + "/" + strconv.Itoa(total)
	if t == nil {
		return fallback
	}

	label := t.Format("pagination.page", map[string]string{
		"page":  strconv.Itoa(page),
		"pages": strconv.Itoa(total),
	})
	if label == "" || label == "pagination.page" || strings.Contains(label, "{") {
		return fallback
	}

	return label
}
