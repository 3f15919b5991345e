package handlers

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/i18n"
)

// Render joins the translated lines of reply.
func Render(t i18n.Translator, reply budget.Reply) string {
	lines := make([]string, 0, len(reply.Lines))
	for _, line := range reply.Lines {
		if t == nil {
			lines = append(lines, line.Key)
			continue
		}
		lines = append(lines, t.Format(line.Key, line.Params))
	}
	return strings.Join(lines, "\n")
}

// Localizer picks the translator for an update's sender.
type Localizer struct {
	manager     *i18n.Manager
	defaultLang string
}

// NewLocalizer builds a Localizer falling back to defaultLang.
func NewLocalizer(manager *i18n.Manager, defaultLang string) *Localizer {
	return &Localizer{manager: manager, defaultLang: defaultLang}
}

// For returns the translator matching the sender's Telegram language.
func (l *Localizer) For(c telebot.Context) i18n.Translator {
	if l == nil {
		var manager *i18n.Manager
		return manager.Translator("")
	}

	lang := l.defaultLang
	if c != nil && c.Sender() != nil && c.Sender().LanguageCode != "" {
		lang = c.Sender().LanguageCode
	}
	return l.manager.Translator(lang)
}

// All returns a translator per loaded language.
func (l *Localizer) All() []i18n.Translator {
	if l == nil {
		return nil
	}

	languages := l.manager.Languages()
	translators := make([]i18n.Translator, 0, len(languages))
	for _, lang := range languages {
		translators = append(translators, l.manager.Translator(lang))
	}
	return translators
}
