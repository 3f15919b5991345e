package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/i18n"
	"github.com/Proton-105/budget-bot/internal/repository"
	"github.com/Proton-105/budget-bot/internal/state"
)

func TestRender_ReportNumbersPurchases(t *testing.T) {
	translations, err := i18n.Load("ru")
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := budget.NewService(repository.NewMemoryStore(), state.NewMemoryLocker(time.Second), log,
		budget.WithClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	_, err = svc.Init(ctx, 1)
	require.NoError(t, err)
	for _, text := range []string{"100", "10", "12,50", "7"} {
		_, err = svc.HandleText(ctx, 1, text)
		require.NoError(t, err)
	}

	reply, err := svc.Report(ctx, 1, 1)
	require.NoError(t, err)

	tests := map[string]string{
		"en": "Your purchases:\n#1: 12.50\n#2: 7.00",
		"ru": "Ваши покупки:\n#1: 12.50\n#2: 7.00",
	}
	for lang, want := range tests {
		assert.Equal(t, want, Render(translations.Translator(lang), reply), lang)
	}
}

func TestRender_NilTranslatorFallsBackToKeys(t *testing.T) {
	reply := budget.Reply{Lines: []budget.Line{{Key: "report.header"}, {Key: "report.empty"}}}
	assert.Equal(t, "report.header\nreport.empty", Render(nil, reply))
}
