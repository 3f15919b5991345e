package i18n

import (
	"sort"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_BundledCatalogsHaveSameKeys(t *testing.T) {
	manager, err := Load("ru")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, manager.Languages())

	ruKeys := keys(manager.translations["ru"])
	enKeys := keys(manager.translations["en"])
	assert.Equal(t, ruKeys, enKeys)
	assert.Contains(t, ruKeys, "budget.daily")
	assert.Contains(t, ruKeys, "errors.busy")
	assert.Contains(t, ruKeys, "help.text")
}

func TestTranslator_FormatSubstitutesParams(t *testing.T) {
	manager, err := Load("ru")
	require.NoError(t, err)

	tr := manager.Translator("en-US")
	assert.Equal(t, "en", tr.Lang())
	assert.Equal(t,
		"Refunded 20.00. Current balance: 120.00.",
		tr.Format("refund.done", map[string]string{"amount": "20.00", "balance": "120.00"}),
	)
	assert.Equal(t, "Balance: {balance}.", tr.Format("budget.balance", nil))
}

func TestTranslator_FallsBackToDefault(t *testing.T) {
	fsys := fstest.MapFS{
		"l/ru.yaml": {Data: []byte("ru:\n  greet: \"Привет\"\n  only_ru: \"только\"\n")},
		"l/en.yaml": {Data: []byte("en:\n  greet: \"Hello\"\n")},
	}

	manager, err := LoadFS(fsys, "l", "ru")
	require.NoError(t, err)

	assert.Equal(t, "ru", manager.Translator("de").Lang())
	assert.Equal(t, "Hello", manager.Translator("en").T("greet"))
	assert.Equal(t, "только", manager.Translator("en").T("only_ru"))
	assert.Equal(t, "missing.key", manager.Translator("en").T("missing.key"))
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"l/readme.txt": {Data: []byte("x")}}, "l", "ru")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"l/en.yaml": {Data: []byte("en:\n  a: b\n")}}, "l", "ru")
	assert.Error(t, err)
}

func TestNilManager(t *testing.T) {
	var manager *Manager

	tr := manager.Translator("ru")
	assert.Equal(t, "any.key", tr.T("any.key"))
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
