package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogs(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, m.Languages())

	ru := m.Translator("RU")
	assert.Equal(t, "ru", ru.Lang())
	assert.Equal(t, "« Назад", ru.T("keyboard.back"))
	// missing in ru, resolved from en
	assert.Equal(t, "Price: ${{.Value}}", ru.T("view.price"))

	assert.Equal(t, "en", m.Translator("de").Lang())
	assert.Equal(t, "ru", m.Translator("ru-RU").Lang())
	assert.Equal(t, "no.such.key", m.Translator("en").T("no.such.key"))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yml"), []byte("en:\n  a:\n    b: hello\n"), 0o600))

	m, err := LoadFromDir(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Translator("en").T("a.b"))

	_, err = LoadFromDir(dir, "fr")
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)

	assert.Equal(t, "« Back", Label(m.Translator("en"), "keyboard.back", "Back"))
	assert.Equal(t, "fallback", Label(m.Translator("en"), "keyboard.missing", "fallback"))
	assert.Equal(t, "fallback", Label(nil, "keyboard.back", "fallback"))
}

func TestLaterFilesExtendLanguages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("en:\n  x: one\n  y: two\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("EN:\n  y: three\n  z:\n    n: 4\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	m, err := LoadFromDir(dir, "en")
	require.NoError(t, err)

	en := m.Translator("en")
	assert.Equal(t, "one", en.T("x"))
	assert.Equal(t, "three", en.T("y"))
	assert.Equal(t, "4", en.T("z.n"))
}

func TestLoadFromDirRejectsListRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("- en\n"), 0o600))

	_, err := LoadFromDir(dir, "en")
	assert.Error(t, err)
}

func TestFill(t *testing.T) {
	assert.Equal(t, "PEPE (Pepe)", Fill("{{.Symbol}} ({{.Name}})", "Symbol", "PEPE", "Name", "Pepe"))
	assert.Equal(t, "Page 2/3", Fill("Page {{.Page}}/{{.Total}}", "Page", "2", "Total", "3"))
	assert.Equal(t, "untouched", Fill("untouched"))
}
