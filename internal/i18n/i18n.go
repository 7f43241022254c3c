// Package i18n resolves localized labels from YAML catalogs.
//
// A catalog file maps a language code to a tree of labels:
//
//	en:
//	  keyboard:
//	    back: "« Back"
//
// Nested keys are addressed with dots ("keyboard.back"). Several files may
// contribute to the same language; later files win on conflicting keys.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves localized strings using dot-separated keys.
// Unknown keys resolve to the key itself.
type Translator interface {
	T(key string) string
	Lang() string
}

type catalog map[string]map[string]string

// Manager holds every loaded language.
type Manager struct {
	langs       catalog
	defaultLang string
}

// Load uses the catalogs compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	sub, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: open embedded locales: %w", err)
	}
	return newManager(sub, "embedded", defaultLang)
}

// LoadFromDir reads *.yaml and *.yml files from dir. An empty dir means the embedded catalogs.
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return Load(defaultLang)
	}
	return newManager(os.DirFS(dir), dir, defaultLang)
}

func newManager(fsys fs.FS, origin, defaultLang string) (*Manager, error) {
	langs, err := readCatalogs(fsys, origin)
	if err != nil {
		return nil, err
	}

	defaultLang = normalize(defaultLang)
	if defaultLang == "" {
		defaultLang = "en"
	}
	if _, ok := langs[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing in %s", defaultLang, origin)
	}

	return &Manager{langs: langs, defaultLang: defaultLang}, nil
}

// Translator returns a translator for lang. Regional codes such as "pt-BR" use their base
// language, and unknown languages use the default one.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	lang = normalize(lang)
	if _, ok := m.langs[lang]; !ok {
		lang = m.defaultLang
	}
	return translator{lang: lang, primary: m.langs[lang], fallback: m.langs[m.defaultLang]}
}

// Languages lists the loaded language codes in order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.langs))
	for lang := range m.langs {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}

// Label resolves key through t, returning fallback when t is nil or the key is missing.
func Label(t Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}
	if text := strings.TrimSpace(t.T(key)); text != "" && text != key {
		return text
	}
	return fallback
}

// Fill substitutes {{.Name}} placeholders in text. pairs alternate name and value.
func Fill(text string, pairs ...string) string {
	if len(pairs) < 2 {
		return text
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		args = append(args, "{{."+pairs[i]+"}}", pairs[i+1])
	}
	return strings.NewReplacer(args...).Replace(text)
}

type translator struct {
	lang     string
	primary  map[string]string
	fallback map[string]string
}

func (t translator) Lang() string { return t.lang }

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if v, ok := t.primary[key]; ok && v != "" {
		return v
	}
	if v, ok := t.fallback[key]; ok && v != "" {
		return v
	}
	return key
}

func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if base, _, ok := strings.Cut(lang, "-"); ok {
		return base
	}
	if base, _, ok := strings.Cut(lang, "_"); ok {
		return base
	}
	return lang
}

func readCatalogs(fsys fs.FS, origin string) (catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", origin, err)
	}

	langs := make(catalog)
	files := 0
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files++

		if err := readCatalog(fsys, entry.Name(), langs); err != nil {
			return nil, fmt.Errorf("i18n: %s/%s: %w", origin, entry.Name(), err)
		}
	}
	if files == 0 {
		return nil, fmt.Errorf("i18n: no yaml files in %s", origin)
	}

	return langs, nil
}

func readCatalog(fsys fs.FS, name string, into catalog) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("top level must map language codes, got %s", root.Tag)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		lang := normalize(root.Content[i].Value)
		if lang == "" {
			continue
		}
		labels := into[lang]
		if labels == nil {
			labels = make(map[string]string)
			into[lang] = labels
		}
		collect("", root.Content[i+1], labels)
	}

	return nil
}

// collect walks a mapping node and records every scalar leaf under its dotted path.
func collect(prefix string, node *yaml.Node, out map[string]string) {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			collect(key, node.Content[i+1], out)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			collect(prefix, node.Alias, out)
		}
	}
}
