// Package i18n loads translated message bundles and matches requested
// languages against the available ones.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/mkrupp/homecase-console/internal/domain"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// ErrMissingBundle is returned when the fallback locale has no bundle.
var ErrMissingBundle = errors.New("missing message bundle")

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Messages is a flat bundle of message ids to message templates.
type Messages map[string]string

// Format returns the message for id with {name} placeholders replaced from args.
// Unknown ids return the id itself; placeholders without an argument are kept.
func (m Messages) Format(id string, args map[string]any) string {
	msg, ok := m[id]
	if !ok {
		return id
	}

	if len(args) == 0 {
		return msg
	}

	return placeholder.ReplaceAllStringFunc(msg, func(match string) string {
		if v, ok := args[match[1:len(match)-1]]; ok {
			return fmt.Sprint(v)
		}

		return match
	})
}

// Catalog holds the bundles of every available locale.
type Catalog struct {
	bundles  map[domain.Locale]Messages
	locales  []domain.Locale
	fallback domain.Locale
	matcher  language.Matcher
}

// Load reads the embedded bundles with domain.DefaultLocale as fallback.
func Load() (*Catalog, error) {
	return LoadFS(localesFS, "locales", domain.DefaultLocale)
}

// LoadFS reads every <locale>.yaml file in dir. Files named after
// unsupported locales are skipped. Messages missing from a bundle are
// taken from the fallback bundle.
func LoadFS(fsys fs.FS, dir string, fallback domain.Locale) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	bundles := make(map[domain.Locale]Messages)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}

		locale, err := domain.ParseLocale(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue
		}

		buf, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		messages, err := Parse(buf)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		bundles[locale] = messages
	}

	base, ok := bundles[fallback]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingBundle, fallback)
	}

	locales := []domain.Locale{fallback}
	for locale, messages := range bundles {
		for id, msg := range base {
			if _, ok := messages[id]; !ok {
				messages[id] = msg
			}
		}

		if locale != fallback {
			locales = append(locales, locale)
		}
	}

	slices.Sort(locales[1:])

	tags := make([]language.Tag, len(locales))
	for i, locale := range locales {
		tags[i] = language.Make(locale.String())
	}

	return &Catalog{
		bundles:  bundles,
		locales:  locales,
		fallback: fallback,
		matcher:  language.NewMatcher(tags),
	}, nil
}

// Parse decodes a YAML bundle and flattens nested keys into dotted ids.
func Parse(buf []byte) (Messages, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(buf, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	messages := make(Messages)
	flatten(messages, "", tree)

	return messages, nil
}

func flatten(out Messages, prefix string, node map[string]any) {
	for key, value := range node {
		id := key
		if prefix != "" {
			id = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flatten(out, id, v)
		case nil:
			out[id] = ""
		default:
			out[id] = fmt.Sprint(v)
		}
	}
}

// Locales returns the available locales, fallback first.
func (c *Catalog) Locales() []domain.Locale {
	return append([]domain.Locale(nil), c.locales...)
}

// Messages returns the bundle for locale, or the fallback bundle if locale has none.
func (c *Catalog) Messages(locale domain.Locale) Messages {
	if messages, ok := c.bundles[locale]; ok {
		return messages
	}

	return c.bundles[c.fallback]
}

// Match picks the best available locale for the given language preferences,
// each either a language tag ("pl-PL") or an Accept-Language value.
// Returns the fallback when nothing matches.
func (c *Catalog) Match(preferences ...string) domain.Locale {
	var tags []language.Tag

	for _, pref := range preferences {
		parsed, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}

		tags = append(tags, parsed...)
	}

	if len(tags) == 0 {
		return c.fallback
	}

	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return c.fallback
	}

	return c.locales[index]
}
