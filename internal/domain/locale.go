package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLocale is returned for locale codes outside the Locale enumeration.
var ErrUnsupportedLocale = errors.New("unsupported locale")

// Locale is a supported UI language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocalePL Locale = "pl"

	DefaultLocale = LocaleEN
)

// Locales lists every supported locale in display order.
func Locales() []Locale {
	return []Locale{LocaleEN, LocalePL}
}

// Valid reports whether l is part of the enumeration.
func (l Locale) Valid() bool {
	for _, known := range Locales() {
		if l == known {
			return true
		}
	}

	return false
}

func (l Locale) String() string {
	return string(l)
}

// ParseLocale parses a locale code case-insensitively.
func ParseLocale(code string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(code)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLocale, code)
	}

	return l, nil
}
