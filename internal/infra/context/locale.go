package context

import (
	"context"

	"github.com/mkrupp/homecase-console/internal/domain"
)

const contextKeyLocale = contextKey("locale")

// LocaleFromContext extracts the active locale from the context.
func LocaleFromContext(ctx context.Context) (domain.Locale, bool) {
	locale, ok := ctx.Value(contextKeyLocale).(domain.Locale)

	return locale, ok
}

// WithLocale creates a new context carrying the given locale.
func WithLocale(ctx context.Context, locale domain.Locale) context.Context {
	return context.WithValue(ctx, contextKeyLocale, locale)
}
