package http

import (
	"net/http"

	"github.com/mkrupp/homecase-console/internal/domain"
	context_ "github.com/mkrupp/homecase-console/internal/infra/context"
)

// LocaleMatcher picks a supported locale for a list of language preferences.
type LocaleMatcher interface {
	Match(preferences ...string) domain.Locale
}

// LocalizingMiddleware creates middleware that resolves the request locale.
// A "lang" query parameter wins over the Accept-Language header.
// The matched locale is added to the request context.
func LocalizingMiddleware(next http.Handler, matcher LocaleMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var preferences []string

		if lang := r.URL.Query().Get("lang"); lang != "" {
			preferences = append(preferences, lang)
		}

		if accept := r.Header.Get("Accept-Language"); accept != "" {
			preferences = append(preferences, accept)
		}

		locale := matcher.Match(preferences...)
		w.Header().Set("Content-Language", locale.String())

		next.ServeHTTP(w, r.WithContext(context_.WithLocale(r.Context(), locale)))
	})
}
