package sessionsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkrupp/homecase-console/internal/domain"
	context_ "github.com/mkrupp/homecase-console/internal/infra/context"
	"github.com/mkrupp/homecase-console/internal/infra/i18n"
)

// LocaleStore holds the session's active locale. It is never persisted.
type LocaleStore struct {
	catalog   *i18n.Catalog
	observers observers[domain.Locale]

	m      sync.Mutex
	locale domain.Locale
}

// NewLocaleStore creates a store set to initial, or domain.DefaultLocale if initial is not supported.
func NewLocaleStore(catalog *i18n.Catalog, initial domain.Locale) *LocaleStore {
	if !initial.Valid() {
		initial = domain.DefaultLocale
	}

	return &LocaleStore{
		catalog: catalog,
		locale:  initial,
	}
}

// Locale returns the active locale.
func (s *LocaleStore) Locale() domain.Locale {
	s.m.Lock()
	defer s.m.Unlock()

	return s.locale
}

// SetLocale changes the active locale. Values outside the Locale enumeration
// are rejected with domain.ErrUnsupportedLocale.
func (s *LocaleStore) SetLocale(locale domain.Locale) error {
	if !locale.Valid() {
		return fmt.Errorf("set locale: %w: %q", domain.ErrUnsupportedLocale, locale)
	}

	s.m.Lock()
	changed := s.locale != locale
	s.locale = locale
	s.m.Unlock()

	if changed {
		s.observers.notify(locale)
	}

	return nil
}

// Subscribe registers fn to be called after every locale change.
func (s *LocaleStore) Subscribe(fn func(domain.Locale)) (unsubscribe func()) {
	return s.observers.subscribe(fn)
}

// Messages returns the bundle of the active locale.
func (s *LocaleStore) Messages() i18n.Messages {
	return s.catalog.Messages(s.Locale())
}

// T formats the message id in the active locale.
func (s *LocaleStore) T(id string, args map[string]any) string {
	return s.Messages().Format(id, args)
}

// WithContext returns ctx carrying the active locale, which outgoing requests
// send as Accept-Language.
func (s *LocaleStore) WithContext(ctx context.Context) context.Context {
	return context_.WithLocale(ctx, s.Locale())
}
