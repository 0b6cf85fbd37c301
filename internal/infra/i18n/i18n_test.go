package i18n_test

import (
	"testing"
	"testing/fstest"

	"github.com/mkrupp/homecase-console/internal/domain"

	. "github.com/mkrupp/homecase-console/internal/infra/i18n"
)

func TestParse_FlattensNestedKeys(t *testing.T) {
	t.Parallel()

	messages, err := Parse([]byte(`
login:
  form:
    submit: Send
  count: 3
title: Console
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := map[string]string{
		"login.form.submit": "Send",
		"login.count":       "3",
		"title":             "Console",
	}

	if len(messages) != len(want) {
		t.Errorf("Parse() = %v, want %v", messages, want)
	}

	for id, msg := range want {
		if messages[id] != msg {
			t.Errorf("messages[%q] = %q, want %q", id, messages[id], msg)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("login: [unterminated")); err == nil {
		t.Error("Parse() accepted invalid YAML")
	}
}

func TestMessages_Format(t *testing.T) {
	t.Parallel()

	messages := Messages{
		"users.summary": "Users: {count}/{total}",
		"plain":         "Hello",
	}

	tests := []struct {
		name string
		id   string
		args map[string]any
		want string
	}{
		{name: "replaces placeholders", id: "users.summary", args: map[string]any{"count": 8, "total": 28}, want: "Users: 8/28"},
		{name: "keeps unknown placeholders", id: "users.summary", args: map[string]any{"count": 8}, want: "Users: 8/{total}"},
		{name: "no args", id: "plain", want: "Hello"},
		{name: "missing id", id: "nope", want: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := messages.Format(tt.id, tt.args); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_EmbeddedBundles(t *testing.T) {
	t.Parallel()

	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	locales := catalog.Locales()
	if len(locales) != 2 || locales[0] != domain.LocaleEN || locales[1] != domain.LocalePL {
		t.Errorf("Locales() = %v", locales)
	}

	if got := catalog.Messages(domain.LocalePL)["login.logout"]; got != "Wylogowano" {
		t.Errorf("pl login.logout = %q", got)
	}

	// pl has no translation; the default bundle fills the gap
	if got := catalog.Messages(domain.LocalePL)["security.client.empty"]; got != "No client credentials" {
		t.Errorf("pl security.client.empty = %q", got)
	}
}

func TestCatalog_Match(t *testing.T) {
	t.Parallel()

	catalog, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name        string
		preferences []string
		want        domain.Locale
	}{
		{name: "exact", preferences: []string{"pl"}, want: domain.LocalePL},
		{name: "region", preferences: []string{"pl-PL"}, want: domain.LocalePL},
		{name: "accept language", preferences: []string{"de-DE,pl;q=0.8,en;q=0.5"}, want: domain.LocalePL},
		{name: "unsupported", preferences: []string{"ja"}, want: domain.LocaleEN},
		{name: "none", want: domain.LocaleEN},
		{name: "garbage", preferences: []string{"!!"}, want: domain.LocaleEN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := catalog.Match(tt.preferences...); got != tt.want {
				t.Errorf("Match(%v) = %q, want %q", tt.preferences, got, tt.want)
			}
		})
	}
}

func TestLoadFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"b/en.yaml":    {Data: []byte("greeting: Hello\nfarewell: Bye\n")},
		"b/pl.yaml":    {Data: []byte("greeting: Cześć\n")},
		"b/de.yaml":    {Data: []byte("greeting: Hallo\n")},
		"b/README.txt": {Data: []byte("ignored")},
	}

	catalog, err := LoadFS(fsys, "b", domain.LocaleEN)
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}

	if got := catalog.Messages(domain.LocalePL)["farewell"]; got != "Bye" {
		t.Errorf("pl farewell = %q, want fallback", got)
	}

	if got := catalog.Messages(domain.Locale("de"))["greeting"]; got != "Hello" {
		t.Errorf("unsupported locale greeting = %q, want fallback", got)
	}

	if _, err := LoadFS(fstest.MapFS{"b/pl.yaml": {Data: []byte("a: b")}}, "b", domain.LocaleEN); err == nil {
		t.Error("LoadFS() without fallback bundle succeeded")
	}
}
