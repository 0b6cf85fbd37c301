// Package cli implements the console commands on top of a session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/infra/config"
	"github.com/mkrupp/homecase-console/internal/infra/i18n"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
	"github.com/mkrupp/homecase-console/internal/repo/token"
	"github.com/mkrupp/homecase-console/internal/svc/apiclient"
	"github.com/mkrupp/homecase-console/internal/svc/callbacksvc"
	"github.com/mkrupp/homecase-console/internal/svc/sessionsvc"
)

// Config is the complete console configuration.
type Config struct {
	config.EnvConfig

	Log        logging.LoggerConfig       `envPrefix:"LOG_"`
	API        apiclient.APIConfig        `envPrefix:"API_"`
	TokenStore token.Config               `envPrefix:"TOKEN_STORE_"`
	Auth       sessionsvc.AuthStoreConfig `envPrefix:"AUTH_"`
	Callback   callbacksvc.Config         `envPrefix:"CALLBACK_"`

	// Locale is the initial UI language; empty picks one from LC_ALL or LANG
	Locale string `env:"LOCALE" default:""`

	// LoginTimeout bounds how long login waits for the magic link
	LoginTimeout time.Duration `env:"LOGIN_TIMEOUT" default:"10m"`
}

type rootFlags struct {
	baseURL   string
	locale    string
	verbose   bool
	ephemeral bool
}

// app is the state shared by all commands of one invocation.
type app struct {
	cfg     Config
	flags   rootFlags
	catalog *i18n.Catalog
	session *sessionsvc.Session
	log     logging.Logger
}

// Execute runs the console with args against cfg and closes the session afterwards.
func Execute(ctx context.Context, cfg Config, args []string, stdout, stderr io.Writer) error {
	a := &app{cfg: cfg}

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	return errors.Join(err, a.close())
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "console",
		Short:         "Command-line console for the users and auth services.",
		Long:          "Command-line console for the users and auth services: sign in with a magic link, inspect users, sessions and OAuth clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.baseURL, "base-url", "", "API base URL (overrides "+envName("API_BASE_URL")+")")
	flags.StringVar(&a.flags.locale, "locale", "", "UI language for this run")
	flags.BoolVarP(&a.flags.verbose, "verbose", "v", false, "print debug logs")
	flags.BoolVar(&a.flags.ephemeral, "ephemeral", false, "keep the token in memory only")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.usersCommand(),
		a.tokensCommand(),
		a.clientsCommand(),
		a.authorizeCommand(),
		a.localeCommand(),
	)

	return root
}

// Namespace is the environment variable prefix of the console configuration.
const Namespace = "HOMECASE_CONSOLE"

func envName(name string) string {
	return Namespace + "_" + name
}

func (a *app) open(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("verbose") {
		a.cfg.Log.Level = logging.Verbosity(a.flags.verbose)
	}

	logging.Configure(ctx, a.cfg.Log, "homecase.console")
	a.log = logging.GetLogger("cli")

	if a.flags.baseURL != "" {
		a.cfg.API.BaseURL = a.flags.baseURL
	}

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	a.catalog = catalog

	locale, err := a.initialLocale()
	if err != nil {
		return err
	}

	api, err := apiclient.NewAPI(a.cfg.API, nil)
	if err != nil {
		return fmt.Errorf("new api: %w", err)
	}

	repoFactory := token.MemoryTokenRepositoryFactory()
	if !a.flags.ephemeral {
		if repoFactory, err = token.RepositoryFactoryFor(a.cfg.TokenStore); err != nil {
			return fmt.Errorf("token store: %w", err)
		}
	}

	session, err := sessionsvc.NewSession(ctx, api, repoFactory, a.cfg.Auth, catalog, locale)
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}

	a.session = session
	a.log.DebugContext(ctx, "session opened",
		"baseURL", a.cfg.API.BaseURL,
		"locale", locale,
		"authenticated", session.Auth.Authenticated(),
	)

	return nil
}

func (a *app) close() error {
	if a.session == nil {
		return nil
	}

	err := a.session.Close()
	a.session = nil

	return err
}

// initialLocale picks the flag, then the configured locale, then the environment's language.
func (a *app) initialLocale() (domain.Locale, error) {
	if a.flags.locale != "" {
		return domain.ParseLocale(a.flags.locale)
	}

	if a.cfg.Locale != "" {
		return domain.ParseLocale(a.cfg.Locale)
	}

	var prefs []string

	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := posixLocaleTag(os.Getenv(name)); v != "" {
			prefs = append(prefs, v)
		}
	}

	return a.catalog.Match(prefs...), nil
}

// posixLocaleTag turns "pl_PL.UTF-8" into "pl-PL".
func posixLocaleTag(v string) string {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}

	if v == "C" || v == "POSIX" {
		return ""
	}

	return strings.ReplaceAll(v, "_", "-")
}

// ctx returns the command context decorated for outgoing requests.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return a.session.Context(cmd.Context())
}

func (a *app) t(id string, args map[string]any) string {
	return a.session.Locale.T(id, args)
}

func (a *app) println(w io.Writer, id string, args map[string]any) {
	_, _ = fmt.Fprintln(w, a.t(id, args))
}
