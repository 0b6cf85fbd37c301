package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/svc/callbacksvc"
	"github.com/mkrupp/homecase-console/internal/svc/sessionsvc"
)

func (a *app) loginCommand() *cobra.Command {
	var (
		redirectPath string
		manualToken  string
		noWait       bool
	)

	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in with a magic link",
		Long: "Send a magic sign-in link to email and wait until it is opened. " +
			"The link lands on a local listener which stores the delivered token. " +
			"With --token, store a token obtained elsewhere instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			out := cmd.OutOrStdout()

			if manualToken != "" {
				if err := a.session.Auth.SetToken(ctx, manualToken); err != nil {
					return err
				}

				return a.printSignedIn(ctx, cmd)
			}

			if len(args) == 0 {
				return fmt.Errorf("%w: email", errMissingArgument)
			}

			email := args[0]
			recv := callbacksvc.NewReceiver(a.session.Auth, a.catalog, a.cfg.Callback)

			if !noWait {
				// the delivered token resolves in the background while we wait
				if err := a.session.Start(ctx); err != nil {
					return err
				}

				if err := recv.Listen(ctx); err != nil {
					return err
				}
				defer func() { _ = recv.Close() }()

				if redirectPath == "" {
					redirectPath = recv.CallbackURL()
				}
			}

			users, err := a.session.Users()
			if err != nil {
				return err
			}

			if err := users.LoginWithEmail(ctx, email, redirectPath); err != nil {
				return a.fail("login.form.error", err)
			}

			a.println(out, "login.form.success.title", nil)
			a.println(out, "login.form.success.message", map[string]any{"email": email})

			if noWait {
				return nil
			}

			a.println(cmd.ErrOrStderr(), "login.wait", map[string]any{"url": recv.CallbackURL()})

			waitCtx, cancel := context.WithTimeout(ctx, a.cfg.LoginTimeout)
			defer cancel()

			if err := recv.Wait(waitCtx); err != nil {
				return err
			}

			state, err := a.session.User.Settled(waitCtx)
			if err != nil {
				return err
			}

			if state.Status == sessionsvc.StatusFailed {
				return state.Err
			}

			a.printUser(cmd, state.User)

			return nil
		},
	}

	cmd.Flags().StringVar(&redirectPath, "redirect-path", "", "where the magic link should land (default: the local listener)")
	cmd.Flags().StringVar(&manualToken, "token", "", "store this token instead of sending a link")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "send the link and exit without waiting")

	return cmd
}

func (a *app) printSignedIn(ctx context.Context, cmd *cobra.Command) error {
	user, err := a.session.User.Resolve(ctx)
	if err != nil {
		return err
	}

	a.printUser(cmd, user)

	return nil
}

func (a *app) printUser(cmd *cobra.Command, user *domain.User) {
	if user == nil {
		a.println(cmd.OutOrStdout(), "login.anonymous", nil)

		return
	}

	a.println(cmd.OutOrStdout(), "login.done", map[string]any{"email": user.Email})
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Auth.Logout(a.ctx(cmd)); err != nil {
				return err
			}

			a.println(cmd.OutOrStdout(), "login.logout", nil)

			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Long: "Print the signed-in user. A stored token the API no longer accepts " +
			"is removed and the session becomes anonymous.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.session.User.Resolve(a.ctx(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if user == nil {
				a.println(out, "login.anonymous", nil)

				return nil
			}

			_, _ = fmt.Fprintf(out, "ID:    %s\nEmail: %s\n", user.ID, user.Email)

			return nil
		},
	}
}

func (a *app) localeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "locale [code]",
		Short:     "Show or switch the UI language of this run",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: localeCodes(),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				a.println(out, "locale.current", map[string]any{"locale": a.session.Locale.Locale()})

				return nil
			}

			locale, err := domain.ParseLocale(args[0])
			if err != nil {
				return err
			}

			if err := a.session.Locale.SetLocale(locale); err != nil {
				return err
			}

			a.println(out, "locale.changed", map[string]any{"locale": locale})

			return nil
		},
	}
}

func localeCodes() []string {
	var codes []string
	for _, l := range domain.Locales() {
		codes = append(codes, l.String())
	}

	return codes
}

var (
	errMissingArgument = errors.New("missing argument")
	errInvalidParam    = errors.New("invalid parameter, want key=value")
)

// localizedError presents a translated message while keeping the cause matchable.
type localizedError struct {
	message string
	cause   error
}

func (e *localizedError) Error() string { return e.message }
func (e *localizedError) Unwrap() error { return e.cause }

// fail wraps err in the message id, which receives the cause as {error}.
func (a *app) fail(id string, err error) error {
	return &localizedError{message: a.t(id, map[string]any{"error": err}), cause: err}
}
