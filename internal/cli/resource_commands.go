package cli

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkrupp/homecase-console/internal/domain"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

func pageFlags(cmd *cobra.Command, page, limit *int) {
	cmd.Flags().IntVar(page, "page", defaultPage, "page number, starting at 1")
	cmd.Flags().IntVar(limit, "limit", defaultLimit, "entries per page")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func (a *app) usersCommand() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.session.Users()
			if err != nil {
				return err
			}

			users, err := client.List(a.ctx(cmd), page, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if users.Count() == 0 {
				a.println(out, "users.empty", nil)
			} else {
				table := newTable(out)
				_, _ = fmt.Fprintln(table, "ID\tEMAIL")

				for _, user := range users.Users {
					_, _ = fmt.Fprintf(table, "%s\t%s\n", user.ID, user.Email)
				}

				_ = table.Flush()
			}

			a.println(out, "users.summary", map[string]any{
				"count": users.Count(),
				"total": users.Total,
				"page":  users.Page,
				"max":   users.MaxPage(limit),
			})

			return nil
		},
	}

	pageFlags(cmd, &page, &limit)

	return cmd
}

func (a *app) tokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage the signed-in user's sessions",
	}

	var page, limit int

	list := &cobra.Command{
		Use:   "list",
		Short: "List the signed-in user's auth tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)

			user, err := a.session.RequireUser(ctx)
			if err != nil {
				return err
			}

			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			tokens, err := client.ListUserTokens(ctx, user.ID, page, limit)
			if err != nil {
				return err
			}

			printTokens(cmd.OutOrStdout(), tokens.AuthTokens)

			return nil
		},
	}
	pageFlags(list, &page, &limit)

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Invalidate a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			if err := client.RemoveAuthToken(a.ctx(cmd), args[0]); err != nil {
				return a.fail("app.action_error", err)
			}

			a.println(cmd.OutOrStdout(), "security.auth_token.removed", map[string]any{"id": args[0]})

			return nil
		},
	}

	cmd.AddCommand(list, remove)

	return cmd
}

func printTokens(w io.Writer, tokens []domain.AuthTokenEntry) {
	table := newTable(w)
	_, _ = fmt.Fprintln(table, "ID\tUSER AGENT")

	for _, token := range tokens {
		_, _ = fmt.Fprintf(table, "%s\t%s\n", token.ID, token.UserAgent)
	}

	_ = table.Flush()
}

func (a *app) clientsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage OAuth client credentials",
	}

	var page, limit int

	list := &cobra.Command{
		Use:   "list",
		Short: "List client credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			clients, err := client.ListClients(a.ctx(cmd), page, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if len(clients.Clients) == 0 {
				a.println(out, "security.client.empty", nil)

				return nil
			}

			table := newTable(out)
			_, _ = fmt.Fprintln(table, "ID\tSECRET\tDOMAIN\tREDIRECT URL\tSCOPES")

			for _, c := range clients.Clients {
				_, _ = fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Secret, c.Domain, c.RedirectURL, strings.Join(c.Scopes, ","))
			}

			return table.Flush()
		},
	}
	pageFlags(list, &page, &limit)

	var (
		clientDomain string
		redirectURL  string
		scopes       []string
	)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create client credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			if err := client.CreateClient(a.ctx(cmd), clientDomain, redirectURL, scopes); err != nil {
				return a.fail("app.action_error", err)
			}

			a.println(cmd.OutOrStdout(), "security.client.created", map[string]any{"domain": clientDomain})

			return nil
		},
	}
	create.Flags().StringVar(&clientDomain, "domain", "", "domain the client is used from")
	create.Flags().StringVar(&redirectURL, "redirect-url", "", "OAuth redirect URL")
	create.Flags().StringSliceVar(&scopes, "scope", []string{"user_read"}, "granted scopes (user_read, user_write)")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove client credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			if err := client.RemoveClient(a.ctx(cmd), args[0]); err != nil {
				return a.fail("app.action_error", err)
			}

			a.println(cmd.OutOrStdout(), "security.client.removed", map[string]any{"id": args[0]})

			return nil
		},
	}

	var tokenPage, tokenLimit int

	tokens := &cobra.Command{
		Use:   "tokens <id>",
		Short: "List tokens issued to a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			page, err := client.ListClientTokens(a.ctx(cmd), args[0], tokenPage, tokenLimit)
			if err != nil {
				return err
			}

			printTokens(cmd.OutOrStdout(), page.Tokens)

			return nil
		},
	}
	pageFlags(tokens, &tokenPage, &tokenLimit)

	cmd.AddCommand(list, create, remove, tokens)

	return cmd
}

func (a *app) authorizeCommand() *cobra.Command {
	var (
		clientID     string
		redirectURI  string
		responseType string
		state        string
		scopes       []string
		params       []string
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Grant an OAuth authorization request",
		Long: "Grant an OAuth authorization request as the signed-in user and print " +
			"the location the client should be redirected to.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			query.Set("client_id", clientID)
			query.Set("response_type", responseType)

			if redirectURI != "" {
				query.Set("redirect_uri", redirectURI)
			}

			if state != "" {
				query.Set("state", state)
			}

			if len(scopes) > 0 {
				query.Set("scope", strings.Join(scopes, " "))
			}

			for _, param := range params {
				key, value, ok := strings.Cut(param, "=")
				if !ok {
					return fmt.Errorf("%w: %q", errInvalidParam, param)
				}

				query.Set(key, value)
			}

			client, err := a.session.AuthAPI()
			if err != nil {
				return err
			}

			location, err := client.Authorize(a.ctx(cmd), query)
			if err != nil {
				return a.fail("app.action_error", err)
			}

			a.println(cmd.OutOrStdout(), "authorize.location", map[string]any{"location": location})

			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "OAuth redirect URI")
	cmd.Flags().StringVar(&responseType, "response-type", "code", "OAuth response type")
	cmd.Flags().StringVar(&state, "state", "", "opaque state echoed to the client")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "requested scopes")
	cmd.Flags().StringArrayVar(&params, "param", nil, "extra query parameter as key=value; repeated keys keep the last value")
	_ = cmd.MarkFlagRequired("client-id")

	return cmd
}
