package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/teamify/internal/domain"
	"github.com/mkrupp/teamify/internal/svc/identitysvc"
)

func newRegisterCommand(app *App) *cobra.Command {
	var params domain.RegisterParams

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if params.Plan != "" {
				plan, ok := domain.LookupPlan(params.Plan)
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrUnknownPlan, params.Plan)
				}

				params.Plan = plan.Name
			}

			if params.Password == "" {
				pw, err := promptPassword(cmd, "Password: ")
				if err != nil {
					return err
				}

				params.Password = pw
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			u, err := svc.Register(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}

			return app.render(cmd, u.View())
		},
	}

	cmd.Flags().StringVar(&params.Name, "name", "", "display name")
	cmd.Flags().StringVar(&params.Email, "email", "", "email address")
	cmd.Flags().StringVar(&params.Password, "password", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&params.Plan, "plan", "", "initial plan")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// loginResult is printed by "login --token".
type loginResult struct {
	User  *domain.SessionUser `json:"user"  yaml:"user"`
	Token string              `json:"token" yaml:"token"`
}

func newLoginCommand(app *App) *cobra.Command {
	var (
		email, pw string
		withToken bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pw == "" {
				var err error
				if pw, err = promptPassword(cmd, "Password: "); err != nil {
					return err
				}
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			u, err := svc.Login(cmd.Context(), email, pw)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			session := u.Session()

			if !withToken {
				return app.render(cmd, &session)
			}

			tokens, err := identitysvc.NewTokenIssuerFromConfig(app.Config.Auth)
			if err != nil {
				return fmt.Errorf("new token issuer: %w", err)
			}

			token, err := tokens.Issue(session)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}

			if app.output == OutputText {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)

				return nil
			}

			return app.render(cmd, loginResult{User: &session, Token: token})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&pw, "password", "", "password (prompted when empty)")
	cmd.Flags().BoolVar(&withToken, "token", false, "print a signed session token")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			if err := svc.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}

			return nil
		},
	}
}

func newWhoamiCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			current, ok := svc.CurrentUser(cmd.Context())
			if !ok || !svc.IsAuthenticated(cmd.Context()) {
				return domain.ErrNotAuthenticated
			}

			return app.render(cmd, current)
		},
	}
}
