package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/teamify/internal/domain"
)

func newInitCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed the demo account unless users already exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			if err := svc.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("initialize: %w", err)
			}

			users, err := svc.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "store ready, %d user(s)\n", len(users))

			return nil
		},
	}
}

func newUsersCommand(app *App) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Inspect registered accounts",
	}

	users.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all accounts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := app.Service(cmd.Context())
				if err != nil {
					return err
				}

				list, err := svc.ListUsers(cmd.Context())
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}

				views := make([]domain.UserView, 0, len(list))
				for _, u := range list {
					views = append(views, u.View())
				}

				return app.render(cmd, views)
			},
		},
		&cobra.Command{
			Use:   "get <email>",
			Short: "Show one account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := app.Service(cmd.Context())
				if err != nil {
					return err
				}

				u, found, err := svc.FindByEmail(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("find user: %w", err)
				}

				if !found {
					return fmt.Errorf("%w: %s", domain.ErrUserNotFound, args[0])
				}

				return app.render(cmd, u.View())
			},
		},
	)

	return users
}
