package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/teamify/internal/domain"
)

func newValidateCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Check a session token against a running identitysvc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := app.NewClient(app.Config.Client)

			session, ok, err := client.Validate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			if !ok {
				return domain.ErrInvalidAuthToken
			}

			return app.render(cmd, session)
		},
	}

	cmd.Flags().StringVar(&app.Config.Client.ValidateURL, "server", app.Config.Client.ValidateURL, "validation endpoint")

	return cmd
}
