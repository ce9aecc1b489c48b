package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/teamify/internal/domain"
)

func newPlansCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Show the pricing catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.render(cmd, domain.Plans())
		},
	}
}

func newPlanCommand(app *App) *cobra.Command {
	plan := &cobra.Command{
		Use:   "plan",
		Short: "Manage subscription plans",
	}

	plan.AddCommand(&cobra.Command{
		Use:   "set <email> <plan>",
		Short: "Change the plan of an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := domain.LookupPlan(args[1])
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrUnknownPlan, args[1])
			}

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

			if err := svc.UpdateUserPlan(cmd.Context(), u.Email, p.Name); err != nil {
				return fmt.Errorf("update plan: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s is now on %s\n", u.Email, p.Title)

			return nil
		},
	})

	return plan
}

func newCompanyCommand(app *App) *cobra.Command {
	company := &cobra.Command{
		Use:   "company",
		Short: "Manage the company of the logged-in user",
	}

	var profile domain.CompanyProfile

	set := &cobra.Command{
		Use:   "set",
		Short: "Record the company profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			if err := svc.UpdateCompany(cmd.Context(), profile); err != nil {
				return fmt.Errorf("update company: %w", err)
			}

			return nil
		},
	}

	set.Flags().StringVar(&profile.Name, "name", "", "company name")
	set.Flags().StringVar(&profile.Website, "website", "", "company website")
	set.Flags().StringVar(&profile.Size, "size", "", "company size, e.g. 1-10")

	company.AddCommand(set)

	return company
}
