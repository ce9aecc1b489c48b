package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkrupp/teamify/internal/infra/logging"
	"github.com/mkrupp/teamify/internal/repo/user"
	"github.com/mkrupp/teamify/internal/svc/identitysvc"
	"github.com/mkrupp/teamify/internal/svc/identitysvc/identityclient"
)

// App carries the state shared by identityctl commands. The identity service
// is opened on first use and released by Close.
type App struct {
	Config Config

	// NewClient creates the remote client used by "validate".
	NewClient func(cfg identityclient.HTTPClientConfig) identityclient.IdentityClient

	log    logging.Logger
	output string
	svc    *identitysvc.Service
}

// NewApp creates an App for cfg.
func NewApp(cfg Config) *App {
	return &App{
		Config: cfg,
		NewClient: func(cfg identityclient.HTTPClientConfig) identityclient.IdentityClient {
			return identityclient.NewHTTPClient(cfg, nil)
		},
		log:    logging.GetLogger("cmd.root"),
		output: OutputText,
	}
}

// Service opens the identity service on the configured store.
func (a *App) Service(ctx context.Context) (*identitysvc.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	storeFactory, err := a.Config.Store.Factory()
	if err != nil {
		return nil, fmt.Errorf("store factory: %w", err)
	}

	svc, err := identitysvc.NewService(ctx, user.KVRepositoryFactory(a.Config.User, storeFactory), a.Config.Identity)
	if err != nil {
		return nil, fmt.Errorf("new identity service: %w", err)
	}

	a.log.DebugContext(ctx, "identity service opened", "driver", a.Config.Store.Driver)

	a.svc = svc

	return svc, nil
}

// Close releases the identity service if it was opened.
func (a *App) Close() error {
	if a.svc == nil {
		return nil
	}

	err := a.svc.Close()
	a.svc = nil

	if err != nil {
		return fmt.Errorf("close identity service: %w", err)
	}

	return nil
}

func (a *App) render(cmd *cobra.Command, v any) error {
	return render(cmd.OutOrStdout(), a.output, v)
}

// NewRootCommand builds the identityctl command tree on app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "identityctl",
		Short: "Manage Teamify accounts and the current session",
		Long: `identityctl operates on the Teamify identity store in-process.
It reads the same TEAMIFY_* environment as identitysvc, so both see the same
accounts and the same session marker.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOutput(app.output)
		},
	}

	root.PersistentFlags().StringVarP(&app.output, "output", "o", OutputText, "output format: text, json or yaml")

	root.AddCommand(
		newInitCommand(app),
		newUsersCommand(app),
		newRegisterCommand(app),
		newLoginCommand(app),
		newLogoutCommand(app),
		newWhoamiCommand(app),
		newPlanCommand(app),
		newPlansCommand(app),
		newCompanyCommand(app),
		newValidateCommand(app),
	)

	return root
}

// Execute runs identityctl with args and releases the service afterwards.
func Execute(ctx context.Context, cfg Config, args []string) (err error) {
	app := NewApp(cfg)

	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	root := NewRootCommand(app)
	root.SetArgs(args)

	return root.ExecuteContext(ctx)
}
