package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/teamify/internal/infra/config"
	"github.com/mkrupp/teamify/internal/infra/logging"
	"github.com/mkrupp/teamify/internal/infra/transport/http"
	"github.com/mkrupp/teamify/internal/repo/kv"
	"github.com/mkrupp/teamify/internal/repo/user"
	"github.com/mkrupp/teamify/internal/svc/identitysvc"
)

const (
	appName = "teamify"
	svcName = "identitysvc"
)

type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig            `envPrefix:"LOG_"`
	Identity identitysvc.IdentityConfig      `envPrefix:""`
	Auth     identitysvc.AuthConfig          `envPrefix:"AUTH_"`
	HTTP     identitysvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Store    kv.StoreConfig                  `envPrefix:"STORE_"`
	User     user.KVRepositoryConfig         `envPrefix:"USER_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.identitysvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	storeFactory, err := cfg.Store.Factory()
	if err != nil {
		return fmt.Errorf("store factory: %w", err)
	}

	tokens, err := identitysvc.NewTokenIssuerFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("new token issuer: %w", err)
	}

	identitySvc, err := identitysvc.NewService(
		ctx,
		user.KVRepositoryFactory(cfg.User, storeFactory),
		cfg.Identity,
		identitysvc.WithTokenIssuer(tokens),
		identitysvc.WithMetrics(identitysvc.NewMetrics()),
	)
	if err != nil {
		return fmt.Errorf("new identity service: %w", err)
	}
	defer identitySvc.Close()

	if err := identitySvc.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	httpTransport := identitysvc.NewHTTPTransport(identitySvc, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
