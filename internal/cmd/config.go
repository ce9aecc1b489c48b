package cmd

import (
	"github.com/mkrupp/teamify/internal/infra/config"
	"github.com/mkrupp/teamify/internal/infra/logging"
	"github.com/mkrupp/teamify/internal/repo/kv"
	"github.com/mkrupp/teamify/internal/repo/user"
	"github.com/mkrupp/teamify/internal/svc/identitysvc"
	"github.com/mkrupp/teamify/internal/svc/identitysvc/identityclient"
)

// Config holds the settings identityctl reads from the environment.
// It shares the service's variable names, so TEAMIFY_STORE_DRIVER and friends
// apply to both.
type Config struct {
	config.EnvConfig

	Log      logging.LoggerConfig            `envPrefix:"LOG_"`
	Identity identitysvc.IdentityConfig      `envPrefix:""`
	Auth     identitysvc.AuthConfig          `envPrefix:"AUTH_"`
	Store    kv.StoreConfig                  `envPrefix:"STORE_"`
	User     user.KVRepositoryConfig         `envPrefix:"USER_"`
	Client   identityclient.HTTPClientConfig `envPrefix:"CLIENT_"`
}
