package identitysvc

import (
	"time"

	"github.com/mkrupp/teamify/internal/util/password"
)

// IdentityConfig contains configuration parameters for the identity service.
type IdentityConfig struct {
	// Password holds the Argon2id cost parameters
	Password password.HasherConfig `envPrefix:"PASSWORD_"`
}

// AuthConfig contains configuration parameters for session tokens.
type AuthConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/identitysvc.key"`

	// TokenDuration is the validity of issued tokens. Zero issues tokens
	// without expiry; they stay valid until the session ends.
	TokenDuration time.Duration `env:"TOKEN_DURATION" default:"0s"`

	// Issuer is the "iss" claim of issued tokens
	Issuer string `env:"ISSUER" default:"teamify"`
}
