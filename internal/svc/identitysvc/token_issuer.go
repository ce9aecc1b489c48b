package identitysvc

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mkrupp/teamify/internal/domain"
)

// ErrNoTokenIssuer is returned by token operations of a service built without a TokenIssuer.
var ErrNoTokenIssuer = errors.New("no token issuer configured")

// TokenIssuer signs and verifies RS256 session tokens.
type TokenIssuer struct {
	key *rsa.PrivateKey
	cfg AuthConfig
	now func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with key.
func NewTokenIssuer(key *rsa.PrivateKey, cfg AuthConfig) *TokenIssuer {
	return &TokenIssuer{key: key, cfg: cfg, now: time.Now}
}

// NewTokenIssuerFromConfig loads or creates the signing key named by cfg.
func NewTokenIssuerFromConfig(cfg AuthConfig) (*TokenIssuer, error) {
	key, err := GetPrivateKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return NewTokenIssuer(key, cfg), nil
}

// WithClock returns a copy of the issuer using now as its time source.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	clone := *ti
	clone.now = now

	return &clone
}

// Issue returns a signed token for user.
func (ti *TokenIssuer) Issue(user domain.SessionUser) (string, error) {
	now := ti.now()

	claims := domain.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   ti.cfg.Issuer,
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Email:       user.Email,
		Name:        user.Name,
		CompanyName: user.CompanyName,
		Plan:        user.Plan,
	}

	if ti.cfg.TokenDuration > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ti.cfg.TokenDuration))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies the signature, algorithm, issuer and expiry of token and
// returns its claims. Every failure is joined with domain.ErrInvalidAuthToken.
func (ti *TokenIssuer) Parse(token string) (*domain.AuthClaims, error) {
	if token == "" {
		return nil, domain.ErrNoAuthToken
	}

	var claims domain.AuthClaims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
		jwt.WithIssuedAt(),
	}

	if ti.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.cfg.Issuer))
	}

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return &ti.key.PublicKey, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidAuthToken, fmt.Errorf("parse token: %w", err))
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("parse token: %w: no subject", domain.ErrInvalidAuthToken)
	}

	return &claims, nil
}
