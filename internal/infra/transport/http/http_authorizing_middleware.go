package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkrupp/teamify/internal/domain"
	context_ "github.com/mkrupp/teamify/internal/infra/context"
	"github.com/mkrupp/teamify/internal/infra/logging"
)

// AuthorizationHeader carries the bearer token.
const AuthorizationHeader = "Authorization"

// ErrorResponse is the JSON body of error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenValidator checks session tokens.
type TokenValidator interface {
	// Validate checks if the given token is valid.
	// Returns the session user the token belongs to, whether the token is valid,
	// and any error encountered during validation.
	Validate(ctx context.Context, token string) (*domain.SessionUser, bool, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Returns the token and true if present, or empty string and false if not.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get(AuthorizationHeader))

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

// AuthorizingMiddleware creates middleware that validates bearer tokens.
// Requests without a valid token are rejected with 401 Unauthorized.
// On successful validation, the session user is added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	validator TokenValidator,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			log.WarnContext(r.Context(), "no token provided")
			unauthorized(w, domain.ErrNoAuthToken)

			return
		}

		user, ok, err := validator.Validate(r.Context(), token)
		if err != nil {
			log.ErrorContext(r.Context(), "validate token failed", "error", err)
			unauthorized(w, domain.ErrInvalidAuthToken)

			return
		} else if !ok {
			log.WarnContext(r.Context(), "invalid token")
			unauthorized(w, domain.ErrInvalidAuthToken)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithSessionUser(r.Context(), user)))
	})
}

// Authorize returns AuthorizingMiddleware in the func(http.Handler) http.Handler
// form used by routers.
func Authorize(validator TokenValidator, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return AuthorizingMiddleware(next, validator, log)
	}
}

func unauthorized(w http.ResponseWriter, reason error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="teamify"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: reason.Error()})
}
