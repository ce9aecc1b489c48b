package identityclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkrupp/teamify/internal/domain"
	context_ "github.com/mkrupp/teamify/internal/infra/context"
	"github.com/mkrupp/teamify/internal/infra/logging"
	http_ "github.com/mkrupp/teamify/internal/infra/transport/http"
)

// ErrUnexpectedStatus is returned for responses that are neither a success nor a rejection.
var ErrUnexpectedStatus = errors.New("unexpected status")

// HTTPClientConfig holds configuration for the HTTP identity client.
type HTTPClientConfig struct {
	// ValidateURL is the endpoint for token validation requests
	ValidateURL string `env:"VALIDATE_URL" default:"http://localhost:8080/auth/validate"`
	// Timeout bounds each validation request
	Timeout time.Duration `env:"TIMEOUT" default:"5s"`
}

// HTTPClient implements IdentityClient using HTTP requests to validate tokens.
type HTTPClient struct {
	httpClient *http.Client
	log        logging.Logger
	cfg        HTTPClientConfig
}

var (
	_ IdentityClient       = (*HTTPClient)(nil)
	_ http_.TokenValidator = (*HTTPClient)(nil)
)

// NewHTTPClient creates a new HTTPClient with the given configuration.
// If httpClient is nil, a client with cfg.Timeout is used.
func NewHTTPClient(
	cfg HTTPClientConfig,
	httpClient *http.Client,
) *HTTPClient {
	if httpClient == nil {
		//nolint:exhaustruct
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		httpClient: httpClient,
		log:        logging.GetLogger("svc.identitysvc.identityclient.http_client"),
		cfg:        cfg,
	}
}

// Validate implements IdentityClient.Validate by making an HTTP request to the
// configured validation endpoint. The token is sent as a bearer token; a
// "Bearer " prefix already present on token is kept as is.
func (hc *HTTPClient) Validate(ctx context.Context, token string) (*domain.SessionUser, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.cfg.ValidateURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("new request: %w", err)
	}

	if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = "Bearer " + token
	}

	req.Header.Set(http_.AuthorizationHeader, token)

	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		req.Header.Set(http_.TraceIDHeader, traceID)
	}

	resp, err := hc.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusBadRequest:
		hc.log.DebugContext(ctx, "token rejected", "status", resp.StatusCode)

		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var user domain.SessionUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	return &user, true, nil
}
