package identitysvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/teamify/internal/domain"
	context_ "github.com/mkrupp/teamify/internal/infra/context"
	"github.com/mkrupp/teamify/internal/infra/logging"
	http_ "github.com/mkrupp/teamify/internal/infra/transport/http"
)

const maxBodyBytes = 1 << 20

var (
	// ErrForbidden is returned when a caller acts on another user's account.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest is returned for requests whose body cannot be decoded.
	ErrBadRequest = errors.New("bad request")
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport exposes the identity service over HTTP with JSON bodies.
type HTTPTransport struct {
	svc    *Service
	router chi.Router
	log    logging.Logger
	cfg    HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Plan     string `json:"plan,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PlanRequest is the body of PUT /users/{email}/plan.
type PlanRequest struct {
	Plan string `json:"plan"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse = http_.ErrorResponse

// NewHTTPTransport creates a new HTTPTransport serving svc.
func NewHTTPTransport(svc *Service, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		svc: svc,
		log: logging.GetLogger("svc.identitysvc.http_transport"),
		cfg: cfg,
	}

	ht.router = ht.routes()

	return ht
}

func (ht *HTTPTransport) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", ht.HandleHealth)
	r.Get("/plans", ht.HandlePlans)
	r.Get("/users", ht.HandleListUsers)
	r.Get("/users/{email}", ht.HandleGetUser)

	r.Post("/auth/register", ht.HandleRegister)
	r.Post("/auth/login", ht.HandleLogin)
	r.Post("/auth/logout", ht.HandleLogout)
	r.Get("/auth/session", ht.HandleSession)
	r.Post("/auth/validate", ht.HandleValidate)

	r.Group(func(r chi.Router) {
		r.Use(http_.Authorize(&ServiceValidator{Service: ht.svc}, ht.log))

		r.Put("/users/{email}/plan", ht.HandleUpdatePlan)
		r.Put("/account/company", ht.HandleUpdateCompany)
	})

	if ht.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", ht.svc.Metrics.Handler())
	}

	return r
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// HandleHealth reports liveness.
func (ht *HTTPTransport) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ht.respond(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePlans returns the plan catalog.
func (ht *HTTPTransport) HandlePlans(w http.ResponseWriter, r *http.Request) {
	ht.respond(r.Context(), w, http.StatusOK, domain.Plans())
}

// HandleListUsers returns all users without credentials.
func (ht *HTTPTransport) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := ht.svc.ListUsers(r.Context())
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	views := make([]domain.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}

	ht.respond(r.Context(), w, http.StatusOK, views)
}

// HandleGetUser returns the user registered under the {email} path parameter.
func (ht *HTTPTransport) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	u, ok, err := ht.svc.FindByEmail(r.Context(), email)
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	} else if !ok {
		ht.fail(r.Context(), w, domain.ErrUserNotFound)

		return
	}

	ht.respond(r.Context(), w, http.StatusOK, u.View())
}

// HandleRegister creates an account. Responds 201 with the new user.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(w, r, &req); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	if req.Plan != "" {
		plan, ok := domain.LookupPlan(req.Plan)
		if !ok {
			ht.fail(r.Context(), w, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, req.Plan))

			return
		}

		req.Plan = plan.Name
	}

	u, err := ht.svc.Register(r.Context(), domain.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Plan:     req.Plan,
	})
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	ht.respond(r.Context(), w, http.StatusCreated, u.View())
}

// HandleLogin authenticates a user and returns a session token.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(w, r, &req); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	u, err := ht.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	token, err := ht.svc.IssueToken(r.Context(), u)
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	ht.respond(r.Context(), w, http.StatusOK, domain.LoginResponse{Token: token, User: u.View()})
}

// HandleLogout ends the current session.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := ht.svc.Logout(r.Context()); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSession reports the current session.
func (ht *HTTPTransport) HandleSession(w http.ResponseWriter, r *http.Request) {
	resp := domain.SessionResponse{IsAuthenticated: ht.svc.IsAuthenticated(r.Context())}

	if u, ok := ht.svc.CurrentUser(r.Context()); ok {
		resp.User = u
	}

	ht.respond(r.Context(), w, http.StatusOK, resp)
}

// HandleValidate checks the bearer token and returns the session user it belongs to.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	token, ok := http_.BearerToken(r)
	if !ok {
		ht.fail(r.Context(), w, domain.ErrNoAuthToken)

		return
	}

	u, err := ht.svc.ValidateToken(r.Context(), token)
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	ht.respond(r.Context(), w, http.StatusOK, u)
}

// HandleUpdatePlan sets the plan of the {email} account. Callers may only
// change their own plan.
func (ht *HTTPTransport) HandleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	email, err := emailParam(r)
	if err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	if caller, ok := context_.SessionUserFromContext(r.Context()); !ok || !domain.EmailsEqual(caller.Email, email) {
		ht.fail(r.Context(), w, ErrForbidden)

		return
	}

	var req PlanRequest
	if err := decode(w, r, &req); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	plan, ok := domain.LookupPlan(req.Plan)
	if !ok {
		ht.fail(r.Context(), w, fmt.Errorf("%w: %q", domain.ErrUnknownPlan, req.Plan))

		return
	}

	if err := ht.svc.UpdateUserPlan(r.Context(), email, plan.Name); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateCompany stores the company profile of the logged-in user.
func (ht *HTTPTransport) HandleUpdateCompany(w http.ResponseWriter, r *http.Request) {
	var req domain.CompanyProfile
	if err := decode(w, r, &req); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	if err := ht.svc.UpdateCompany(r.Context(), req); err != nil {
		ht.fail(r.Context(), w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (ht *HTTPTransport) respond(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		ht.log.ErrorContext(ctx, "encode response failed", "error", err)
	}
}

func (ht *HTTPTransport) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		ht.log.ErrorContext(ctx, "request failed", "error", err)

		message = http.StatusText(status)
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="teamify"`)
	}

	ht.respond(ctx, w, status, ErrorResponse{Error: message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidAuthToken),
		errors.Is(err, domain.ErrNoAuthToken),
		errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrCompanyNameRequired),
		errors.Is(err, domain.ErrCompanySizeRequired),
		errors.Is(err, domain.ErrUnknownPlan):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.Join(ErrBadRequest, fmt.Errorf("decode body: %w", err))
	}

	return nil
}

func emailParam(r *http.Request) (string, error) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		return "", errors.Join(ErrBadRequest, fmt.Errorf("unescape email: %w", err))
	}

	return email, nil
}

// ServiceValidator implements http_.TokenValidator on a local Service.
type ServiceValidator struct {
	Service *Service
}

var _ http_.TokenValidator = (*ServiceValidator)(nil)

// Validate implements http_.TokenValidator.Validate.
func (v *ServiceValidator) Validate(ctx context.Context, token string) (*domain.SessionUser, bool, error) {
	u, err := v.Service.ValidateToken(ctx, token)
	if errors.Is(err, domain.ErrInvalidAuthToken) || errors.Is(err, domain.ErrNoAuthToken) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	return u, true, nil
}
