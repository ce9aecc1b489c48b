package identitysvc

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mkrupp/teamify/internal/domain"
	"github.com/mkrupp/teamify/internal/infra/logging"
	"github.com/mkrupp/teamify/internal/repo/user"
	"github.com/mkrupp/teamify/internal/util/ids"
	"github.com/mkrupp/teamify/internal/util/password"
)

// Demo account written by Initialize into an empty store.
const (
	DemoUserID       = "1"
	DemoUserName     = "Demo User"
	DemoUserEmail    = "demo@teamify.com"
	DemoUserPassword = "password123"
)

// Operation names used for metrics.
const (
	OpInitialize     = "initialize"
	OpListUsers      = "list_users"
	OpFindByEmail    = "find_by_email"
	OpRegister       = "register"
	OpLogin          = "login"
	OpLogout         = "logout"
	OpUpdateUserPlan = "update_user_plan"
	OpUpdateCompany  = "update_company"
	OpValidateToken  = "validate_token"
)

// Service is the identity store: a collection of user records plus a single
// current session marker, both kept in a user.Repository.
//
// Every read-modify-write sequence runs under one mutex, so concurrent callers
// sharing a Service never lose updates.
type Service struct {
	Config   IdentityConfig
	UserRepo user.Repository
	Hasher   *password.Hasher
	IDs      *ids.Generator
	Tokens   *TokenIssuer
	Metrics  *Metrics
	Log      logging.Logger
	Now      func() time.Time

	m sync.Mutex
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithTokenIssuer enables IssueToken and ValidateToken.
func WithTokenIssuer(tokens *TokenIssuer) Option {
	return func(s *Service) { s.Tokens = tokens }
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.Metrics = m }
}

// WithClock replaces the time source used for creation timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.Now = now }
}

// WithIDGenerator replaces the user id generator.
func WithIDGenerator(g *ids.Generator) Option {
	return func(s *Service) { s.IDs = g }
}

// NewService creates a Service on a repository created by repoFactory.
func NewService(
	ctx context.Context,
	repoFactory user.RepositoryFactory,
	cfg IdentityConfig,
	opts ...Option,
) (*Service, error) {
	userRepo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return NewServiceWithRepository(userRepo, cfg, opts...), nil
}

// NewServiceWithRepository creates a Service on an open repository.
// The service takes ownership of the repository.
func NewServiceWithRepository(userRepo user.Repository, cfg IdentityConfig, opts ...Option) *Service {
	//nolint:exhaustruct
	s := &Service{
		Config:   cfg,
		UserRepo: userRepo,
		Hasher:   password.NewHasher(cfg.Password),
		Log:      logging.GetLogger("svc.identitysvc.identity_service"),
		Now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.IDs == nil {
		s.IDs = ids.NewGeneratorWith(rand.Reader, s.Now)
	}

	return s
}

// Initialize seeds the store with the demo account when no user collection
// exists yet. It is a no-op otherwise.
func (s *Service) Initialize(ctx context.Context) (err error) {
	defer func() {
		s.observe(OpInitialize, err)

		if err != nil {
			s.Log.ErrorContext(ctx, "initialize failed", "error", err)
		}
	}()

	s.m.Lock()
	defer s.m.Unlock()

	exists, err := s.UserRepo.UsersExist(ctx)
	if err != nil {
		return fmt.Errorf("users exist: %w", err)
	} else if exists {
		s.Log.DebugContext(ctx, "store already initialized")

		return nil
	}

	hash, err := s.Hasher.Hash(DemoUserPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	demo := &domain.User{
		ID:             DemoUserID,
		Name:           DemoUserName,
		Email:          DemoUserEmail,
		PasswordHash:   hash,
		CompanyName:    "Teamify Demo",
		CompanyWebsite: "https://teamify.com",
		CompanySize:    "11-50",
		Plan:           domain.PlanPremium,
		CreatedAt:      s.Now().UTC(),
		SchemaVersion:  domain.SchemaVersionCurrent,
	}

	if err := s.UserRepo.SaveUsers(ctx, []*domain.User{demo}); err != nil {
		return fmt.Errorf("save users: %w", err)
	}

	s.setUsers(1)
	s.Log.InfoContext(ctx, "store initialized with demo user", "email", demo.Email)

	return nil
}

// ListUsers returns every registered user in insertion order. A stored
// collection that cannot be decoded is reported as empty.
func (s *Service) ListUsers(ctx context.Context) (_ []*domain.User, err error) {
	defer func() { s.observe(OpListUsers, err) }()

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	s.setUsers(len(users))

	return users, nil
}

// FindByEmail returns the first user whose email matches, ignoring case.
// Returns the user and true if found, or nil and false if not.
func (s *Service) FindByEmail(ctx context.Context, email string) (_ *domain.User, _ bool, err error) {
	defer func() { s.observe(OpFindByEmail, err) }()

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, false, err
	}

	u := findByEmail(users, email)

	return u, u != nil, nil
}

// Register creates a new account. The email must be well formed and not yet
// registered, and the password at least domain.MinPasswordLength characters.
// On failure the stored collection is left unchanged.
func (s *Service) Register(ctx context.Context, params domain.RegisterParams) (_ *domain.User, err error) {
	email := strings.TrimSpace(params.Email)
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		s.observe(OpRegister, err)

		switch {
		case err == nil:
			log.DebugContext(ctx, "user registered")
		case isRejection(err):
			log.InfoContext(ctx, "register rejected", "error", err)
		default:
			log.ErrorContext(ctx, "register failed", "error", err)
		}
	}()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(params.Password) < domain.MinPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	if findByEmail(users, email) != nil {
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := s.Hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.IDs.New()
	if err != nil {
		return nil, fmt.Errorf("new id: %w", err)
	}

	newUser := &domain.User{
		ID:            id,
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Plan:          params.Plan,
		CreatedAt:     s.Now().UTC(),
		SchemaVersion: domain.SchemaVersionCurrent,
	}

	users = append(users, newUser)

	if err := s.UserRepo.SaveUsers(ctx, users); err != nil {
		return nil, fmt.Errorf("save users: %w", err)
	}

	s.setUsers(len(users))

	return newUser, nil
}

// Login verifies the credentials of the account registered under email and
// makes it the current session. Legacy records holding a plaintext password
// are upgraded to a hashed credential on success.
func (s *Service) Login(ctx context.Context, email, pw string) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		s.observe(OpLogin, err)

		switch {
		case err == nil:
			log.DebugContext(ctx, "login successful")
		case isRejection(err):
			log.WarnContext(ctx, "login rejected", "error", err)
		default:
			log.ErrorContext(ctx, "login failed", "error", err)
		}
	}()

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return nil, err
	}

	u := findByEmail(users, email)
	if u == nil {
		return nil, domain.ErrUserNotFound
	}

	if u.IsLegacy() {
		if !password.EqualPlaintext(u.LegacyPassword, pw) {
			return nil, domain.ErrInvalidCredentials
		}

		if err := s.upgradeCredential(ctx, users, u, pw); err != nil {
			return nil, err
		}
	} else {
		ok, err := s.Hasher.Verify(u.PasswordHash, pw)
		if err != nil {
			return nil, fmt.Errorf("verify password: %w", err)
		} else if !ok {
			return nil, domain.ErrInvalidCredentials
		}
	}

	if err := s.UserRepo.SaveSession(ctx, domain.NewSession(u)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return u, nil
}

func (s *Service) upgradeCredential(ctx context.Context, users []*domain.User, u *domain.User, pw string) error {
	hash, err := s.Hasher.Hash(pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u.PasswordHash = hash
	u.LegacyPassword = ""
	u.SchemaVersion = domain.SchemaVersionCurrent

	if err := s.UserRepo.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("save upgraded users: %w", err)
	}

	s.Log.InfoContext(ctx, "legacy credential upgraded", "user", u.ID)

	return nil
}

// IsAuthenticated reports whether a session marker exists and is flagged as
// authenticated. Unreadable markers count as logged out.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	session, ok := s.loadSession(ctx)

	return ok && session.IsAuthenticated
}

// CurrentUser returns the session projection of the logged-in user.
// Returns the projection and true if a session exists, or nil and false if not.
func (s *Service) CurrentUser(ctx context.Context) (*domain.SessionUser, bool) {
	session, ok := s.loadSession(ctx)
	if !ok || session.User.ID == "" {
		return nil, false
	}

	return &session.User, true
}

// Logout ends the current session. Logging out without a session is not an error.
func (s *Service) Logout(ctx context.Context) (err error) {
	defer func() {
		s.observe(OpLogout, err)

		if err != nil {
			s.Log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "logged out")
		}
	}()

	s.m.Lock()
	defer s.m.Unlock()

	if err := s.UserRepo.DeleteSession(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// UpdateUserPlan sets the plan of the account registered under email and, if
// that account is the current session, the plan of the session projection.
// Unknown emails are ignored.
func (s *Service) UpdateUserPlan(ctx context.Context, email, plan string) (err error) {
	log := s.Log.With(logging.Group("user", "email", email), "plan", plan)

	defer func() {
		s.observe(OpUpdateUserPlan, err)

		if err != nil {
			log.ErrorContext(ctx, "update plan failed", "error", err)
		} else {
			log.DebugContext(ctx, "plan updated")
		}
	}()

	s.m.Lock()
	defer s.m.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}

	u := findByEmail(users, email)
	if u == nil {
		log.DebugContext(ctx, "no such user, plan unchanged")

		return nil
	}

	u.Plan = plan

	if err := s.UserRepo.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("save users: %w", err)
	}

	session, ok := s.loadSession(ctx)
	if !ok || !domain.EmailsEqual(session.User.Email, email) {
		return nil
	}

	session.User.Plan = plan

	if err := s.UserRepo.SaveSession(ctx, *session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// UpdateCompany stores the company profile of the logged-in user and updates
// the company name of the session projection.
func (s *Service) UpdateCompany(ctx context.Context, profile domain.CompanyProfile) (err error) {
	log := s.Log.With(logging.Group("company", "name", profile.Name, "size", profile.Size))

	defer func() {
		s.observe(OpUpdateCompany, err)

		switch {
		case err == nil:
			log.DebugContext(ctx, "company updated")
		case isRejection(err):
			log.InfoContext(ctx, "update company rejected", "error", err)
		default:
			log.ErrorContext(ctx, "update company failed", "error", err)
		}
	}()

	profile.Name = strings.TrimSpace(profile.Name)
	profile.Website = strings.TrimSpace(profile.Website)
	profile.Size = strings.TrimSpace(profile.Size)

	s.m.Lock()
	defer s.m.Unlock()

	session, ok := s.loadSession(ctx)
	if !ok || !session.IsAuthenticated || session.User.ID == "" {
		return domain.ErrNotAuthenticated
	}

	if profile.Name == "" {
		return domain.ErrCompanyNameRequired
	} else if profile.Size == "" {
		return domain.ErrCompanySizeRequired
	}

	users, err := s.loadUsers(ctx)
	if err != nil {
		return err
	}

	u := findByID(users, session.User.ID)
	if u == nil {
		log.WarnContext(ctx, "session user no longer exists", "user", session.User.ID)

		return nil
	}

	u.CompanyName = profile.Name
	u.CompanyWebsite = profile.Website
	u.CompanySize = profile.Size

	if err := s.UserRepo.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("save users: %w", err)
	}

	session.User.CompanyName = profile.Name

	if err := s.UserRepo.SaveSession(ctx, *session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// IssueToken returns a signed session token for u.
func (s *Service) IssueToken(ctx context.Context, u *domain.User) (string, error) {
	if s.Tokens == nil {
		return "", ErrNoTokenIssuer
	}

	token, err := s.Tokens.Issue(u.Session())
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.Log.DebugContext(ctx, "token issued", "user", u.ID)

	return token, nil
}

// ValidateToken verifies token and checks that it belongs to the current
// session, so tokens stop validating once their session ends.
// Returns the current session projection.
func (s *Service) ValidateToken(ctx context.Context, token string) (_ *domain.SessionUser, err error) {
	defer func() {
		s.observe(OpValidateToken, err)

		if err != nil {
			s.Log.InfoContext(ctx, "validate token failed", "error", err)
		} else {
			s.Log.DebugContext(ctx, "token validated")
		}
	}()

	if s.Tokens == nil {
		return nil, ErrNoTokenIssuer
	}

	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}

	session, ok := s.loadSession(ctx)
	if !ok || !session.IsAuthenticated || session.User.ID != claims.Subject {
		return nil, fmt.Errorf("validate token: %w: session ended", domain.ErrInvalidAuthToken)
	}

	return &session.User, nil
}

// Close releases resources held by the service, such as database connections.
func (s *Service) Close() error {
	if err := s.UserRepo.Close(); err != nil {
		return fmt.Errorf("close user repo: %w", err)
	}

	return nil
}

// loadUsers reads the collection, treating undecodable data as empty.
func (s *Service) loadUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.UserRepo.LoadUsers(ctx)
	if errors.Is(err, user.ErrCorruptData) {
		s.Log.WarnContext(ctx, "stored users unreadable, treating as empty", "error", err)

		return []*domain.User{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	return users, nil
}

// loadSession reads the session marker. Missing, unreadable and failing
// reads all report no session.
func (s *Service) loadSession(ctx context.Context) (*domain.Session, bool) {
	session, found, err := s.UserRepo.LoadSession(ctx)
	if err != nil {
		s.Log.WarnContext(ctx, "session unreadable, treating as logged out", "error", err)

		return nil, false
	}

	return session, found
}

func (s *Service) observe(operation string, err error) {
	if s.Metrics != nil {
		s.Metrics.Observe(operation, err)
	}
}

func (s *Service) setUsers(n int) {
	if s.Metrics != nil {
		s.Metrics.SetUsers(n)
	}
}

func findByEmail(users []*domain.User, email string) *domain.User {
	for _, u := range users {
		if domain.EmailsEqual(u.Email, email) {
			return u
		}
	}

	return nil
}

func findByID(users []*domain.User, id string) *domain.User {
	for _, u := range users {
		if u.ID == id {
			return u
		}
	}

	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return domain.ErrInvalidEmail
	}

	return nil
}
