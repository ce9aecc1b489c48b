package identitysvc_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/teamify/internal/domain"
	"github.com/mkrupp/teamify/internal/repo/kv"
	"github.com/mkrupp/teamify/internal/repo/user"
	"github.com/mkrupp/teamify/internal/svc/identitysvc"
	"github.com/mkrupp/teamify/internal/util/ids"
	"github.com/mkrupp/teamify/internal/util/password"
)

var errBackend = errors.New("backend down")

// failingStore wraps a kv.Store and fails every call once fail is set.
type failingStore struct {
	kv.Store

	m    sync.Mutex
	fail bool
}

func (s *failingStore) setFail(fail bool) {
	s.m.Lock()
	defer s.m.Unlock()

	s.fail = fail
}

func (s *failingStore) failing() bool {
	s.m.Lock()
	defer s.m.Unlock()

	return s.fail
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failing() {
		return nil, false, errBackend
	}

	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failing() {
		return errBackend
	}

	return s.Store.Set(ctx, key, value)
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	if s.failing() {
		return errBackend
	}

	return s.Store.Delete(ctx, key)
}

// zeroEntropy makes generated ids depend on the clock only.
type zeroEntropy struct{}

func (zeroEntropy) Read(p []byte) (int, error) {
	clear(p)

	return len(p), nil
}

func register(t *testing.T, svc *identitysvc.Service, name, email string) *domain.User {
	t.Helper()

	u, err := svc.Register(context.TODO(), domain.RegisterParams{Name: name, Email: email, Password: "secret1"})
	require.NoError(t, err)

	return u
}

func TestService_Initialize(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	createdAt := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	env := setupTestService(t, identitysvc.WithClock(fixedClock(createdAt)))

	require.NoError(t, env.svc.Initialize(ctx))

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	demo := users[0]
	assert.Equal(t, "1", demo.ID)
	assert.Equal(t, "Demo User", demo.Name)
	assert.Equal(t, "demo@teamify.com", demo.Email)
	assert.Equal(t, "Teamify Demo", demo.CompanyName)
	assert.Equal(t, "https://teamify.com", demo.CompanyWebsite)
	assert.Equal(t, "11-50", demo.CompanySize)
	assert.Equal(t, "premium", demo.Plan)
	assert.Equal(t, createdAt, demo.CreatedAt)
	assert.Equal(t, domain.SchemaVersionCurrent, demo.SchemaVersion)
	assert.True(t, strings.HasPrefix(demo.PasswordHash, "$argon2id$"))
	assert.Empty(t, demo.LegacyPassword)

	// Idempotent: a second call leaves the collection untouched.
	register(t, env.svc, "Ann", "ann@example.com")
	require.NoError(t, env.svc.Initialize(ctx))

	users, err = env.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestService_InitializeKeepsEmptyCollection(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	require.NoError(t, env.repo.SaveUsers(ctx, nil))
	require.NoError(t, env.svc.Initialize(ctx))

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestService_ListUsersEmpty(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	users, err := env.svc.ListUsers(context.TODO())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestService_ListUsersCorruptData(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	require.NoError(t, env.store.Set(ctx, "teamify_users", []byte("not json")))

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	// Initialize sees an existing collection and does not overwrite it.
	require.NoError(t, env.svc.Initialize(ctx))

	raw, _, err := env.store.Get(ctx, "teamify_users")
	require.NoError(t, err)
	assert.Equal(t, "not json", string(raw))
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  domain.RegisterParams
		wantErr error
	}{
		{
			name:   "new user",
			params: domain.RegisterParams{Name: "Ann", Email: "ann@example.com", Password: "secret1", Plan: "standard"},
		},
		{
			name:    "duplicate email",
			params:  domain.RegisterParams{Name: "Demo", Email: "demo@teamify.com", Password: "secret1"},
			wantErr: domain.ErrDuplicateEmail,
		},
		{
			name:    "duplicate email other case",
			params:  domain.RegisterParams{Name: "Demo", Email: "  DEMO@Teamify.com ", Password: "secret1"},
			wantErr: domain.ErrDuplicateEmail,
		},
		{
			name:    "malformed email",
			params:  domain.RegisterParams{Name: "Bob", Email: "bob-at-example", Password: "secret1"},
			wantErr: domain.ErrInvalidEmail,
		},
		{
			name:    "display name in email",
			params:  domain.RegisterParams{Name: "Bob", Email: "Bob <bob@example.com>", Password: "secret1"},
			wantErr: domain.ErrInvalidEmail,
		},
		{
			name:    "short password",
			params:  domain.RegisterParams{Name: "Bob", Email: "bob@example.com", Password: "12345"},
			wantErr: domain.ErrPasswordTooShort,
		},
		{
			name:    "empty name",
			params:  domain.RegisterParams{Email: "bob@example.com", Password: "secret1"},
			wantErr: domain.ErrNameRequired,
		},
		{
			name:    "blank name",
			params:  domain.RegisterParams{Name: " \t ", Email: "bob@example.com", Password: "secret1"},
			wantErr: domain.ErrNameRequired,
		},
	}

	registeredAt := time.Date(2024, 4, 5, 19, 34, 38, 0, time.UTC)

	wantID := ulid.ULID{}
	require.NoError(t, wantID.SetTime(ulid.Timestamp(registeredAt)))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.TODO()
			env := setupTestService(t,
				identitysvc.WithClock(fixedClock(registeredAt)),
				identitysvc.WithIDGenerator(ids.NewGeneratorWith(zeroEntropy{}, fixedClock(registeredAt))),
			)
			env.initialize(t)

			before, err := env.svc.ListUsers(ctx)
			require.NoError(t, err)

			got, err := env.svc.Register(ctx, tt.params)

			after, listErr := env.svc.ListUsers(ctx)
			require.NoError(t, listErr)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				assert.Equal(t, before, after, "collection must be unchanged")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, wantID.String(), got.ID)
			assert.Equal(t, registeredAt, got.CreatedAt)
			assert.Equal(t, tt.params.Name, got.Name)
			assert.Equal(t, tt.params.Email, got.Email)
			assert.Equal(t, tt.params.Plan, got.Plan)
			assert.NotEqual(t, tt.params.Password, got.PasswordHash)

			require.Len(t, after, len(before)+1)
			assert.Equal(t, got, after[len(after)-1])
		})
	}
}

func TestService_RegisterTrimsName(t *testing.T) {
	t.Parallel()

	env := setupTestService(t)

	u := register(t, env.svc, "  Ann Example ", "ann@example.com")
	assert.Equal(t, "Ann Example", u.Name)
}

func TestService_RegisterDistinctEmails(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	ids := make(map[string]bool)

	for i, email := range emails {
		u := register(t, env.svc, fmt.Sprintf("User %d", i), email)
		ids[u.ID] = true
	}

	assert.Len(t, ids, len(emails), "ids must be unique")

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, len(emails))

	for i, email := range emails {
		assert.Equal(t, email, users[i].Email, "insertion order")

		found, ok, err := env.svc.FindByEmail(ctx, strings.ToUpper(email))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, users[i].ID, found.ID)
	}
}

func TestService_FindByEmail(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)
	env.initialize(t)

	u, ok, err := env.svc.FindByEmail(ctx, "Demo@Teamify.COM")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", u.ID)

	u, ok, err = env.svc.FindByEmail(ctx, "nobody@teamify.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, u)
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "demo credentials", email: "demo@teamify.com", password: "password123"},
		{name: "email case ignored", email: "DEMO@teamify.com", password: "password123"},
		{name: "wrong password", email: "demo@teamify.com", password: "password124", wantErr: domain.ErrInvalidCredentials},
		{name: "password case matters", email: "demo@teamify.com", password: "PASSWORD123", wantErr: domain.ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@teamify.com", password: "password123", wantErr: domain.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.TODO()
			env := setupTestService(t)
			env.initialize(t)

			u, err := env.svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				assert.False(t, env.svc.IsAuthenticated(ctx))

				_, ok := env.svc.CurrentUser(ctx)
				assert.False(t, ok)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "1", u.ID)
			assert.True(t, env.svc.IsAuthenticated(ctx))

			current, ok := env.svc.CurrentUser(ctx)
			require.True(t, ok)
			assert.Equal(t, domain.SessionUser{
				ID:          "1",
				Name:        "Demo User",
				Email:       "demo@teamify.com",
				CompanyName: "Teamify Demo",
				Plan:        "premium",
			}, *current)
		})
	}
}

func TestService_FailedLoginKeepsSession(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)
	env.initialize(t)

	register(t, env.svc, "Ann", "ann@example.com")

	_, err := env.svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, "demo@teamify.com", "wrong-password")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	current, ok := env.svc.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, "ann@example.com", current.Email)
}

func TestService_RegisterLoginCurrentUser(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	registered := register(t, env.svc, "Ann Example", "ann@example.com")

	_, err := env.svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)

	current, ok := env.svc.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, registered.ID, current.ID)
	assert.Equal(t, registered.Name, current.Name)
	assert.Equal(t, registered.Email, current.Email)

	raw, err := json.Marshal(current)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(string(raw)), "password")

	stored, _, err := env.store.Get(ctx, "teamify_auth")
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(string(stored)), "password")
	assert.NotContains(t, string(stored), "$argon2id$")
}

func TestService_Logout(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)
	env.initialize(t)

	require.NoError(t, env.svc.Logout(ctx), "logout without session")

	_, err := env.svc.Login(ctx, "demo@teamify.com", "password123")
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx))
	assert.False(t, env.svc.IsAuthenticated(ctx))

	u, ok := env.svc.CurrentUser(ctx)
	assert.False(t, ok)
	assert.Nil(t, u)

	require.NoError(t, env.svc.Logout(ctx), "logout twice")
}

func TestService_SessionMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		marker    string
		wantAuth  bool
		wantUser  bool
		wantEmail string
	}{
		{name: "absent"},
		{name: "garbage", marker: "{oops"},
		{name: "null", marker: "null"},
		{name: "flag false", marker: `{"isAuthenticated":false,"user":{"id":"1","email":"demo@teamify.com"}}`, wantUser: true, wantEmail: "demo@teamify.com"},
		{name: "flag true", marker: `{"isAuthenticated":true,"user":{"id":"1","email":"demo@teamify.com"}}`, wantAuth: true, wantUser: true, wantEmail: "demo@teamify.com"},
		{name: "no user", marker: `{"isAuthenticated":true}`, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.TODO()
			env := setupTestService(t)

			if tt.marker != "" {
				require.NoError(t, env.store.Set(ctx, "teamify_auth", []byte(tt.marker)))
			}

			assert.Equal(t, tt.wantAuth, env.svc.IsAuthenticated(ctx))

			u, ok := env.svc.CurrentUser(ctx)
			assert.Equal(t, tt.wantUser, ok)

			if tt.wantUser {
				assert.Equal(t, tt.wantEmail, u.Email)
			} else {
				assert.Nil(t, u)
			}
		})
	}
}

func TestService_UpdateUserPlan(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)
	env.initialize(t)

	register(t, env.svc, "Ann", "ann@example.com")

	_, err := env.svc.Login(ctx, "demo@teamify.com", "password123")
	require.NoError(t, err)

	// Another user's plan: collection changes, session does not.
	require.NoError(t, env.svc.UpdateUserPlan(ctx, "ANN@example.com", "enterprise"))

	ann, _, err := env.svc.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", ann.Plan)

	current, _ := env.svc.CurrentUser(ctx)
	assert.Equal(t, "premium", current.Plan)

	// The logged-in user's plan: both change.
	require.NoError(t, env.svc.UpdateUserPlan(ctx, "Demo@Teamify.com", "standard"))

	demo, _, err := env.svc.FindByEmail(ctx, "demo@teamify.com")
	require.NoError(t, err)
	assert.Equal(t, "standard", demo.Plan)

	current, _ = env.svc.CurrentUser(ctx)
	assert.Equal(t, "standard", current.Plan)
}

func TestService_UpdateUserPlanUnknownEmail(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)
	env.initialize(t)

	before, _, err := env.store.Get(ctx, "teamify_users")
	require.NoError(t, err)

	require.NoError(t, env.svc.UpdateUserPlan(ctx, "ghost@teamify.com", "standard"))

	after, _, err := env.store.Get(ctx, "teamify_users")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestService_UpdateCompany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		login   bool
		profile domain.CompanyProfile
		wantErr error
	}{
		{
			name:    "not logged in",
			profile: domain.CompanyProfile{Name: "Acme", Size: "1-10"},
			wantErr: domain.ErrNotAuthenticated,
		},
		{
			name:    "missing name",
			login:   true,
			profile: domain.CompanyProfile{Name: "  ", Size: "1-10"},
			wantErr: domain.ErrCompanyNameRequired,
		},
		{
			name:    "missing size",
			login:   true,
			profile: domain.CompanyProfile{Name: "Acme"},
			wantErr: domain.ErrCompanySizeRequired,
		},
		{
			name:    "complete profile",
			login:   true,
			profile: domain.CompanyProfile{Name: "Acme", Website: "https://acme.test", Size: "51-200"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.TODO()
			env := setupTestService(t)
			register(t, env.svc, "Ann", "ann@example.com")

			if tt.login {
				_, err := env.svc.Login(ctx, "ann@example.com", "secret1")
				require.NoError(t, err)
			}

			err := env.svc.UpdateCompany(ctx, tt.profile)

			ann, _, findErr := env.svc.FindByEmail(ctx, "ann@example.com")
			require.NoError(t, findErr)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, ann.CompanyName)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Acme", ann.CompanyName)
			assert.Equal(t, "https://acme.test", ann.CompanyWebsite)
			assert.Equal(t, "51-200", ann.CompanySize)

			current, ok := env.svc.CurrentUser(ctx)
			require.True(t, ok)
			assert.Equal(t, "Acme", current.CompanyName)
		})
	}
}

func TestService_LegacyRecordUpgrade(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	require.NoError(t, env.store.Set(ctx, "teamify_users", []byte(`[
		{"id":"1","name":"Demo User","email":"demo@teamify.com","password":"password123",
		 "companyName":"Teamify Demo","plan":"premium","createdAt":"2024-01-01T00:00:00.000Z"},
		{"id":"1712345678901","name":"Old","email":"old@example.com","password":"hunter22",
		 "createdAt":"2024-04-05T19:34:38.901Z"}
	]`)))

	_, err := env.svc.Login(ctx, "old@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	raw, _, err := env.store.Get(ctx, "teamify_users")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"password":"hunter22"`, "failed login must not upgrade")

	u, err := env.svc.Login(ctx, "old@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "1712345678901", u.ID)

	raw, _, err = env.store.Get(ctx, "teamify_users")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter22")
	assert.Contains(t, string(raw), `"password":"password123"`, "other legacy records untouched")

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.False(t, users[1].IsLegacy())
	assert.Equal(t, domain.SchemaVersionCurrent, users[1].SchemaVersion)
	assert.Equal(t, time.Date(2024, 4, 5, 19, 34, 38, 901000000, time.UTC), users[1].CreatedAt)

	require.NoError(t, env.svc.Logout(ctx))

	_, err = env.svc.Login(ctx, "old@example.com", "hunter22")
	require.NoError(t, err, "login against the upgraded hash")
}

func TestService_LoginAfterHasherChange(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	store := kv.NewMemoryStore()
	keys := user.KVRepositoryConfig{KeyPrefix: "teamify_"}

	costly := identitysvc.NewServiceWithRepository(
		user.NewKVRepository(store, keys),
		identitysvc.IdentityConfig{Password: password.HasherConfig{MemoryKiB: 1024, Iterations: 5, Parallelism: 4, KeyLength: 32}},
	)

	_, err := costly.Register(ctx, domain.RegisterParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	// A second service on the same store with a much cheaper configuration.
	cheap := identitysvc.NewServiceWithRepository(
		user.NewKVRepository(store, keys),
		identitysvc.IdentityConfig{Password: fastHasher},
	)

	u, err := cheap.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.True(t, cheap.IsAuthenticated(ctx))

	_, err = cheap.Login(ctx, "ann@example.com", "secret2")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestService_LoginUnreadableHash(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	require.NoError(t, env.store.Set(ctx, "teamify_users", []byte(`[
		{"id":"1","name":"Ann","email":"ann@example.com","passwordHash":"$argon2id$v=19$m=2097152,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
		 "createdAt":"2024-01-01T00:00:00Z","schemaVersion":2}
	]`)))

	_, err := env.svc.Login(ctx, "ann@example.com", "secret1")
	require.ErrorIs(t, err, password.ErrInvalidHash)
	require.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, env.svc.IsAuthenticated(ctx))

	expected := `
# HELP teamify_identity_operations_total Identity store operations by operation and result.
# TYPE teamify_identity_operations_total counter
teamify_identity_operations_total{operation="login",result="error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(
		env.metrics.Registry(), strings.NewReader(expected), "teamify_identity_operations_total"))
}

func TestService_BackendFailures(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	store := &failingStore{Store: kv.NewMemoryStore()}
	repo := user.NewKVRepository(store, user.KVRepositoryConfig{KeyPrefix: "teamify_"})
	svc := identitysvc.NewServiceWithRepository(repo, identitysvc.IdentityConfig{Password: fastHasher})

	t.Cleanup(func() { _ = svc.Close() })

	require.NoError(t, svc.Initialize(ctx))
	_, err := svc.Login(ctx, "demo@teamify.com", "password123")
	require.NoError(t, err)

	store.setFail(true)

	_, err = svc.ListUsers(ctx)
	require.ErrorIs(t, err, errBackend)

	_, _, err = svc.FindByEmail(ctx, "demo@teamify.com")
	require.ErrorIs(t, err, errBackend)

	_, err = svc.Register(ctx, domain.RegisterParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.ErrorIs(t, err, errBackend)

	_, err = svc.Login(ctx, "demo@teamify.com", "password123")
	require.ErrorIs(t, err, errBackend)

	require.ErrorIs(t, svc.Logout(ctx), errBackend)
	require.ErrorIs(t, svc.UpdateUserPlan(ctx, "demo@teamify.com", "standard"), errBackend)
	require.ErrorIs(t, svc.Initialize(ctx), errBackend)

	assert.False(t, svc.IsAuthenticated(ctx), "reads never error")

	_, ok := svc.CurrentUser(ctx)
	assert.False(t, ok)

	store.setFail(false)
	assert.True(t, svc.IsAuthenticated(ctx))
}

func TestService_ConcurrentRegistrations(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)

	const n = 20

	var wg sync.WaitGroup

	errs := make(chan error, n*2)

	for i := range n {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_, err := env.svc.Register(ctx, domain.RegisterParams{
				Name:     "User",
				Email:    fmt.Sprintf("user%d@example.com", i),
				Password: "secret1",
			})
			errs <- err
		}()

		// Same email from a second caller: exactly one of the pair may win.
		go func() {
			defer wg.Done()

			_, err := env.svc.Register(ctx, domain.RegisterParams{
				Name:     "Twin",
				Email:    fmt.Sprintf("USER%d@example.com", i),
				Password: "secret1",
			})
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	var ok, duplicates int

	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrDuplicateEmail):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, n, ok)
	assert.Equal(t, n, duplicates)

	users, err := env.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, n)
}

func TestService_Metrics(t *testing.T) {
	t.Parallel()

	ctx := context.TODO()
	env := setupTestService(t)
	env.initialize(t)

	register(t, env.svc, "Ann", "ann@example.com")

	_, err := env.svc.Register(ctx, domain.RegisterParams{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_, err = env.svc.Login(ctx, "demo@teamify.com", "nope")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	expected := `
# HELP teamify_identity_users Number of registered users as of the last list or registration.
# TYPE teamify_identity_users gauge
teamify_identity_users 2
`
	require.NoError(t, testutil.GatherAndCompare(env.metrics.Registry(), strings.NewReader(expected), "teamify_identity_users"))

	count, err := testutil.GatherAndCount(env.metrics.Registry(), "teamify_identity_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count, "initialize/ok, register/ok, register/rejected, login/rejected")
}
