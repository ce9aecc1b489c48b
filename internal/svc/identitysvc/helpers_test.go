package identitysvc_test

import (
	"context"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkrupp/teamify/internal/repo/kv"
	"github.com/mkrupp/teamify/internal/repo/user"
	"github.com/mkrupp/teamify/internal/svc/identitysvc"
	"github.com/mkrupp/teamify/internal/util/password"
)

var fastHasher = password.HasherConfig{MemoryKiB: 64, Iterations: 1, Parallelism: 1, KeyLength: 32}

//nolint:gochecknoglobals
var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	testKeyOnce.Do(func() {
		key, err := identitysvc.GeneratePrivateKey(identitysvc.DefaultKeySize)
		if err != nil {
			panic(err)
		}

		testKey = key
	})

	return testKey
}

type testEnv struct {
	svc     *identitysvc.Service
	store   *kv.MemoryStore
	repo    *user.KVRepository
	metrics *identitysvc.Metrics
}

func setupTestService(t *testing.T, opts ...identitysvc.Option) *testEnv {
	t.Helper()

	store := kv.NewMemoryStore()
	repo := user.NewKVRepository(store, user.KVRepositoryConfig{KeyPrefix: "teamify_"})
	metrics := identitysvc.NewMetrics()
	tokens := identitysvc.NewTokenIssuer(signingKey(t), identitysvc.AuthConfig{Issuer: "teamify"})

	opts = append([]identitysvc.Option{
		identitysvc.WithMetrics(metrics),
		identitysvc.WithTokenIssuer(tokens),
	}, opts...)

	svc := identitysvc.NewServiceWithRepository(repo, identitysvc.IdentityConfig{Password: fastHasher}, opts...)

	t.Cleanup(func() { _ = svc.Close() })

	return &testEnv{svc: svc, store: store, repo: repo, metrics: metrics}
}

func (env *testEnv) initialize(t *testing.T) {
	t.Helper()

	require.NoError(t, env.svc.Initialize(context.TODO()))
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
