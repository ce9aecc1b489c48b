package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkrupp/teamify/internal/domain"
	"github.com/mkrupp/teamify/internal/infra/logging"
	"github.com/mkrupp/teamify/internal/repo/kv"
)

// KVRepositoryConfig holds configuration for the key/value user repository.
type KVRepositoryConfig struct {
	// KeyPrefix is prepended to the "users" and "auth" keys
	KeyPrefix string `env:"KEY_PREFIX" default:"teamify_"`
}

// KVRepository implements Repository as two JSON documents in a kv.Store:
// "<prefix>users" holds the user array and "<prefix>auth" the session marker.
type KVRepository struct {
	store      kv.Store
	usersKey   string
	sessionKey string
	log        logging.Logger
}

var _ Repository = (*KVRepository)(nil)

// KVRepositoryFactory creates a factory function that opens a store with
// storeFactory and wraps it in a KVRepository.
func KVRepositoryFactory(cfg KVRepositoryConfig, storeFactory kv.StoreFactory) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		store, err := storeFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}

		return NewKVRepository(store, cfg), nil
	}
}

// NewKVRepository creates a KVRepository on top of store. The repository
// takes ownership of the store and closes it in Close.
func NewKVRepository(store kv.Store, cfg KVRepositoryConfig) *KVRepository {
	repo := &KVRepository{
		store:      store,
		usersKey:   cfg.KeyPrefix + "users",
		sessionKey: cfg.KeyPrefix + "auth",
	}

	repo.log = logging.GetLogger("repo.user.kv_user_repository").With(
		logging.Group("keys", "users", repo.usersKey, "session", repo.sessionKey),
	)

	return repo
}

// UsersExist implements Repository.UsersExist.
func (r *KVRepository) UsersExist(ctx context.Context) (bool, error) {
	_, found, err := r.store.Get(ctx, r.usersKey)
	if err != nil {
		return false, fmt.Errorf("get users: %w", err)
	}

	return found, nil
}

// LoadUsers implements Repository.LoadUsers.
func (r *KVRepository) LoadUsers(ctx context.Context) ([]*domain.User, error) {
	data, found, err := r.store.Get(ctx, r.usersKey)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	if !found {
		return []*domain.User{}, nil
	}

	var users []*domain.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", errors.Join(ErrCorruptData, err))
	}

	// A stored "null" or null elements decode without error but are not users.
	result := make([]*domain.User, 0, len(users))

	for _, user := range users {
		if user != nil {
			result = append(result, user)
		}
	}

	return result, nil
}

// SaveUsers implements Repository.SaveUsers.
func (r *KVRepository) SaveUsers(ctx context.Context, users []*domain.User) error {
	if users == nil {
		users = []*domain.User{}
	}

	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}

	if err := r.store.Set(ctx, r.usersKey, data); err != nil {
		return fmt.Errorf("set users: %w", err)
	}

	r.log.DebugContext(ctx, "users saved", "count", len(users))

	return nil
}

// LoadSession implements Repository.LoadSession.
func (r *KVRepository) LoadSession(ctx context.Context) (*domain.Session, bool, error) {
	data, found, err := r.store.Get(ctx, r.sessionKey)
	if err != nil {
		return nil, false, fmt.Errorf("get session: %w", err)
	}

	if !found {
		return nil, false, nil
	}

	var session *domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", errors.Join(ErrCorruptData, err))
	}

	if session == nil {
		return nil, false, fmt.Errorf("decode session: %w", ErrCorruptData)
	}

	return session, true, nil
}

// SaveSession implements Repository.SaveSession.
func (r *KVRepository) SaveSession(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.store.Set(ctx, r.sessionKey, data); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	r.log.DebugContext(ctx, "session saved", "user", session.User.ID)

	return nil
}

// DeleteSession implements Repository.DeleteSession.
func (r *KVRepository) DeleteSession(ctx context.Context) error {
	if err := r.store.Delete(ctx, r.sessionKey); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	r.log.DebugContext(ctx, "session deleted")

	return nil
}

// Close implements Repository.Close by closing the underlying store.
func (r *KVRepository) Close() error {
	if err := r.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	return nil
}
