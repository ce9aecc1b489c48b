package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/mkrupp/teamify/internal/infra/logging"
)

// FileSystemStoreConfig holds configuration for the filesystem-based store.
type FileSystemStoreConfig struct {
	// Basedir is the directory holding one file per key
	Basedir string `env:"BASEDIR" default:"var/storage/identity"`
	// Ext is the file extension appended to keys
	Ext string `env:"EXT" default:"json"`
}

// FileSystemStore implements Store with one file per key. Writes go to a
// temporary file that is renamed over the target, so readers never observe a
// partially written value. Every access takes a flock on "<key>.lock",
// exclusive for writes, which serializes writers across processes sharing the
// same directory.
type FileSystemStore struct {
	cfg FileSystemStoreConfig
	log logging.Logger
}

var _ Store = (*FileSystemStore)(nil)

// FileSystemStoreFactory creates a factory function that returns a new FileSystemStore.
func FileSystemStoreFactory(cfg FileSystemStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewFileSystemStore(ctx, cfg)
	}
}

// NewFileSystemStore creates a FileSystemStore rooted at cfg.Basedir, creating
// the directory if needed.
func NewFileSystemStore(ctx context.Context, cfg FileSystemStoreConfig) (_ *FileSystemStore, err error) {
	log := logging.GetLogger("repo.kv.filesystem_kv_store").With(
		logging.Group("store", "basedir", cfg.Basedir, "ext", cfg.Ext),
	)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(cfg.Basedir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	return &FileSystemStore{cfg: cfg, log: log}, nil
}

// GetFilename returns the full filesystem path for the given key.
func (s *FileSystemStore) GetFilename(key string) string {
	name := key
	if s.cfg.Ext != "" {
		name += "." + s.cfg.Ext
	}

	return filepath.Join(s.cfg.Basedir, name)
}

// Get implements Store.Get.
func (s *FileSystemStore) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	if err := s.check(ctx, key); err != nil {
		return nil, false, err
	}

	filename := s.GetFilename(key)

	defer func() {
		log := s.log.With(logging.Group("kv", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "get failed", "error", err)
		} else {
			log.DebugContext(ctx, "get", "found", found, "size", len(value))
		}
	}()

	release, err := s.flock(ctx, key, syscall.LOCK_SH)
	if err != nil {
		return nil, false, fmt.Errorf("flock: %w", err)
	}
	defer release()

	value, err = os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("read: %w", err)
	}

	return value, true, nil
}

// Set implements Store.Set.
func (s *FileSystemStore) Set(ctx context.Context, key string, value []byte) (err error) {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	filename := s.GetFilename(key)

	defer func() {
		log := s.log.With(logging.Group("kv", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "set failed", "error", err)
		} else {
			log.DebugContext(ctx, "set", "size", len(value))
		}
	}()

	release, err := s.flock(ctx, key, syscall.LOCK_EX)
	if err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer release()

	if err := writeFileAtomic(filename, value); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}

// Delete implements Store.Delete.
func (s *FileSystemStore) Delete(ctx context.Context, key string) (err error) {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	filename := s.GetFilename(key)

	defer func() {
		log := s.log.With(logging.Group("kv", "key", key, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "delete")
		}
	}()

	release, err := s.flock(ctx, key, syscall.LOCK_EX)
	if err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer release()

	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}

// Close implements Store.Close. The filesystem store holds no open handles.
func (s *FileSystemStore) Close() error {
	return nil
}

func (s *FileSystemStore) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}

	return ValidateKey(key)
}

// flock takes an advisory lock on the key's lock file. The lock file is left
// in place on release; removing it would let a concurrent locker hold a lock
// on an unlinked inode.
func (s *FileSystemStore) flock(ctx context.Context, key string, mode int) (release func(), err error) {
	lockfile := filepath.Join(s.cfg.Basedir, key+".lock")

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		s.log.DebugContext(ctx, "lock released", "lockfile", lockfile)
	}, nil
}

func writeFileAtomic(filename string, value []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
