package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned for malformed, unsupported or out-of-bounds hash strings.
var ErrInvalidHash = errors.New("invalid password hash")

const (
	algorithm = "argon2id"
	saltSize  = 16
	minKeyLen = 16
	maxKeyLen = 128

	// Cost limits for configured hashers and for stored hashes alike, so
	// hashes written under any valid configuration stay verifiable.
	maxMemoryKiB   = 1 << 20
	maxIterations  = 20
	maxParallelism = 16
)

// HasherConfig holds the Argon2id cost parameters.
type HasherConfig struct {
	// MemoryKiB is the memory cost in KiB
	MemoryKiB int `env:"MEMORY_KIB" default:"65536"`
	// Iterations is the time cost
	Iterations int `env:"ITERATIONS" default:"3"`
	// Parallelism is the number of lanes
	Parallelism int `env:"PARALLELISM" default:"2"`
	// KeyLength is the derived key size in bytes
	KeyLength int `env:"KEY_LENGTH" default:"32"`
}

// Hasher hashes and verifies passwords with Argon2id.
type Hasher struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// NewHasher creates a Hasher, clamping parameters to sane bounds.
func NewHasher(cfg HasherConfig) *Hasher {
	return &Hasher{
		memory:  uint32(clamp(cfg.MemoryKiB, 8, maxMemoryKiB)),    //nolint:gosec
		time:    uint32(clamp(cfg.Iterations, 1, maxIterations)),  //nolint:gosec
		threads: uint8(clamp(cfg.Parallelism, 1, maxParallelism)), //nolint:gosec
		keyLen:  uint32(clamp(cfg.KeyLength, minKeyLen, 64)),      //nolint:gosec
	}
}

// Hash returns a PHC-style encoded hash:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<key_b64>
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, h.keyLen)

	b64 := base64.RawStdEncoding

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm,
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash.
// The cost parameters are taken from the hash, not from the hasher, so a
// changed configuration keeps older hashes valid.
// Returns ErrInvalidHash if the hash cannot be decoded or exceeds the cost limits.
func (h *Hasher) Verify(encoded, password string) (bool, error) {
	p, salt, expected, err := decode(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(expected))) //nolint:gosec

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// EqualPlaintext compares two plaintext credentials in constant time.
func EqualPlaintext(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

type params struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decode(encoded string) (params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return params{}, nil, nil, ErrInvalidHash
	}

	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return params{}, nil, nil, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return params{}, nil, nil, errors.Join(ErrInvalidHash, err)
	}

	if mem == 0 || iter == 0 || par == 0 || mem > maxMemoryKiB || iter > maxIterations || par > maxParallelism {
		return params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding

	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return params{}, nil, nil, ErrInvalidHash
	}

	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < minKeyLen || len(key) > maxKeyLen {
		return params{}, nil, nil, ErrInvalidHash
	}

	return params{memory: mem, time: iter, threads: uint8(par)}, salt, key, nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
