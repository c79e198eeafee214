// Package crypto provides key derivation and the deterministic authenticated
// cipher used to encrypt identifying columns of the mapping store.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sys/unix"
)

const (
	// KeySize is the length of derived keys in bytes.
	KeySize = 32
	// SaltSize is the length of a store salt in bytes.
	SaltSize = 16
	// MinIterations is the lowest iteration count DeriveKey accepts.
	MinIterations = 1_000
	// DefaultIterations is the floor applied when a store is created.
	DefaultIterations = 100_000

	// InsecureMemoryEnv allows unlocked key memory when RLIMIT_MEMLOCK is too low.
	InsecureMemoryEnv = "PSEUDO_INSECURE_MEMORY"

	minMlockLimitKB = 512
)

var (
	// ErrWeakIterations is returned for iteration counts below MinIterations.
	ErrWeakIterations = errors.New("kdf iteration count too low")
	// ErrInsecureMemory is returned when key memory cannot be locked and the
	// insecure override is not set.
	ErrInsecureMemory = fmt.Errorf("mlock limit insufficient for key material (set %s=true to override)", InsecureMemoryEnv)
)

var (
	mlockOnce       sync.Once
	mlockSufficient bool
	mlockLimitKB    int64
)

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("reading random salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches passphrase into a KeySize key with PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase string, salt []byte, iterations int) ([]byte, error) {
	if iterations < MinIterations {
		return nil, fmt.Errorf("%w: %d < %d", ErrWeakIterations, iterations, MinIterations)
	}
	if len(salt) == 0 {
		return nil, errors.New("empty salt")
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New), nil
}

// EffectiveIterations applies the creation-time floor to a configured count.
func EffectiveIterations(configured int) int {
	return max(configured, DefaultIterations)
}

// keyHolder owns key bytes until Destroy.
type keyHolder interface {
	Bytes() []byte
	Destroy()
}

// lockedKey keeps the key in mlocked, guard-paged, read-only memory.
type lockedKey struct {
	buf *memguard.LockedBuffer
}

func (k *lockedKey) Bytes() []byte { return k.buf.Bytes() }
func (k *lockedKey) Destroy()      { k.buf.Destroy() }

// plainKey is the fallback used when memory cannot be locked.
type plainKey struct {
	b []byte
}

func (k *plainKey) Bytes() []byte { return k.b }

func (k *plainKey) Destroy() {
	memguard.WipeBytes(k.b)
	k.b = nil
}

// newKeyHolder moves key into protected memory and wipes the source slice.
func newKeyHolder(key []byte) (keyHolder, error) {
	mlockOnce.Do(func() {
		mlockSufficient, mlockLimitKB = checkMlockLimit()
	})
	if mlockSufficient {
		return &lockedKey{buf: memguard.NewBufferFromBytes(key)}, nil
	}

	if os.Getenv(InsecureMemoryEnv) != "true" {
		memguard.WipeBytes(key)
		return nil, ErrInsecureMemory
	}
	slog.Warn("key material held in unlocked memory",
		"mlock_limit_kb", mlockLimitKB,
		"required_kb", minMlockLimitKB,
	)
	b := make([]byte, len(key))
	copy(b, key)
	memguard.WipeBytes(key)
	return &plainKey{b: b}, nil
}

// checkMlockLimit reports whether RLIMIT_MEMLOCK allows locking key pages.
// The second value is the current limit in KiB, -1 when unlimited or unknown.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}

// Purge wipes every protected buffer in the process.
func Purge() {
	memguard.Purge()
}
