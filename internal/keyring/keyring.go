package keyring

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"gateio/pkg/core"
)

// DefaultPrefix is the environment variable prefix read by FromEnv.
const DefaultPrefix = "GATE"

var ErrNoKeys = errors.New("no api keys found")

// KeyRing holds one or more API key pairs and picks the one in use.
type KeyRing struct {
	mu       sync.RWMutex
	keys     []*APIKey
	current  int
	strategy RotationStrategy
	logger   zerolog.Logger
}

type APIKey struct {
	ID         string
	Key        string
	Secret     string
	Disabled   bool
	LastUsed   time.Time
	ErrorCount int
}

// Credentials returns the key pair in the form the clients take.
func (k *APIKey) Credentials() *core.Credentials {
	return &core.Credentials{APIKey: k.Key, SecretKey: k.Secret}
}

func (k *APIKey) String() string {
	return fmt.Sprintf("APIKey{ID:%s, Key:%s}", k.ID, Mask(k.Key))
}

type RotationStrategy int

const (
	// RotationNone keeps the current key until it is disabled.
	RotationNone RotationStrategy = iota
	// RotationOnAuthError moves on when the API rejects the key.
	RotationOnAuthError
	// RotationOnRateLimit also moves on when the key is throttled.
	RotationOnRateLimit
)

func NewKeyRing(keys []*APIKey, strategy RotationStrategy) *KeyRing {
	keysCopy := make([]*APIKey, 0, len(keys))
	for _, k := range keys {
		keysCopy = append(keysCopy, &APIKey{
			ID:       k.ID,
			Key:      k.Key,
			Secret:   k.Secret,
			Disabled: k.Disabled,
		})
	}

	return &KeyRing{
		keys:     keysCopy,
		strategy: strategy,
		logger:   zerolog.Nop(),
	}
}

// FromEnv builds a key ring from PREFIX_API_KEY/PREFIX_API_SECRET and the
// numbered pairs PREFIX_API_KEY_1/PREFIX_API_SECRET_1, PREFIX_API_KEY_2, ...
// Files are loaded with godotenv first; variables already set win. Missing
// files are skipped.
func FromEnv(prefix string, files ...string) (*KeyRing, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var keys []*APIKey
	add := func(id, keyVar, secretVar string) error {
		key, secret := os.Getenv(keyVar), os.Getenv(secretVar)
		if key == "" && secret == "" {
			return nil
		}
		if key == "" || secret == "" {
			return fmt.Errorf("%s and %s must be set together", keyVar, secretVar)
		}
		keys = append(keys, &APIKey{ID: id, Key: key, Secret: secret})
		return nil
	}

	if err := add("default", prefix+"_API_KEY", prefix+"_API_SECRET"); err != nil {
		return nil, err
	}
	for i := 1; ; i++ {
		n := strconv.Itoa(i)
		keyVar, secretVar := prefix+"_API_KEY_"+n, prefix+"_API_SECRET_"+n
		if os.Getenv(keyVar) == "" && os.Getenv(secretVar) == "" {
			break
		}
		if err := add(n, keyVar, secretVar); err != nil {
			return nil, err
		}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: set %s_API_KEY and %s_API_SECRET", ErrNoKeys, prefix, prefix)
	}
	return NewKeyRing(keys, RotationOnAuthError), nil
}

func (k *KeyRing) SetLogger(logger zerolog.Logger) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.logger = logger
}

// Len returns the number of keys, including disabled ones.
func (k *KeyRing) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Current returns the first enabled key starting from the current position,
// or nil when every key is disabled.
func (k *KeyRing) Current() *APIKey {
	k.mu.RLock()
	defer k.mu.RUnlock()

	for i := 0; i < len(k.keys); i++ {
		idx := (k.current + i) % len(k.keys)
		if !k.keys[idx].Disabled {
			key := *k.keys[idx]
			return &key
		}
	}
	return nil
}

// Credentials returns the current key pair, or nil.
func (k *KeyRing) Credentials() *core.Credentials {
	key := k.Current()
	if key == nil {
		return nil
	}
	return key.Credentials()
}

func (k *KeyRing) Rotate() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.rotate()
}

func (k *KeyRing) rotate() {
	if len(k.keys) == 0 {
		return
	}

	start := k.current
	for {
		k.current = (k.current + 1) % len(k.keys)
		if !k.keys[k.current].Disabled || k.current == start {
			return
		}
	}
}

// OnError counts err against the current key and rotates when the strategy
// asks for it. It reports whether the key changed.
func (k *KeyRing) OnError(err error) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.keys) == 0 || err == nil {
		return false
	}
	key := k.keys[k.current]
	key.ErrorCount++

	rotate := false
	switch k.strategy {
	case RotationOnAuthError:
		rotate = core.IsAuthenticationError(err)
	case RotationOnRateLimit:
		rotate = core.IsAuthenticationError(err) || core.IsRateLimitError(err)
	}
	if !rotate {
		return false
	}

	prev := k.current
	k.rotate()
	if k.current == prev {
		return false
	}
	k.logger.Warn().
		Str("from", key.ID).
		Str("to", k.keys[k.current].ID).
		Err(err).
		Msg("rotating api key")
	return true
}

func (k *KeyRing) MarkUsed() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.keys) == 0 {
		return
	}
	k.keys[k.current].LastUsed = time.Now()
}

func (k *KeyRing) Disable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = true
			return
		}
	}
}

func (k *KeyRing) Enable(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, key := range k.keys {
		if key.ID == id {
			key.Disabled = false
			key.ErrorCount = 0
			return
		}
	}
}

// Mask hides all but the first and last four characters of a key.
func Mask(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
