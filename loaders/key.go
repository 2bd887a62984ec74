package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iden3/go-circuits/v2"
	"github.com/pkg/errors"
)

// ErrKeyNotFound is returned when key is not found
var ErrKeyNotFound = errors.New("key not found")

// VerificationKeyLoader load verification key bytes for specific circuit
type VerificationKeyLoader interface {
	Load(id circuits.CircuitID) ([]byte, error)
}

// FSKeyLoader read keys from filesystem, one <circuit id>.json per circuit.
type FSKeyLoader struct {
	Dir string
}

// Load reads the key of circuit id.
func (m FSKeyLoader) Load(id circuits.CircuitID) ([]byte, error) {
	key, err := os.ReadFile(filepath.Join(m.Dir, fmt.Sprintf("%v.json", id)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrKeyNotFound, "circuit %s in %s", id, m.Dir)
	}
	return key, err
}

// CachedKeyLoader memoizes keys of another loader. Keys never change for
// a circuit id so entries do not expire.
type CachedKeyLoader struct {
	keyLoader VerificationKeyLoader
	mu        sync.RWMutex
	cache     map[circuits.CircuitID][]byte
	useCache  bool
}

// Option defines functional option for configuring CachedKeyLoader
type Option func(*CachedKeyLoader)

// WithoutCache disables caching of loaded keys
func WithoutCache() Option {
	return func(c *CachedKeyLoader) {
		c.useCache = false
		c.cache = nil
	}
}

// NewCachedKeyLoader wraps loader with an in-memory cache.
func NewCachedKeyLoader(loader VerificationKeyLoader, opts ...Option) *CachedKeyLoader {
	c := &CachedKeyLoader{
		keyLoader: loader,
		cache:     make(map[circuits.CircuitID][]byte),
		useCache:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached key or loads and caches it.
func (c *CachedKeyLoader) Load(id circuits.CircuitID) ([]byte, error) {
	if c.useCache {
		c.mu.RLock()
		key, ok := c.cache[id]
		c.mu.RUnlock()
		if ok {
			return key, nil
		}
	}

	key, err := c.keyLoader.Load(id)
	if err != nil {
		return nil, err
	}

	if c.useCache {
		c.mu.Lock()
		c.cache[id] = key
		c.mu.Unlock()
	}
	return key, nil
}
