package secret

import (
	"fmt"
	"runtime"
	"sync"

	"blockdoc/internal/domain"
)

// Store keeps table source passwords out of document files. The
// implementation uses the macOS Keychain where available and falls back
// to process memory elsewhere.
type Store interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Default returns the platform store.
func Default() Store {
	if runtime.GOOS == "darwin" {
		return NewKeychainStore()
	}
	return NewMemoryStore()
}

// SourceKey identifies the credentials of a table source. The password is
// not part of the key.
func SourceKey(src domain.TableSource) string {
	return fmt.Sprintf("%s://%s@%s:%d/%s", src.Driver, src.Username, src.Host, src.Port, src.Database)
}

// MemoryStore holds secrets for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (m *MemoryStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.secrets[key], nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, key)
	return nil
}
