// Package credential defines the narrow capability through which context
// resolution materializes secrets: resolve(reference) -> secret. Store
// backends (key-chain, vaults) live outside the core; this package ships an
// in-memory store for tests and development and an environment-backed store
// for simple deployments. Resolution results are never cached here.
package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNotFound is returned when a reference resolves to nothing.
var ErrNotFound = errors.New("credential not found")

// Resolver resolves an opaque credential reference to its secret value.
type Resolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// InMemoryStore is a thread-safe in-memory credential store.
type InMemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{secrets: map[string]string{}}
}

// Set stores a secret under reference, replacing any previous value.
func (s *InMemoryStore) Set(reference, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[reference] = secret
}

// Resolve implements Resolver.
func (s *InMemoryStore) Resolve(_ context.Context, reference string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[reference]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, reference)
	}
	return secret, nil
}

// EnvStore resolves references against environment variables. A reference
// "api-key" with prefix "AGENTGRAPH_SECRET_" reads AGENTGRAPH_SECRET_API_KEY.
type EnvStore struct {
	prefix string
}

// NewEnvStore creates an environment-backed store with the given variable
// name prefix.
func NewEnvStore(prefix string) *EnvStore { return &EnvStore{prefix: prefix} }

// Resolve implements Resolver.
func (s *EnvStore) Resolve(_ context.Context, reference string) (string, error) {
	name := s.prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(reference))
	secret, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, reference)
	}
	return secret, nil
}
