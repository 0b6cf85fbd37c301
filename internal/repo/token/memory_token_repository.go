package token

import (
	"context"
	"sync"
	"time"

	"github.com/mkrupp/homecase-console/internal/domain"
)

type memoryKey struct {
	name, domain, path string
}

// MemoryTokenRepository keeps tokens for the lifetime of the process.
type MemoryTokenRepository struct {
	entries map[memoryKey]domain.StoredToken
	now     func() time.Time
	m       sync.Mutex
}

var _ Repository = (*MemoryTokenRepository)(nil)

// MemoryTokenRepositoryFactory creates a factory function that returns a new MemoryTokenRepository.
func MemoryTokenRepositoryFactory() RepositoryFactory {
	return func(context.Context) (Repository, error) {
		return NewMemoryTokenRepository(time.Now), nil
	}
}

// NewMemoryTokenRepository creates an empty repository using now as its clock.
func NewMemoryTokenRepository(now func() time.Time) *MemoryTokenRepository {
	if now == nil {
		now = time.Now
	}

	return &MemoryTokenRepository{
		entries: make(map[memoryKey]domain.StoredToken),
		now:     now,
	}
}

func (r *MemoryTokenRepository) Get(_ context.Context, name string, scope domain.TokenScope) (*domain.StoredToken, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()

	key := memoryKey{name, scope.Domain, normalizePath(scope.Path)}

	entry, ok := r.entries[key]
	if !ok {
		return nil, false, nil
	}

	if entry.Expired(r.now()) {
		delete(r.entries, key)

		return nil, false, nil
	}

	return &entry, true, nil
}

func (r *MemoryTokenRepository) Set(_ context.Context, name string, value string, scope domain.TokenScope) error {
	r.m.Lock()
	defer r.m.Unlock()

	path := normalizePath(scope.Path)

	r.entries[memoryKey{name, scope.Domain, path}] = domain.StoredToken{
		Name:      name,
		Value:     value,
		Domain:    scope.Domain,
		Path:      path,
		ExpiresAt: expiresAt(r.now(), scope),
	}

	return nil
}

func (r *MemoryTokenRepository) Remove(_ context.Context, name string, scope domain.TokenScope) error {
	r.m.Lock()
	defer r.m.Unlock()

	delete(r.entries, memoryKey{name, scope.Domain, normalizePath(scope.Path)})

	return nil
}

func (r *MemoryTokenRepository) Close() error {
	return nil
}
