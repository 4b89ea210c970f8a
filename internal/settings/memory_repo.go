package settings

import (
	"context"
	"sync"
)

// MemoryRepo holds the settings row in process memory, seeded with Defaults.
type MemoryRepo struct {
	mu  sync.RWMutex
	set Settings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{set: *Defaults()}
}

func (r *MemoryRepo) Get(ctx context.Context) (*Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.set
	return &s, nil
}

func (r *MemoryRepo) Update(ctx context.Context, s *Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = *s
	r.set.ID = 1
	return nil
}
