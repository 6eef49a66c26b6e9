package tenant

import (
	"context"
	"sync"
)

// StaticStore serves configs from memory. Unknown tenants get DefaultConfig.
// The local chat CLI and tests use it instead of Redis.
type StaticStore struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

func NewStaticStore(configs ...*Config) *StaticStore {
	s := &StaticStore{configs: make(map[string]*Config, len(configs))}
	for _, cfg := range configs {
		s.configs[cfg.TenantID] = cfg
	}
	return s
}

func (s *StaticStore) Get(_ context.Context, tenantID string) (*Config, error) {
	s.mu.RLock()
	cfg, ok := s.configs[tenantID]
	s.mu.RUnlock()
	if !ok {
		return DefaultConfig(tenantID), nil
	}
	copied := *cfg
	return &copied, nil
}

func (s *StaticStore) Set(_ context.Context, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cfg
	s.configs[cfg.TenantID] = &copied
	return nil
}
