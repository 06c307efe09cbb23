package aggregator

import "sync"

// ProviderState tracks the sticky rate-limited flags, one per
// provider. Flags only go false -> true and are never cleared within
// the owning aggregator's lifetime; a false positive costs one extra
// skip, not correctness. Constructor-injected so tests can run
// independent aggregators with isolated failover state.
type ProviderState struct {
	mu      sync.RWMutex
	limited map[string]bool
}

func NewProviderState() *ProviderState {
	return &ProviderState{limited: make(map[string]bool)}
}

// MarkRateLimited demotes a provider for the rest of the process.
func (s *ProviderState) MarkRateLimited(provider string) {
	s.mu.Lock()
	s.limited[provider] = true
	s.mu.Unlock()
}

// IsRateLimited reports whether the provider has been demoted.
func (s *ProviderState) IsRateLimited(provider string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limited[provider]
}
