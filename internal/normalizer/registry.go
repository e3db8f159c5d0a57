package normalizer

import (
	"sort"
	"sync"
)

// Factory builds a normalizer for a shop that has no dedicated
// implementation registered.
type Factory func(shop string) Normalizer

// Registry maps shop ids to their normalizers. Shops without a dedicated
// implementation get one built by the fallback factory on first use.
type Registry struct {
	mu       sync.RWMutex
	byShop   map[string]Normalizer
	fallback Factory
}

// NewRegistry creates a registry with the given fallback factory.
func NewRegistry(fallback Factory) *Registry {
	return &Registry{
		byShop:   make(map[string]Normalizer),
		fallback: fallback,
	}
}

// Register binds a shop id to a dedicated normalizer, replacing any previous
// binding.
func (r *Registry) Register(shop string, n Normalizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byShop[shop] = n
}

// For returns the shop's normalizer, building and caching one from the
// fallback factory on first use.
func (r *Registry) For(shop string) Normalizer {
	r.mu.RLock()
	n, ok := r.byShop[shop]
	r.mu.RUnlock()
	if ok {
		return n
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.byShop[shop]; ok {
		return n
	}
	n = r.fallback(shop)
	r.byShop[shop] = n
	return n
}

// Shops lists the shop ids with a bound normalizer, sorted.
func (r *Registry) Shops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	shops := make([]string, 0, len(r.byShop))
	for shop := range r.byShop {
		shops = append(shops, shop)
	}
	sort.Strings(shops)
	return shops
}
