package normalizer

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNormalizer struct {
	shop string
}

func (s *stubNormalizer) Name() string    { return "stub" }
func (s *stubNormalizer) Version() string { return "stub/0.0.1" }

func (s *stubNormalizer) Normalize(ctx context.Context, records []RawRecord, cfg Config) iter.Seq[Result] {
	return func(yield func(Result) bool) {}
}

func TestRegistryDedicatedBinding(t *testing.T) {
	dedicated := &stubNormalizer{shop: "mega"}
	registry := NewRegistry(func(shop string) Normalizer {
		return &stubNormalizer{shop: shop}
	})

	registry.Register("mega", dedicated)

	assert.Same(t, dedicated, registry.For("mega"))
}

func TestRegistryFallbackBuildsAndCaches(t *testing.T) {
	built := 0
	registry := NewRegistry(func(shop string) Normalizer {
		built++
		return &stubNormalizer{shop: shop}
	})

	first := registry.For("profi")
	second := registry.For("profi")

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built, "fallback runs once per shop")

	stub, ok := first.(*stubNormalizer)
	require.True(t, ok)
	assert.Equal(t, "profi", stub.shop, "fallback receives the shop id")
}

func TestRegistryShops(t *testing.T) {
	registry := NewRegistry(func(shop string) Normalizer {
		return &stubNormalizer{shop: shop}
	})

	registry.Register("profi", &stubNormalizer{shop: "profi"})
	registry.Register("auchan", &stubNormalizer{shop: "auchan"})
	registry.For("mega")

	assert.Equal(t, []string{"auchan", "mega", "profi"}, registry.Shops())
}
