package domain

import (
	"context"
	"time"
)

// Matcher defines the external capability that proposes identifier pairs for
// one brand's candidate lists. Implementations must treat their own output as
// untrusted: pairs may reference identifiers that do not exist.
type Matcher interface {
	MatchProducts(ctx context.Context, brand string, storeA, storeB []Product) ([]CandidatePair, error)
}

// BrandInferrer defines the external capability that guesses brands for
// products that lack one, given the competing store's brand vocabulary.
// The returned map is keyed by product identifier.
type BrandInferrer interface {
	InferBrands(ctx context.Context, products []Product, knownBrands []string) (map[string]string, error)
}

// CacheRepository defines the interface for caching matcher responses so
// repeated runs over the same snapshots skip paid external calls.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
