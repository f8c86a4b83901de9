package usecase

import (
	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// Partitioner groups products from both catalogs by normalized brand and
// keeps only brands present in both. This is the candidate-reduction step
// that makes the quadratic matching problem tractable: the matcher only ever
// compares products that already share a brand.
type Partitioner struct {
	normalizer *BrandNormalizer
	logger     *zap.Logger
}

// NewPartitioner creates a partitioner using the given brand normalizer.
func NewPartitioner(normalizer *BrandNormalizer, logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Partitioner{normalizer: normalizer, logger: logger}
}

// PartitionResult carries the partitions plus this stage's contribution to
// the run statistics.
type PartitionResult struct {
	Partitions           []domain.BrandPartition
	MatchingBrands       int
	MatchedBrandProducts int
}

// Partition builds one BrandPartition per brand that has at least one product
// in each catalog. Product order within a partition follows input order, and
// partitions are ordered by the brand's first appearance in store A, so the
// result is deterministic for a given pair of inputs.
func (p *Partitioner) Partition(storeA, storeB []domain.Product) PartitionResult {
	byBrand := make(map[string]*domain.BrandPartition)
	var brandOrder []string

	for _, product := range storeA {
		brand := p.normalizer.Normalize(product.Brand)
		part, ok := byBrand[brand]
		if !ok {
			part = &domain.BrandPartition{Brand: brand}
			byBrand[brand] = part
			brandOrder = append(brandOrder, brand)
		}
		product.Brand = brand
		part.StoreAProducts = append(part.StoreAProducts, product)
	}

	for _, product := range storeB {
		brand := p.normalizer.Normalize(product.Brand)
		part, ok := byBrand[brand]
		if !ok {
			// Brand exists only in store B; it can never produce a match.
			continue
		}
		product.Brand = brand
		part.StoreBProducts = append(part.StoreBProducts, product)
	}

	result := PartitionResult{}
	for _, brand := range brandOrder {
		part := byBrand[brand]
		if len(part.StoreBProducts) == 0 {
			continue
		}
		result.Partitions = append(result.Partitions, *part)
		result.MatchingBrands++
		result.MatchedBrandProducts += len(part.StoreAProducts) + len(part.StoreBProducts)
	}

	p.logger.Info("partitioned catalogs by brand",
		zap.Int("matching_brands", result.MatchingBrands),
		zap.Int("matched_brand_products", result.MatchedBrandProducts),
	)

	return result
}
