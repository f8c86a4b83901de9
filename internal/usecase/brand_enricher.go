package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// BrandEnricher fills in missing or provisional brands on store B products by
// asking the inference capability in chunks, passing along store A's brand
// vocabulary so inferred spellings line up with the partitioner's equi-join.
type BrandEnricher struct {
	inferrer      domain.BrandInferrer
	chunkSize     int
	maxConcurrent int
	logger        *zap.Logger
}

// NewBrandEnricher creates an enricher. chunkSize bounds how many products go
// into one inference request; the default keeps responses well under the
// model's output token ceiling.
func NewBrandEnricher(inferrer domain.BrandInferrer, chunkSize, maxConcurrent int, logger *zap.Logger) *BrandEnricher {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrandEnricher{
		inferrer:      inferrer,
		chunkSize:     chunkSize,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// EnrichmentResult carries the enriched products plus this stage's
// statistics.
type EnrichmentResult struct {
	Products     []domain.Product
	Inferred     int
	Chunks       int
	ChunksFailed int
}

// Enrich overwrites product brands with inferred ones wherever inference
// succeeded. Failed chunks leave their products' provisional brands in place;
// inference failures degrade accuracy, never the product set.
func (e *BrandEnricher) Enrich(ctx context.Context, products []domain.Product, knownBrands []string) EnrichmentResult {
	chunks := chunkProducts(products, e.chunkSize)

	e.logger.Info("inferring brands",
		zap.Int("products", len(products)),
		zap.Int("chunks", len(chunks)),
	)

	type chunkResult struct {
		brands map[string]string
		failed bool
	}

	results := runTasks(ctx, len(chunks), e.maxConcurrent, func(ctx context.Context, idx int) chunkResult {
		brands, err := e.inferrer.InferBrands(ctx, chunks[idx], knownBrands)
		if err != nil {
			e.logger.Warn("brand inference chunk failed",
				zap.Int("chunk", idx),
				zap.Error(err),
			)
			return chunkResult{failed: true}
		}
		return chunkResult{brands: brands}
	})

	inferred := make(map[string]string)
	result := EnrichmentResult{Chunks: len(chunks)}
	for _, r := range results {
		if r.failed {
			result.ChunksFailed++
			continue
		}
		for id, brand := range r.brands {
			inferred[id] = brand
		}
	}

	result.Products = make([]domain.Product, len(products))
	for i, p := range products {
		if brand, ok := inferred[p.Identifier()]; ok && brand != "" {
			p.Brand = brand
			result.Inferred++
		}
		result.Products[i] = p
	}

	e.logger.Info("brand inference complete",
		zap.Int("inferred", result.Inferred),
		zap.Int("chunks_failed", result.ChunksFailed),
	)

	return result
}

// chunkProducts splits products into slices of at most size elements.
func chunkProducts(products []domain.Product, size int) [][]domain.Product {
	var chunks [][]domain.Product
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		chunks = append(chunks, products[start:end])
	}
	return chunks
}
