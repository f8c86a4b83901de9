package usecase

import (
	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// Assembler resolves matcher-returned identifier pairs against a partition's
// own candidate lists and builds full match records. The matcher is free to
// hallucinate identifiers; pairs that do not resolve on both sides are
// dropped without error, since that is expected noise rather than a failure.
type Assembler struct {
	logger *zap.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{logger: logger}
}

// AssemblyResult carries the assembled matches plus the count of pairs that
// referenced unknown identifiers.
type AssemblyResult struct {
	Matches []domain.MatchRecord
	Dropped int
}

// Assemble builds one MatchRecord per resolvable pair. Output order equals
// pair input order; ranking happens later. Percent difference is defined as
// zero when the store A price is zero.
func (a *Assembler) Assemble(partition domain.BrandPartition, pairs []domain.CandidatePair) AssemblyResult {
	storeAByID := make(map[string]domain.Product, len(partition.StoreAProducts))
	for _, p := range partition.StoreAProducts {
		storeAByID[p.Identifier()] = p
	}
	storeBByID := make(map[string]domain.Product, len(partition.StoreBProducts))
	for _, p := range partition.StoreBProducts {
		storeBByID[p.Identifier()] = p
	}

	result := AssemblyResult{}
	for _, pair := range pairs {
		productA, okA := storeAByID[pair.ProductAID]
		productB, okB := storeBByID[pair.ProductBID]
		if !okA || !okB {
			result.Dropped++
			continue
		}

		diff := productB.Price - productA.Price
		percent := 0.0
		if productA.Price != 0 {
			percent = diff / productA.Price * 100
		}

		result.Matches = append(result.Matches, domain.MatchRecord{
			ProductA:         productA,
			ProductB:         productB,
			PriceA:           productA.Price,
			PriceB:           productB.Price,
			PriceDiff:        domain.FormatPriceDiff(diff),
			PriceDiffPercent: domain.FormatPercentDiff(percent),
		})
	}

	if result.Dropped > 0 {
		a.logger.Debug("dropped unresolvable pairs",
			zap.String("brand", partition.Brand),
			zap.Int("dropped", result.Dropped),
		)
	}

	return result
}
