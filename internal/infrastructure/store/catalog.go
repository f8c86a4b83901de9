package store

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// LoadCatalog reads a normalized catalog file (a JSON array of product
// records) and drops records that are not matchable. The skipped count is
// returned for run diagnostics; an entirely unusable catalog is a structural
// failure.
func LoadCatalog(path string, logger *zap.Logger) ([]domain.Product, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var raw []domain.Product
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("parsing catalog %s: %w", path, err)
	}

	products := make([]domain.Product, 0, len(raw))
	skipped := 0
	for _, p := range raw {
		if !p.Matchable() {
			skipped++
			continue
		}
		products = append(products, p)
	}

	if len(products) == 0 {
		return nil, skipped, fmt.Errorf("%w: %s", domain.ErrEmptyCatalog, path)
	}

	logger.Info("loaded catalog",
		zap.String("path", path),
		zap.Int("products", len(products)),
		zap.Int("skipped", skipped),
	)

	return products, skipped, nil
}
