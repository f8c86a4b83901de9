// Package extract normalizes the two retailers' raw catalog dumps into the
// shared product schema. Store A ships structured JSON; store B ships
// rendered HTML fragments that have to be scraped.
package extract

import (
	"go.uber.org/zap"
)

// Summary reports how much of a raw dump survived extraction, per field.
// Field population drives matching quality, so it is logged at the end of
// every extraction run.
type Summary struct {
	ItemsProcessed    int
	ProductsExtracted int
	FieldCounts       map[string]int
}

func newSummary(fields ...string) Summary {
	counts := make(map[string]int, len(fields))
	for _, f := range fields {
		counts[f] = 0
	}
	return Summary{FieldCounts: counts}
}

func (s Summary) log(logger *zap.Logger, source string) {
	fields := []zap.Field{
		zap.String("source", source),
		zap.Int("items_processed", s.ItemsProcessed),
		zap.Int("products_extracted", s.ProductsExtracted),
	}
	for name, count := range s.FieldCounts {
		fields = append(fields, zap.Int("field_"+name, count))
	}
	logger.Info("extraction summary", fields...)
}
