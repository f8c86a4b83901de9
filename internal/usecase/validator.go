package usecase

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// numericValueRegex captures the first integer or decimal in a size string,
// e.g. "20 oz" -> 20, "1.5 liter" -> 1.5.
var numericValueRegex = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)`)

// Validator applies deterministic post-match checks to the probabilistic
// matcher output. A record is retained unless explicitly disqualified:
// partial metadata never blocks a plausible match.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a validator.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// ValidationResult carries the surviving matches plus the removal count.
type ValidationResult struct {
	Kept    []domain.MatchRecord
	Removed int
}

// Filter removes matches whose size magnitudes or quantities conflict.
// Size comparison is magnitude-only; units are not compared, so "20 oz" vs
// "20 lb" passes. That mirrors the source behavior and is a documented gap.
func (v *Validator) Filter(matches []domain.MatchRecord) ValidationResult {
	result := ValidationResult{}
	for _, match := range matches {
		if sizeConflict(match.ProductA, match.ProductB) || quantityConflict(match.ProductA, match.ProductB) {
			result.Removed++
			continue
		}
		result.Kept = append(result.Kept, match)
	}

	v.logger.Info("filtered matches",
		zap.Int("removed", result.Removed),
		zap.Int("kept", len(result.Kept)),
	)

	return result
}

// sizeConflict reports whether both products carry an extractable numeric
// size magnitude and those magnitudes differ. Extraction failure on either
// side means no conflict is detectable, so the check is skipped.
func sizeConflict(a, b domain.Product) bool {
	sizeA, okA := extractNumericValue(a.Size)
	sizeB, okB := extractNumericValue(b.Size)
	return okA && okB && sizeA != sizeB
}

// quantityConflict reports whether both products carry parseable integer
// quantities that differ. Non-parseable quantities skip the check.
func quantityConflict(a, b domain.Product) bool {
	qtyA, errA := strconv.Atoi(a.Quantity)
	qtyB, errB := strconv.Atoi(b.Quantity)
	return errA == nil && errB == nil && qtyA != qtyB
}

// extractNumericValue pulls the first number out of a free-form size string.
func extractNumericValue(size string) (float64, bool) {
	if size == "" {
		return 0, false
	}
	m := numericValueRegex.FindString(size)
	if m == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
