package usecase

import (
	"regexp"
	"strings"

	"github.com/cartmatch/reconciler/internal/domain"
)

// Package-level compiled regex pattern for performance
var multiSpaceRegex = regexp.MustCompile(`\s+`)

// BrandNormalizer aligns brand strings from both catalogs onto one canonical
// form before partitioning. Partitioning is an exact equi-join on the
// normalized key, so every normalization decision lives here and nowhere else.
//
// Near-duplicate brands (trailing punctuation variants and the like) are NOT
// unioned; that is a known under-matching gap left as-is.
type BrandNormalizer struct {
	aliases map[string]string
}

// NewBrandNormalizer creates a normalizer. The optional alias map resolves
// known spelling variants to a canonical brand (keys are compared after
// normalization).
func NewBrandNormalizer(aliases map[string]string) *BrandNormalizer {
	canonical := make(map[string]string, len(aliases))
	for from, to := range aliases {
		canonical[normalizeBrandKey(from)] = normalizeBrandKey(to)
	}
	return &BrandNormalizer{aliases: canonical}
}

// Normalize maps a raw brand string to its canonical partition key.
// Empty and sentinel values collapse to domain.UnknownBrand.
func (n *BrandNormalizer) Normalize(brand string) string {
	key := normalizeBrandKey(brand)
	if key == "" {
		return domain.UnknownBrand
	}
	if alias, ok := n.aliases[key]; ok {
		return alias
	}
	return key
}

// NormalizeAll returns a copy of products with normalized brand fields.
// The input slice is never mutated.
func (n *BrandNormalizer) NormalizeAll(products []domain.Product) []domain.Product {
	out := make([]domain.Product, len(products))
	for i, p := range products {
		p.Brand = n.Normalize(p.Brand)
		out[i] = p
	}
	return out
}

// normalizeBrandKey applies the base transformation: trim, strip wrapping
// quotes, collapse internal whitespace, uppercase.
func normalizeBrandKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `'"`)
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.ToUpper(strings.TrimSpace(s))
}
