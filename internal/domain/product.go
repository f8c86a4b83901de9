package domain

import (
	"fmt"
	"math"
)

// Product represents a normalized product record from either store catalog.
// Store A identifies products by product_id, store B by sku; both fields are
// kept so records round-trip through JSON exactly as the extractors wrote them.
type Product struct {
	ProductID    string  `json:"product_id,omitempty"`
	SKU          string  `json:"sku,omitempty"`
	ProductName  string  `json:"product_name"`
	Brand        string  `json:"brand,omitempty"`
	Price        float64 `json:"price"`
	Size         string  `json:"size,omitempty"`
	Quantity     string  `json:"quantity,omitempty"`
	MultiBuyDeal string  `json:"multi_buy_deal,omitempty"`
}

// Identifier returns the store-specific identifier, whichever is set.
func (p Product) Identifier() string {
	if p.ProductID != "" {
		return p.ProductID
	}
	return p.SKU
}

// Matchable reports whether the record carries the minimum fields required to
// participate in matching. Missing brand, size, or quantity degrade confidence
// but do not exclude a record.
func (p Product) Matchable() bool {
	return p.ProductName != "" && p.Price > 0
}

// UnknownBrand is the sentinel used when a brand could not be determined.
// It is a real partition key, distinct from any matched brand string.
const UnknownBrand = "N/A"

// BrandPartition groups the products of one brand from both catalogs.
// A partition enters matching only if both slices are non-empty.
type BrandPartition struct {
	Brand          string
	StoreAProducts []Product
	StoreBProducts []Product
}

// CandidatePair is an identifier pair returned by the external matcher.
// The identifiers are untrusted until resolved against the originating
// partition's lookup tables.
type CandidatePair struct {
	ProductAID string `json:"product_a_id"`
	ProductBID string `json:"product_b_id"`
}

// MatchRecord is a fully resolved, priced comparison between one product from
// each catalog. Records are immutable once assembled; validation removes
// records, it never mutates them.
type MatchRecord struct {
	ProductA         Product `json:"product_a"`
	ProductB         Product `json:"product_b"`
	PriceA           float64 `json:"price_a"`
	PriceB           float64 `json:"price_b"`
	PriceDiff        string  `json:"price_diff"`
	PriceDiffPercent string  `json:"price_diff_percent"`
}

// AbsPriceDiff returns the unsigned dollar difference, used for ranking.
func (m MatchRecord) AbsPriceDiff() float64 {
	return math.Abs(m.PriceB - m.PriceA)
}

// FormatPriceDiff renders a signed dollar difference, e.g. "+$2.50" / "-$2.50".
func FormatPriceDiff(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+$%.2f", v)
	}
	return fmt.Sprintf("-$%.2f", -v)
}

// FormatPercentDiff renders a signed percentage difference, e.g. "+25.0%".
func FormatPercentDiff(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	return fmt.Sprintf("-%.1f%%", -v)
}
