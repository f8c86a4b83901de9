package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	// Size with an explicit unit, e.g. "20 oz", "1.5 gallon", "64 fl oz"
	sizeUnitRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:oz|fl\s*oz|fluid\s*oz|fluid\s*ounce|ounce|gallon|ml|l|g|kg|lb|lbs|square feet)\b`)

	// Descriptive sizes used when no measured size appears in the title
	sizeDescRegex = regexp.MustCompile(`(?i)\b(mini|small|medium|large|x-large)\b`)

	// Pack counts, e.g. "12 count", "6 pk", "4 rolls"
	quantityUnitRegex = regexp.MustCompile(`(?i)\b(\d+)\s*(?:count|ct|pk|pc|piece|roll|pack)s?\b`)

	// Bare number fallback when neither a size nor a counted pack matched
	bareNumberRegex = regexp.MustCompile(`\b(\d+)\b`)

	// Unit spelling variants collapsed after lowercasing the matched size
	sizeUnitReplacer = strings.NewReplacer(
		"ounce", "oz",
		"pound", "lb",
		"liter", "l",
		"gram", "g",
	)
)

// storeAItem mirrors the relevant slice of store A's raw dump: an array of
// envelope objects each wrapping one product. Absent branches are pointers so
// partially populated items do not fake zero values.
type storeAItem struct {
	Data *struct {
		Product *struct {
			ID               string `json:"id"`
			Name             string `json:"name"`
			Brand            string `json:"brand"`
			ShortDescription string `json:"shortDescription"`
			PriceInfo        *struct {
				CurrentPrice *struct {
					Price *float64 `json:"price"`
				} `json:"currentPrice"`
			} `json:"priceInfo"`
		} `json:"product"`
	} `json:"data"`
}

// StoreACatalog extracts normalized products from store A's raw JSON dump.
// Records without both a name and a price are unusable and dropped.
func StoreACatalog(data []byte, logger *zap.Logger) ([]domain.Product, Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var items []storeAItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, Summary{}, fmt.Errorf("parsing store A dump: %w", err)
	}

	summary := newSummary("product_name", "brand", "product_id", "price", "size", "quantity")
	var products []domain.Product

	for _, item := range items {
		if item.Data == nil || item.Data.Product == nil {
			continue
		}
		summary.ItemsProcessed++
		raw := item.Data.Product

		if raw.Name != "" {
			summary.FieldCounts["product_name"]++
		}
		if raw.Brand != "" {
			summary.FieldCounts["brand"]++
		}
		if raw.ID != "" {
			summary.FieldCounts["product_id"]++
		}

		brand := domain.UnknownBrand
		if raw.Brand != "" {
			brand = strings.ToUpper(strings.Trim(raw.Brand, "'"))
		}

		size := extractSize(raw.Name, raw.ShortDescription)
		if size != "" {
			summary.FieldCounts["size"]++
		}

		quantity := extractQuantity(raw.Name, size)
		if quantity != "" {
			summary.FieldCounts["quantity"]++
		}

		var price *float64
		if raw.PriceInfo != nil && raw.PriceInfo.CurrentPrice != nil {
			price = raw.PriceInfo.CurrentPrice.Price
		}
		if price != nil {
			summary.FieldCounts["price"]++
		}

		if raw.Name == "" || price == nil {
			continue
		}

		products = append(products, domain.Product{
			ProductID:   raw.ID,
			ProductName: raw.Name,
			Brand:       brand,
			Price:       *price,
			Size:        size,
			Quantity:    quantity,
		})
	}

	summary.ProductsExtracted = len(products)
	summary.log(logger, "store_a")

	return products, summary, nil
}

// extractSize finds a measured size in the product name, falling back to the
// short description, then to descriptive sizes in the name. Unit spelling is
// normalized so "20 OUNCE" and "20 oz" compare equal downstream.
func extractSize(name, shortDescription string) string {
	m := sizeUnitRegex.FindString(name)
	if m == "" {
		m = sizeUnitRegex.FindString(shortDescription)
	}
	if m != "" {
		return sizeUnitReplacer.Replace(strings.ToLower(m))
	}

	if desc := sizeDescRegex.FindString(name); desc != "" {
		return strings.ToLower(desc)
	}
	return ""
}

// extractQuantity finds a pack count in the product name. When the name has
// neither a measured size nor a counted pack, a bare number is taken as the
// count; with a size present that bare number is almost certainly the size
// magnitude, so the fallback is skipped.
func extractQuantity(name, size string) string {
	if m := quantityUnitRegex.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if size == "" {
		if m := bareNumberRegex.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	return ""
}
