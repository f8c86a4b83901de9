package extract

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cartmatch/reconciler/internal/domain"
)

var (
	// Multi-buy deals like "2/$6.00": price becomes the per-unit price and
	// the deal text is retained to contextualize price differences.
	multiBuyRegex = regexp.MustCompile(`^(\d+)/\$(\d+\.\d+|\d+)`)

	// Cent-only prices like "95¢"
	centPriceRegex = regexp.MustCompile(`(\d+)\x{00a2}`)

	// Dollar amount inside per-LB and plain "$" prices
	dollarAmountRegex = regexp.MustCompile(`\$(\d+\.\d+|\d+)`)

	// Store B names rarely spell out pack units, so the unit is optional here
	looseQuantityRegex = regexp.MustCompile(`(?i)\b(\d+)\s*(?:count|ct|pk|pc|piece|roll|pack)?s?\b`)
)

// storeBItem mirrors store B's raw dump: an array of envelopes each carrying
// one rendered HTML fragment of a product grid page.
type storeBItem struct {
	Data *struct {
		HTMLData string `json:"html_data"`
	} `json:"data"`
}

// StoreBCatalog extracts normalized products from store B's raw HTML dump.
// The brand field is provisional (first word of the name); the brand enricher
// replaces it with an inferred brand before matching.
func StoreBCatalog(data []byte, logger *zap.Logger) ([]domain.Product, Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var items []storeBItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, Summary{}, fmt.Errorf("parsing store B dump: %w", err)
	}

	summary := newSummary("sku", "product_name", "brand", "size", "price", "quantity", "multi_buy_deal")
	var products []domain.Product

	for _, item := range items {
		if item.Data == nil || item.Data.HTMLData == "" {
			continue
		}
		summary.ItemsProcessed++

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(item.Data.HTMLData)))
		if err != nil {
			logger.Warn("unparseable html fragment", zap.Error(err))
			continue
		}

		doc.Find("div.product-grid-item").Each(func(_ int, block *goquery.Selection) {
			product, ok := extractProductBlock(block)
			if !ok {
				return
			}

			countFields(&summary, product)
			products = append(products, product)
		})
	}

	summary.ProductsExtracted = len(products)
	summary.log(logger, "store_b")

	return products, summary, nil
}

// extractProductBlock pulls one product out of a grid item. A block without a
// name or a parseable price is unusable.
func extractProductBlock(block *goquery.Selection) (domain.Product, bool) {
	name := strings.TrimSpace(block.Find("a[title]").First().AttrOr("title", ""))
	if name == "" {
		name = strings.TrimSpace(block.Find("h3 a").First().Text())
	}
	if name == "" {
		return domain.Product{}, false
	}

	sku := strings.TrimSpace(block.Find(`input[name="sku"]`).First().AttrOr("value", ""))
	size := strings.TrimSpace(block.Find("p.text-center.text-muted").First().Text())
	priceText := strings.TrimSpace(block.Find("p.text-center.precio").First().Text())

	price, deal, ok := normalizePrice(priceText)
	if !ok {
		return domain.Product{}, false
	}

	// Provisional brand: multi-word brands need the inference pass to be
	// recognized, but the first word is a usable starting point.
	brand := ""
	if words := strings.Fields(name); len(words) > 0 {
		brand = words[0]
	}

	quantity := ""
	if m := looseQuantityRegex.FindStringSubmatch(name); m != nil {
		quantity = m[1]
	}

	return domain.Product{
		SKU:          sku,
		ProductName:  name,
		Brand:        brand,
		Price:        price,
		Size:         size,
		Quantity:     quantity,
		MultiBuyDeal: deal,
	}, true
}

// normalizePrice converts store B's display prices to a plain per-unit dollar
// amount. Handled forms: multi-buy "2/$6.00", cents "95¢", per-unit "$2.99
// LB", and plain "$2.99".
func normalizePrice(text string) (float64, string, bool) {
	if text == "" {
		return 0, "", false
	}

	if strings.Contains(text, "/") {
		if m := multiBuyRegex.FindStringSubmatch(text); m != nil {
			count, _ := strconv.Atoi(m[1])
			total, err := strconv.ParseFloat(m[2], 64)
			if err != nil || count == 0 {
				return 0, "", false
			}
			return total / float64(count), text, true
		}
		return 0, "", false
	}

	if m := centPriceRegex.FindStringSubmatch(text); m != nil {
		cents, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, "", false
		}
		return cents / 100, "", true
	}

	if m := dollarAmountRegex.FindStringSubmatch(text); m != nil {
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, "", false
		}
		return price, "", true
	}

	return 0, "", false
}

func countFields(summary *Summary, p domain.Product) {
	if p.SKU != "" {
		summary.FieldCounts["sku"]++
	}
	if p.ProductName != "" {
		summary.FieldCounts["product_name"]++
	}
	if p.Brand != "" {
		summary.FieldCounts["brand"]++
	}
	if p.Size != "" {
		summary.FieldCounts["size"]++
	}
	summary.FieldCounts["price"]++
	if p.Quantity != "" {
		summary.FieldCounts["quantity"]++
	}
	if p.MultiBuyDeal != "" {
		summary.FieldCounts["multi_buy_deal"]++
	}
}
