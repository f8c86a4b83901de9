package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cartmatch/reconciler/internal/domain"
)

const matchSystemPrompt = "You are a diligent merchandiser working at a grocery store chain with strong attention to detail."

const inferSystemPrompt = "You are a merchandiser at a large South American grocery store chain who has expertise on the brands your store carries."

// matchPrompt embeds both candidate lists as JSON plus the matching criteria
// and a strict output-format instruction. Partitioning already guarantees the
// brand criterion; it is restated so the model does not relax it.
func matchPrompt(storeA, storeB []domain.Product) (string, error) {
	storeAJSON, err := json.Marshal(storeA)
	if err != nil {
		return "", err
	}
	storeBJSON, err := json.Marshal(storeB)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`store_a_products = %s

store_b_products = %s

Infer which items in these two lists are the same item.

To be the same item, the two products must satisfy the following:
(1) Be of the same brand
(2) Be of the same type and flavor (e.g. flavor = pineapple, type = coffee cake).

Return ONLY a JSON array of matching ID pairs:
[
    {"product_a_id": "PRODUCT_ID_FROM_STORE_A", "product_b_id": "SKU_FROM_STORE_B"}
]

Return empty array [] if no matches.`, storeAJSON, storeBJSON), nil
}

// inferItem is the reduced view of a product sent for brand inference: the
// identifier ties the answer back to the record, the name is all the model
// needs to guess.
type inferItem struct {
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
}

// inferPrompt embeds the chunk's sku/name pairs and the competing store's
// brand vocabulary. Exact spelling reuse matters: the partitioner joins on
// the exact normalized brand string.
func inferPrompt(products []domain.Product, knownBrands []string) (string, error) {
	items := make([]inferItem, len(products))
	for i, p := range products {
		items[i] = inferItem{SKU: p.Identifier(), ProductName: p.ProductName}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`I have a list of brands carried at a competing grocery store:
%s

You have the following list of grocery product data for your store, which includes product names but not product brands.
%s

Identify the brand name of each product based on its product name, your knowledge of existing grocery product brands, and the list of brands carried at the competing store.
If the same brand is carried at the competing grocery store, MAKE SURE to match the EXACT SPELLING of the brand name that the competing store uses, including spaces and special characters.

Some product names are in Spanish - please adjust your thinking accordingly.

If the product appears to have no brand, return NO BRAND instead of UNKNOWN.
Output the results as JSON containing a single object where the keys are the SKUs and the values are the corresponding brands.`,
		strings.Join(knownBrands, ", "), itemsJSON), nil
}
