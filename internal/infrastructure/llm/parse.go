package llm

import (
	"encoding/json"
	"strings"

	"github.com/cartmatch/reconciler/internal/domain"
)

// extractPairs pulls a JSON array of identifier pairs out of freeform model
// output. The model may wrap the array in prose or markdown fencing, so the
// substring between the first '[' and the last ']' is what gets parsed.
// Anything that fails to parse is treated as "no matches" rather than an
// error: downstream handling is identical either way.
func extractPairs(text string) []domain.CandidatePair {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}

	var pairs []domain.CandidatePair
	if err := json.Unmarshal([]byte(text[start:end+1]), &pairs); err != nil {
		return nil
	}
	return pairs
}

// extractBrandMap pulls a JSON object of identifier to brand out of freeform
// model output, with the same defensive contract as extractPairs: failure to
// parse means no inferences, not an error.
func extractBrandMap(text string) map[string]string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var brands map[string]string
	if err := json.Unmarshal([]byte(text[start:end+1]), &brands); err != nil {
		return nil
	}
	return brands
}
