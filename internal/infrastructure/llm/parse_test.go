package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartmatch/reconciler/internal/domain"
)

func TestExtractPairs(t *testing.T) {
	t.Run("parses a bare JSON array", func(t *testing.T) {
		pairs := extractPairs(`[{"product_a_id":"a1","product_b_id":"b1"}]`)

		require.Len(t, pairs, 1)
		assert.Equal(t, "a1", pairs[0].ProductAID)
		assert.Equal(t, "b1", pairs[0].ProductBID)
	})

	t.Run("strips surrounding prose", func(t *testing.T) {
		text := `Here are the matches I found:
[{"product_a_id":"a1","product_b_id":"b1"},{"product_a_id":"a2","product_b_id":"b2"}]
Let me know if you need anything else!`

		pairs := extractPairs(text)

		require.Len(t, pairs, 2)
		assert.Equal(t, "a2", pairs[1].ProductAID)
	})

	t.Run("strips markdown fencing", func(t *testing.T) {
		text := "```json\n[{\"product_a_id\":\"a1\",\"product_b_id\":\"b1\"}]\n```"

		pairs := extractPairs(text)

		require.Len(t, pairs, 1)
		assert.Equal(t, "a1", pairs[0].ProductAID)
	})

	t.Run("empty array yields no pairs", func(t *testing.T) {
		assert.Empty(t, extractPairs("[]"))
	})

	t.Run("malformed payloads yield no pairs rather than errors", func(t *testing.T) {
		inputs := []string{
			"",
			"no brackets at all",
			"[ truncated",
			"] reversed [",
			`["not", "pair", "objects"... wait this is invalid`,
			`[{"product_a_id": 42}]`,
		}
		for _, input := range inputs {
			assert.Empty(t, extractPairs(input), "input: %q", input)
		}
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		pairs := extractPairs(`[{"product_a_id":"a1","product_b_id":"b1","confidence":0.9}]`)

		require.Len(t, pairs, 1)
		assert.Equal(t, domain.CandidatePair{ProductAID: "a1", ProductBID: "b1"}, pairs[0])
	})
}

func TestExtractBrandMap(t *testing.T) {
	t.Run("parses a bare JSON object", func(t *testing.T) {
		brands := extractBrandMap(`{"sku1":"ACME","sku2":"GREAT VALUE"}`)

		require.Len(t, brands, 2)
		assert.Equal(t, "ACME", brands["sku1"])
		assert.Equal(t, "GREAT VALUE", brands["sku2"])
	})

	t.Run("strips surrounding prose and fencing", func(t *testing.T) {
		text := "Sure! ```json\n{\"sku1\":\"ACME\"}\n```"

		brands := extractBrandMap(text)

		require.Len(t, brands, 1)
		assert.Equal(t, "ACME", brands["sku1"])
	})

	t.Run("malformed payloads yield no brands", func(t *testing.T) {
		inputs := []string{
			"",
			"no braces",
			"{ truncated",
			`{"sku1": ["not a string"]}`,
		}
		for _, input := range inputs {
			assert.Empty(t, extractBrandMap(input), "input: %q", input)
		}
	})
}
