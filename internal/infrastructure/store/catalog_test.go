package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartmatch/reconciler/internal/domain"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	t.Run("loads matchable products", func(t *testing.T) {
		path := writeCatalogFile(t, `[
			{"product_id": "a1", "product_name": "Acme Cola", "brand": "ACME", "price": 1.99},
			{"sku": "b1", "product_name": "Acme Chips", "price": 2.49}
		]`)

		products, skipped, err := LoadCatalog(path, nil)

		require.NoError(t, err)
		assert.Len(t, products, 2)
		assert.Zero(t, skipped)
		assert.Equal(t, "a1", products[0].Identifier())
		assert.Equal(t, "b1", products[1].Identifier())
	})

	t.Run("drops records missing a name or price", func(t *testing.T) {
		path := writeCatalogFile(t, `[
			{"product_id": "a1", "product_name": "Acme Cola", "price": 1.99},
			{"product_id": "a2", "product_name": "", "price": 2.49},
			{"product_id": "a3", "product_name": "Acme Soap", "price": 0}
		]`)

		products, skipped, err := LoadCatalog(path, nil)

		require.NoError(t, err)
		assert.Len(t, products, 1)
		assert.Equal(t, 2, skipped)
	})

	t.Run("entirely unusable catalog is a structural failure", func(t *testing.T) {
		path := writeCatalogFile(t, `[{"product_id": "a1", "product_name": "", "price": 0}]`)

		_, skipped, err := LoadCatalog(path, nil)

		assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
		assert.Equal(t, 1, skipped)
	})

	t.Run("empty array is a structural failure", func(t *testing.T) {
		path := writeCatalogFile(t, `[]`)

		_, _, err := LoadCatalog(path, nil)
		assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json"), nil)
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeCatalogFile(t, `{"not": "an array"}`)

		_, _, err := LoadCatalog(path, nil)
		assert.Error(t, err)
	})
}
