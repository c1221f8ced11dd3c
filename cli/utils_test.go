package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFile(t *testing.T) {
	t.Run("yaml keeps metadata order", func(t *testing.T) {
		path := writeFile(t, "orders.yaml", `
name: orders
type: Topic
services: [kafka]
metadata:
  zone: eu
  owner: team-a
  partitions: 12
externalLinks:
  - name: docs
    url: https://docs.example.com/orders
`)
		var a asset.Asset
		require.NoError(t, parseFile(path, &a))
		assert.Equal(t, "orders", a.Name)
		assert.Equal(t, asset.TypeTopic, a.Type)
		assert.Equal(t, []string{"kafka"}, a.Services)
		assert.Equal(t, []string{"zone", "owner", "partitions"}, a.Metadata.Keys())
		require.Len(t, a.ExternalLinks, 1)
		assert.Equal(t, "docs", a.ExternalLinks[0].Name)
	})

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "orders.json", `{"name":"orders","type":"Topic","metadata":{"b":1,"a":2}}`)
		var a asset.Asset
		require.NoError(t, parseFile(path, &a))
		assert.Equal(t, []string{"b", "a"}, a.Metadata.Keys())
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "orders.toml", `name = "orders"`)
		var a asset.Asset
		assert.EqualError(t, parseFile(path, &a), "unsupported file type")
	})

	t.Run("broken yaml", func(t *testing.T) {
		path := writeFile(t, "orders.yaml", "name: [orders")
		var a asset.Asset
		assert.ErrorContains(t, parseFile(path, &a), "invalid yaml")
	})
}

func TestOpenLineageRepository(t *testing.T) {
	t.Run("memory store cannot be listed", func(t *testing.T) {
		_, _, err := openLineageRepository(Config{Store: provider.StoreConfig{Driver: provider.DriverMemory}})
		assert.ErrorIs(t, err, errMemoryStore)
	})

	t.Run("catalog needs a host", func(t *testing.T) {
		_, _, err := openLineageRepository(Config{Store: provider.StoreConfig{Driver: provider.DriverCatalog}})
		assert.Error(t, err)
	})

	t.Run("catalog", func(t *testing.T) {
		repo, closeFn, err := openLineageRepository(Config{
			Store:   provider.StoreConfig{Driver: provider.DriverCatalog},
			Catalog: CatalogConfig{Host: "catalog.example.com", APIKey: "key"},
		})
		require.NoError(t, err)
		assert.NotNil(t, repo)
		assert.NoError(t, closeFn())
	})
}
