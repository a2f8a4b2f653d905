package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileLoader reads an already-scraped catalog dump from a JSON file, an
// array of catalog entries.
type FileLoader struct {
	Path string
}

// NewFileLoader creates a loader over the dump at path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path}
}

// Load reads and decodes the dump. Entries without a name are dropped.
func (l *FileLoader) Load(_ context.Context) ([]CatalogProduct, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var products []CatalogProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("failed to decode catalog file: %w", err)
	}

	out := products[:0]
	for _, p := range products {
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
