package devauthority

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/offpos/internal/model"
)

// seedFile is the on-disk catalog seed format.
type seedFile struct {
	Products []model.Product `yaml:"products"`
}

// LoadSeed reads a YAML catalog seed from path.
func LoadSeed(path string) ([]model.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed parses a YAML catalog seed.
func ParseSeed(data []byte) ([]model.Product, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	seen := make(map[string]bool, len(f.Products))
	out := make([]model.Product, 0, len(f.Products))
	for i, p := range f.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("seed product %d: missing id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("seed product %q: duplicate id", p.ID)
		}
		if p.PriceMinor < 0 || p.Stock < 0 {
			return nil, fmt.Errorf("seed product %q: price and stock must not be negative", p.ID)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

// DefaultProducts is the catalog served when no seed file is given.
func DefaultProducts() []model.Product {
	return []model.Product{
		{ID: "p-coffee", Name: "Coffee", PriceMinor: 350, Stock: 100, Barcode: "4006381333931"},
		{ID: "p-bagel", Name: "Bagel", PriceMinor: 275, Stock: 40, Barcode: "4006381333948"},
		{ID: "p-juice", Name: "Orange Juice", PriceMinor: 425, Stock: 25, Barcode: "4006381333955"},
		{ID: "p-muffin", Name: "Muffin", PriceMinor: 300, Stock: 30},
	}
}
