package catalog

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/offpos/internal/model"
)

// Snapshot is an immutable view of the catalog. It is replaced wholesale on
// every refresh and is safe to share between goroutines.
type Snapshot struct {
	products    []model.Product
	byID        map[string]int
	byBarcode   map[string]int
	folded      []string
	revenue     int64
	fetchedAt   time.Time
	fingerprint string
	stale       bool
}

// fold maps s to its NFC case-folded form. A Caser is stateful, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func newSnapshot(snap model.CatalogSnapshot, stale bool) *Snapshot {
	s := &Snapshot{
		products:    slices.Clone(snap.Products),
		byID:        make(map[string]int, len(snap.Products)),
		byBarcode:   make(map[string]int, len(snap.Products)),
		folded:      make([]string, len(snap.Products)),
		revenue:     snap.TodayRevenueMinor,
		fetchedAt:   snap.FetchedAt,
		fingerprint: snap.Fingerprint,
		stale:       stale,
	}
	if s.products == nil {
		s.products = []model.Product{}
	}
	for i, p := range s.products {
		s.byID[p.ID] = i
		if p.Barcode != "" {
			// First product wins on a duplicate barcode, matching a linear scan.
			if _, dup := s.byBarcode[p.Barcode]; !dup {
				s.byBarcode[p.Barcode] = i
			}
		}
		s.folded[i] = fold(p.Name)
	}
	return s
}

// withStale returns a copy of s with the stale flag set.
func (s *Snapshot) withStale() *Snapshot {
	c := *s
	c.stale = true
	return &c
}

// Products returns the catalog in name order.
func (s *Snapshot) Products() []model.Product {
	return slices.Clone(s.products)
}

// Len returns the number of products.
func (s *Snapshot) Len() int {
	return len(s.products)
}

// Lookup returns the product with id.
func (s *Snapshot) Lookup(id string) (model.Product, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.Product{}, false
	}
	return s.products[i], true
}

// ByBarcode returns the product whose barcode is exactly code.
func (s *Snapshot) ByBarcode(code string) (model.Product, bool) {
	i, ok := s.byBarcode[strings.TrimSpace(code)]
	if !ok {
		return model.Product{}, false
	}
	return s.products[i], true
}

// Search returns products whose name contains query, ignoring case and
// Unicode normalization differences. An empty query matches everything.
func (s *Snapshot) Search(query string) []model.Product {
	q := fold(strings.TrimSpace(query))
	out := []model.Product{}
	for i, name := range s.folded {
		if strings.Contains(name, q) {
			out = append(out, s.products[i])
		}
	}
	return out
}

// TodayRevenueMinor is today's recorded revenue at the last refresh.
func (s *Snapshot) TodayRevenueMinor() int64 { return s.revenue }

// FetchedAt is when the catalog was last fetched from the authority.
// Zero for a snapshot that has never been fetched.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Fingerprint is the content hash of the product list.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

// Stale reports whether the snapshot came from the local cache or the most
// recent refresh attempt failed.
func (s *Snapshot) Stale() bool { return s.stale }

func (s *Snapshot) record() model.CatalogSnapshot {
	return model.CatalogSnapshot{
		Products:          s.Products(),
		TodayRevenueMinor: s.revenue,
		FetchedAt:         s.fetchedAt,
		Fingerprint:       s.fingerprint,
	}
}
