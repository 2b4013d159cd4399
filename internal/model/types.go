package model

import "time"

// Product is one entry of the cached catalog snapshot.
//
// The core never writes products to the authoritative store; Product is a
// read-only copy replaced wholesale on every refresh.
type Product struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	PriceMinor int64  `json:"price_minor" yaml:"price_minor"`
	Stock      int64  `json:"stock" yaml:"stock"`
	Barcode    string `json:"barcode,omitempty" yaml:"barcode,omitempty"`
	ImageRef   string `json:"image_ref,omitempty" yaml:"image_ref,omitempty"`
}

// SaleLine is the item shape presented to the remote commit contract.
type SaleLine struct {
	ProductID string `json:"product_id" yaml:"product_id"`
	Quantity  int    `json:"qty" yaml:"qty"`
}

// PendingSale is a sale transaction that has not been confirmed by the
// authoritative store.
//
// ID is generated once at submission time, independent of the cart
// contents, and is the idempotency key presented on every commit attempt.
// A PendingSale is never modified after it is persisted.
type PendingSale struct {
	ID        string     `json:"id"`
	Items     []SaleLine `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

// Lines returns a copy of the sale lines.
func (p PendingSale) Lines() []SaleLine {
	out := make([]SaleLine, len(p.Items))
	copy(out, p.Items)
	return out
}

// CatalogSnapshot is a complete local copy of the remote catalog plus the
// derived revenue aggregate.
type CatalogSnapshot struct {
	Products          []Product `json:"products"`
	TodayRevenueMinor int64     `json:"today_revenue_minor"`
	FetchedAt         time.Time `json:"fetched_at"`
	Fingerprint       string    `json:"fingerprint,omitempty"`
}
