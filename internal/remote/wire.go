package remote

import "github.com/roach88/offpos/internal/model"

// HTTP wire contract shared by Client and the reference authority server.
const (
	// IdempotencyHeader carries the sale id on POST /v1/sales.
	IdempotencyHeader = "Idempotency-Key"

	PathSales        = "/v1/sales"
	PathProducts     = "/v1/products"
	PathRevenueToday = "/v1/revenue/today"
	PathHealth       = "/v1/health"
	PathChanges      = "/v1/changes"
)

// SaleRequest is the body of POST /v1/sales.
type SaleRequest struct {
	ID    string           `json:"id"`
	Items []model.SaleLine `json:"items"`
}

// SaleResponse is returned for an applied or duplicate sale.
type SaleResponse struct {
	ID         string `json:"id"`
	Duplicate  bool   `json:"duplicate"`
	TotalMinor int64  `json:"total_minor"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// RevenueResponse is the body of GET /v1/revenue/today.
type RevenueResponse struct {
	TotalMinor int64 `json:"total_minor"`
}
