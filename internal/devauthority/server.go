// Package devauthority is an in-memory authoritative store speaking the
// offpos wire contract. It backs local development (offpos dev-authority)
// and the end-to-end tests of the HTTP client.
//
// Sales are committed exactly once per id. Stock is checked and decremented
// atomically with the commit.
package devauthority

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/remote"
)

// Sale is one committed sale.
type Sale struct {
	ID          string
	Items       []model.SaleLine
	TotalMinor  int64
	CommittedAt time.Time
}

// Server is the in-memory authority.
//
// Thread-safety: Server is safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	products map[string]model.Product
	sales    map[string]Sale
	order    []string

	offline atomic.Bool
	now     func() time.Time
	logger  *slog.Logger
	hub     *hub
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithProducts seeds the catalog.
func WithProducts(products []model.Product) Option {
	return func(s *Server) {
		for _, p := range products {
			s.products[p.ID] = p
		}
	}
}

// WithClock sets the clock used to stamp commits.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		products: make(map[string]model.Product),
		sales:    make(map[string]Sale),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.availability)
	r.Get(remote.PathHealth, s.health)
	r.Get(remote.PathProducts, s.listProducts)
	r.Get(remote.PathRevenueToday, s.revenueToday)
	r.Post(remote.PathSales, s.createSale)
	r.Get(remote.PathChanges, s.changes)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetOffline makes every request fail with 503 while on is true. Open
// change streams are dropped.
func (s *Server) SetOffline(on bool) {
	s.offline.Store(on)
	if on {
		s.hub.closeAll()
	}
}

// Close drops every open change stream.
func (s *Server) Close() {
	s.hub.closeAll()
}

// UpsertProduct creates or replaces a product and notifies subscribers.
func (s *Server) UpsertProduct(p model.Product) {
	s.mu.Lock()
	_, existed := s.products[p.ID]
	s.products[p.ID] = p
	s.mu.Unlock()

	kind := remote.ChangeInsert
	if existed {
		kind = remote.ChangeUpdate
	}
	s.hub.broadcast(remote.ChangeEvent{Scope: remote.ScopeProducts, Kind: kind, Key: p.ID})
}

// DeleteProduct removes a product and notifies subscribers.
func (s *Server) DeleteProduct(id string) {
	s.mu.Lock()
	_, existed := s.products[id]
	delete(s.products, id)
	s.mu.Unlock()

	if existed {
		s.hub.broadcast(remote.ChangeEvent{Scope: remote.ScopeProducts, Kind: remote.ChangeDelete, Key: id})
	}
}

// Products returns the catalog ordered by name.
func (s *Server) Products() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedProducts()
}

// Sales returns committed sales in commit order.
func (s *Server) Sales() []Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sale, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sales[id])
	}
	return out
}

// Subscribers returns the number of open change streams.
func (s *Server) Subscribers() int {
	return s.hub.count()
}

func (s *Server) availability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.offline.Load() {
			respondError(w, http.StatusServiceUnavailable, "unavailable", "authority is offline")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.Products())
}

func (s *Server) revenueToday(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_since", "since must be RFC 3339")
			return
		}
		since = t
	}

	s.mu.Lock()
	var total int64
	for _, sale := range s.sales {
		if !sale.CommittedAt.Before(since) {
			total += sale.TotalMinor
		}
	}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, remote.RevenueResponse{TotalMinor: total})
}

func (s *Server) createSale(w http.ResponseWriter, r *http.Request) {
	var req remote.SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	key := r.Header.Get(remote.IdempotencyHeader)
	switch {
	case key == "" && req.ID == "":
		respondError(w, http.StatusBadRequest, "invalid_request", "missing sale id")
		return
	case key == "":
		key = req.ID
	case req.ID != "" && req.ID != key:
		respondError(w, http.StatusBadRequest, "invalid_request", "idempotency key does not match sale id")
		return
	}

	sale, status, code, reason := s.commit(key, req.Items)
	if status >= 400 {
		respondError(w, status, code, reason)
		return
	}

	if status == http.StatusCreated {
		s.logger.Info("sale committed", "sale_id", sale.ID, "total_minor", sale.TotalMinor)
		s.hub.broadcast(remote.ChangeEvent{Scope: remote.ScopeSales, Kind: remote.ChangeInsert, Key: sale.ID})
		for _, line := range sale.Items {
			s.hub.broadcast(remote.ChangeEvent{Scope: remote.ScopeProducts, Kind: remote.ChangeUpdate, Key: line.ProductID})
		}
	}
	respondJSON(w, status, remote.SaleResponse{
		ID:         sale.ID,
		Duplicate:  status == http.StatusOK,
		TotalMinor: sale.TotalMinor,
	})
}

// commit applies a sale once. It returns 201 for a new commit, 200 for a
// duplicate of an existing one, or an error status with a reason.
func (s *Server) commit(id string, items []model.SaleLine) (Sale, int, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sales[id]; ok {
		if !slices.Equal(existing.Items, items) {
			return Sale{}, http.StatusConflict, "conflict", "sale id already used with different items"
		}
		return existing, http.StatusOK, "", ""
	}

	if len(items) == 0 {
		return Sale{}, http.StatusUnprocessableEntity, "empty_sale", "sale has no items"
	}

	// Merge duplicate lines before checking stock.
	need := make(map[string]int64, len(items))
	for _, line := range items {
		if line.Quantity <= 0 {
			return Sale{}, http.StatusUnprocessableEntity, "invalid_quantity", "quantity must be positive"
		}
		if _, ok := s.products[line.ProductID]; !ok {
			return Sale{}, http.StatusUnprocessableEntity, "unknown_product", "unknown product " + line.ProductID
		}
		need[line.ProductID] += int64(line.Quantity)
	}

	var total int64
	for pid, qty := range need {
		p := s.products[pid]
		if p.Stock < qty {
			return Sale{}, http.StatusUnprocessableEntity, "insufficient_stock", "insufficient stock for " + p.Name
		}
		total += p.PriceMinor * qty
	}
	for pid, qty := range need {
		p := s.products[pid]
		p.Stock -= qty
		s.products[pid] = p
	}

	sale := Sale{
		ID:          id,
		Items:       slices.Clone(items),
		TotalMinor:  total,
		CommittedAt: s.now(),
	}
	s.sales[id] = sale
	s.order = append(s.order, id)
	return sale, http.StatusCreated, "", ""
}

func (s *Server) sortedProducts() []model.Product {
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, reason string) {
	respondJSON(w, status, remote.ErrorResponse{Error: code, Reason: reason})
}
