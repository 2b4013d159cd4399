package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/offpos/internal/catalog"
	"github.com/roach88/offpos/internal/drain"
	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/sale"
)

type cartLine struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Quantity      int    `json:"qty"`
	UnitPrice     string `json:"unit_price"`
	SubtotalMinor int64  `json:"subtotal_minor"`
}

type cartView struct {
	Items      []cartLine `json:"items"`
	TotalMinor int64      `json:"total_minor"`
	Total      string     `json:"total"`
}

func newCartView(c model.Cart) cartView {
	v := cartView{Items: make([]cartLine, 0, len(c.Items)), TotalMinor: c.TotalMinor()}
	for _, it := range c.Items {
		v.Items = append(v.Items, cartLine{
			ProductID:     it.ProductID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     Money(it.UnitPriceMinor),
			SubtotalMinor: it.SubtotalMinor(),
		})
	}
	v.Total = Money(v.TotalMinor)
	return v
}

func (v cartView) String() string {
	if len(v.Items) == 0 {
		return "Cart is empty."
	}
	var b strings.Builder
	for _, it := range v.Items {
		fmt.Fprintf(&b, "%3d x %-24s %8s %9s\n", it.Quantity, it.Name, it.UnitPrice, Money(it.SubtotalMinor))
	}
	fmt.Fprintf(&b, "%-30s %18s", "Total", v.Total)
	return b.String()
}

type checkoutView struct {
	sale.Result
	Total   string `json:"total"`
	Pending int    `json:"pending"`
}

func (v checkoutView) String() string {
	var b strings.Builder
	switch v.Outcome {
	case sale.OutcomeNoop:
		b.WriteString("Cart is empty; nothing to check out.")
	case sale.OutcomeCommitted:
		fmt.Fprintf(&b, "Sale %s committed (%s).", v.SaleID, v.Total)
	case sale.OutcomeQueued:
		fmt.Fprintf(&b, "Authority unreachable. Sale %s queued (%s) and will be retried.", v.SaleID, v.Total)
	case sale.OutcomeRejected:
		fmt.Fprintf(&b, "Sale %s rejected; cart kept.", v.SaleID)
	case sale.OutcomeNotRecorded:
		fmt.Fprintf(&b, "Sale %s was NOT recorded; cart kept.", v.SaleID)
	}
	if v.Warning != "" {
		fmt.Fprintf(&b, "\nWarning: %s", v.Warning)
	}
	if v.Outcome != sale.OutcomeNoop {
		fmt.Fprintf(&b, "\nPending sales: %d", v.Pending)
	}
	return b.String()
}

type pendingLine struct {
	ID        string           `json:"id"`
	Items     []model.SaleLine `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
}

type pendingView struct {
	Count int           `json:"count"`
	Sales []pendingLine `json:"sales"`
}

func newPendingView(sales []model.PendingSale) pendingView {
	v := pendingView{Count: len(sales), Sales: make([]pendingLine, 0, len(sales))}
	for _, s := range sales {
		v.Sales = append(v.Sales, pendingLine{ID: s.ID, Items: s.Lines(), CreatedAt: s.CreatedAt})
	}
	return v
}

func (v pendingView) String() string {
	if v.Count == 0 {
		return "No pending sales."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending sale(s), oldest first:", v.Count)
	for _, s := range v.Sales {
		units := 0
		for _, l := range s.Items {
			units += l.Quantity
		}
		fmt.Fprintf(&b, "\n  %s  %s  %d line(s), %d unit(s)", s.ID, s.CreatedAt.Format(time.RFC3339), len(s.Items), units)
	}
	return b.String()
}

type syncView struct {
	drain.Report
	Breaker string `json:"breaker"`
}

func (v syncView) String() string {
	s := fmt.Sprintf("Attempted %d, committed %d, failed %d, rejected %d; %d pending.",
		v.Attempted, v.Committed, v.Failed, v.Rejected, v.Remaining)
	if len(v.RejectedIDs) > 0 {
		s += "\nRejected by the authority: " + strings.Join(v.RejectedIDs, ", ")
	}
	return s
}

type discardView struct {
	SaleID     string           `json:"sale_id"`
	Resolution drain.Resolution `json:"resolution"`
	Pending    int              `json:"pending"`
}

func (v discardView) String() string {
	if v.Resolution == drain.ResolvedCommitted {
		return fmt.Sprintf("Sale %s was accepted by the authority and committed.\nPending sales: %d", v.SaleID, v.Pending)
	}
	return fmt.Sprintf("Sale %s discarded.\nPending sales: %d", v.SaleID, v.Pending)
}

type catalogView struct {
	Products     []model.Product `json:"products"`
	Revenue      string          `json:"today_revenue"`
	RevenueMinor int64           `json:"today_revenue_minor"`
	FetchedAt    *time.Time      `json:"fetched_at,omitempty"`
	Stale        bool            `json:"stale"`
	Fingerprint  string          `json:"fingerprint,omitempty"`
}

func newCatalogView(s *catalog.Snapshot, products []model.Product) catalogView {
	v := catalogView{
		Products:     products,
		RevenueMinor: s.TodayRevenueMinor(),
		Revenue:      Money(s.TodayRevenueMinor()),
		Stale:        s.Stale(),
		Fingerprint:  s.Fingerprint(),
	}
	if at := s.FetchedAt(); !at.IsZero() {
		v.FetchedAt = &at
	}
	return v
}

func (v catalogView) String() string {
	var b strings.Builder
	for _, p := range v.Products {
		fmt.Fprintf(&b, "%-12s %-24s %8s  stock %-5d %s\n", p.ID, p.Name, Money(p.PriceMinor), p.Stock, p.Barcode)
	}
	switch {
	case v.FetchedAt == nil:
		b.WriteString("Catalog never fetched.")
	case v.Stale:
		fmt.Fprintf(&b, "Catalog as of %s (stale). Today's revenue %s.", v.FetchedAt.Format(time.RFC3339), v.Revenue)
	default:
		fmt.Fprintf(&b, "Catalog as of %s. Today's revenue %s.", v.FetchedAt.Format(time.RFC3339), v.Revenue)
	}
	return b.String()
}
