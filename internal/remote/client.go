package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/offpos/internal/model"
)

// DefaultResubscribeDelay is the wait between change-stream reconnects.
const DefaultResubscribeDelay = 5 * time.Second

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client implements Authority over the offpos HTTP wire contract.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	base             *url.URL
	http             *http.Client
	dialer           *websocket.Dialer
	now              func() time.Time
	resubscribeDelay time.Duration
	logger           *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client. Its Timeout, if any, is the
// transport-level timeout for every request.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClock sets the wall clock used for "today" boundaries.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithResubscribeDelay sets the wait between change-stream reconnects.
func WithResubscribeDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.resubscribeDelay = d }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for the authority at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse authority url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("authority url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:             u,
		http:             &http.Client{Timeout: 10 * time.Second},
		dialer:           websocket.DefaultDialer,
		now:              time.Now,
		resubscribeDelay: DefaultResubscribeDelay,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitSale implements Authority.
//
// 200 (duplicate) and 201 (applied) are success. 4xx other than 408/429 is a
// rejection; everything else, including transport errors, is unavailable.
func (c *Client) SubmitSale(ctx context.Context, idempotencyID string, items []model.SaleLine) error {
	const op = "submit sale"

	body, err := json.Marshal(SaleRequest{ID: idempotencyID, Items: items})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(PathSales, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, idempotencyID)

	resp, err := c.http.Do(req)
	if err != nil {
		return model.NewRemoteUnavailable(op, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	return statusError(op, resp)
}

// FetchCatalog implements Authority.
func (c *Client) FetchCatalog(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.getJSON(ctx, "fetch catalog", c.endpoint(PathProducts, nil), &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// FetchTodayRevenue implements Authority. "Today" starts at local midnight
// of the client clock.
func (c *Client) FetchTodayRevenue(ctx context.Context) (int64, error) {
	now := c.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	q := url.Values{"since": {midnight.Format(time.RFC3339)}}

	var out RevenueResponse
	if err := c.getJSON(ctx, "fetch revenue", c.endpoint(PathRevenueToday, q), &out); err != nil {
		return 0, err
	}
	return out.TotalMinor, nil
}

// Ping implements Authority.
func (c *Client) Ping(ctx context.Context) error {
	const op = "ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(PathHealth, nil), nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.NewRemoteUnavailable(op, err)
	}
	defer drain(resp)

	if resp.StatusCode/100 != 2 {
		return model.NewRemoteUnavailable(op, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.NewRemoteUnavailable(op, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// A truncated body is indistinguishable from a dropped connection.
		return model.NewRemoteUnavailable(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// statusError maps a non-success HTTP status to the error taxonomy.
func statusError(op string, resp *http.Response) error {
	var body ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(data, &body)

	reason := body.Reason
	if reason == "" {
		reason = body.Error
	}
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return model.NewRemoteUnavailable(op, fmt.Errorf("status %d: %s", resp.StatusCode, reason))
	case resp.StatusCode >= 400:
		return model.NewRemoteRejected(op, reason)
	default:
		return model.NewRemoteUnavailable(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// drain discards the rest of a response body so the connection is reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
