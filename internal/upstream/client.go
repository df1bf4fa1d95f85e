// Package upstream talks to the pharmacy reporting API and turns its loosely
// shaped responses into canonical metrics records.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// DefaultBaseURL is the hosted pharmacy API.
const DefaultBaseURL = "https://pharmacy-api-webservice.onrender.com"

const maxBodyBytes = 8 << 20

var (
	// ErrUnauthorized is returned when upstream rejects both auth schemes.
	ErrUnauthorized = errors.New("upstream: unauthorized")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("upstream: not found")
	// ErrMalformed is returned when a response body cannot be decoded.
	ErrMalformed = errors.New("upstream: malformed response")
	// ErrStatus wraps any other non-2xx response.
	ErrStatus = errors.New("upstream: unexpected status")
)

// Observer receives one call per upstream request.
type Observer interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
}

// Config controls the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches business days, targets and pharmacy directories.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	observer Observer
	logger   *slog.Logger
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver records request outcomes.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("upstream: base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BusinessDays returns every record the API holds for the pharmacy in month.
func (c *Client) BusinessDays(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.BusinessDay, error) {
	q := url.Values{}
	q.Set("from", metrics.FormatDate(month.First()))
	q.Set("to", metrics.FormatDate(month.Last()))
	payload, err := c.get(ctx, "days", "/pharmacies/"+strconv.FormatInt(pharmacyID, 10)+"/days", q)
	if err != nil {
		return nil, fmt.Errorf("upstream: days %d %s: %w", pharmacyID, month, err)
	}
	rows, err := decodeRecords(payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: days %d %s: %w", pharmacyID, month, err)
	}
	return NormalizeDays(pharmacyID, rows), nil
}

// Targets returns explicit targets for month. Unauthorised, forbidden and
// missing responses yield an empty set.
func (c *Client) Targets(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.Target, error) {
	q := url.Values{}
	q.Set("month", month.String())
	payload, err := c.get(ctx, "targets", "/admin/pharmacies/"+strconv.FormatInt(pharmacyID, 10)+"/targets", q)
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("upstream: targets %d %s: %w", pharmacyID, month, err)
	}
	targets, err := NormalizeTargets(pharmacyID, payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: targets %d %s: %w", pharmacyID, month, err)
	}
	return targets, nil
}

// Pharmacies lists the stores visible to username.
func (c *Client) Pharmacies(ctx context.Context, username string) ([]metrics.Pharmacy, error) {
	payload, err := c.get(ctx, "pharmacies", "/users/"+url.PathEscape(username)+"/pharmacies", nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: pharmacies %s: %w", username, err)
	}
	rows, err := decodeRecords(payload)
	if err != nil {
		return nil, fmt.Errorf("upstream: pharmacies %s: %w", username, err)
	}
	return NormalizePharmacies(rows), nil
}

type authScheme int

const (
	authBearer authScheme = iota
	authAPIKey
)

// get performs one GET, retrying once with the X-API-Key header when the
// bearer token is rejected.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	start := time.Now()
	payload, status, err := c.do(ctx, path, q, authBearer)
	if err == nil && status == http.StatusUnauthorized {
		c.logger.Debug("upstream bearer rejected, retrying with api key", slog.String("endpoint", endpoint))
		payload, status, err = c.do(ctx, path, q, authAPIKey)
	}
	if err == nil {
		err = statusError(status, payload)
	}
	c.observe(endpoint, outcome(err), time.Since(start))
	return payload, err
}

func (c *Client) do(ctx context.Context, path string, q url.Values, scheme authScheme) ([]byte, int, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		switch scheme {
		case authBearer:
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		case authAPIKey:
			req.Header.Set("X-API-Key", c.apiKey)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return fmt.Errorf("%w %d: %s", ErrStatus, status, snippet)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}

func (c *Client) observe(endpoint, outcome string, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveUpstream(endpoint, outcome, elapsed)
}
