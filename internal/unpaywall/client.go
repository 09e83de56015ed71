// Package unpaywall looks up open access availability for DOIs.
//
// Unpaywall indexes legal open access copies of scholarly articles keyed by
// DOI. The Client answers single lookups; the Enricher runs the batch pass
// that upgrades closed records after a search, a bounded number of concurrent
// lookups at a time.
//
// API Documentation: https://unpaywall.org/products/api
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const (
	// DefaultBaseURL is the default Unpaywall API base URL.
	DefaultBaseURL = "https://api.unpaywall.org/v2"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout. Lookups are small and
	// keyed, so they time out faster than provider searches.
	DefaultTimeout = 10 * time.Second
)

// Config holds configuration for the Unpaywall client.
type Config struct {
	// BaseURL is the Unpaywall API base URL.
	BaseURL string

	// Email is the contact email Unpaywall requires on every request.
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// Enabled indicates whether enrichment runs at all.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
}

// OAStatus is the open access verdict for one DOI.
type OAStatus struct {
	// IsOA reports whether any legal open access copy is known.
	IsOA bool

	// URL points at the best open access copy, preferring the direct PDF
	// over the landing page.
	URL string

	// Status is Unpaywall's OA color (gold, green, hybrid, bronze, closed).
	Status string
}

// doiResponse is the wire shape of a DOI lookup.
type doiResponse struct {
	DOI            string      `json:"doi"`
	IsOA           bool        `json:"is_oa"`
	OAStatus       string      `json:"oa_status"`
	BestOALocation *oaLocation `json:"best_oa_location"`
}

// oaLocation is one open access copy of an article.
type oaLocation struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	Version   string `json:"version"`
}

// Client queries the Unpaywall API. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient
}

// New creates a new Unpaywall client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := providers.NewHTTPClient(providers.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "MinervaLibrary/1.0 (mailto:" + cfg.Email + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Unpaywall client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// IsEnabled returns whether enrichment is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Lookup fetches the open access status for a DOI. A DOI unknown to Unpaywall
// returns domain.ErrNotFound.
func (c *Client) Lookup(ctx context.Context, doi string) (*OAStatus, error) {
	doi = domain.NormalizeDOI(doi)
	if doi == "" {
		return nil, domain.NewValidationError("doi", "must not be empty")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	// Unpaywall expects the DOI as-is in the path and decodes it itself.
	baseURL.Path = baseURL.Path + "/" + doi

	query := url.Values{}
	query.Set("email", c.config.Email)
	baseURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("doi", doi)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(domain.SourceUnpaywall, resp.StatusCode, string(body), nil)
	}

	var lookupResp doiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&lookupResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	status := &OAStatus{
		IsOA:   lookupResp.IsOA,
		Status: lookupResp.OAStatus,
	}
	if loc := lookupResp.BestOALocation; loc != nil {
		status.URL = loc.URLForPDF
		if status.URL == "" {
			status.URL = loc.URL
		}
	}
	return status, nil
}
