package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const (
	// DefaultBaseURL is the default CrossRef API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// CrossRef asks polite-pool users (with mailto) to stay around 50 req/s;
	// we default far below that.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second
)

// htmlTagPattern matches markup embedded in CrossRef abstracts, which are
// frequently JATS XML fragments.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the CrossRef client.
type Config struct {
	// BaseURL is the CrossRef API base URL.
	// Defaults to https://api.crossref.org
	BaseURL string

	// Email is the contact email sent as the mailto parameter.
	// Providing it routes requests through CrossRef's polite pool.
	Email string

	// Timeout is the request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second. Defaults to 5.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed. Defaults to 5.
	BurstSize int

	// MaxResults caps how many records one search requests from this source.
	// Zero means no cap.
	MaxResults int

	// Enabled indicates whether this source participates in searches.
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

// Client implements the providers.Provider interface for CrossRef.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient
}

var _ providers.Provider = (*Client)(nil)

// New creates a new CrossRef client with the given configuration.
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

// NewWithHTTPClient creates a new CrossRef client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries CrossRef for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params providers.SearchParams) (*providers.SearchResult, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(domain.SourceCrossRef, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &providers.SearchResult{
		Records:    make([]domain.Record, 0, len(searchResp.Message.Items)),
		TotalCount: searchResp.Message.TotalResults,
	}
	for i := range searchResp.Message.Items {
		rec, ok := workToRecord(&searchResp.Message.Items[i])
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// Name returns the canonical source name.
func (c *Client) Name() string {
	return domain.SourceCrossRef
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the works search URL with query parameters.
func (c *Client) buildSearchURL(params providers.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if c.config.MaxResults > 0 && perPage > c.config.MaxResults {
		perPage = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("rows", strconv.Itoa(perPage))
	query.Set("offset", strconv.Itoa(params.Offset()))

	var filters []string
	if params.YearMin > 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%d", params.YearMin))
	}
	if params.YearMax > 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%d", params.YearMax))
	}
	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// workToRecord converts a CrossRef Work to a domain Record.
//
// CrossRef does not report open access status; records are left closed and
// picked up by the Unpaywall enrichment pass when they carry a DOI.
func workToRecord(work *Work) (domain.Record, bool) {
	if work == nil || (work.DOI == "" && len(work.Title) == 0) {
		return domain.Record{}, false
	}

	var title string
	if len(work.Title) > 0 {
		title = work.Title[0]
	}

	authors := make([]domain.Author, 0, len(work.Author))
	for _, a := range work.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			continue
		}
		author := domain.Author{Name: name}
		if len(a.Affiliation) > 0 {
			author.Affiliation = a.Affiliation[0].Name
		}
		authors = append(authors, author)
	}

	// First available of print date, online date, deposit date.
	year := work.PublishedPrint.Year()
	if year == 0 {
		year = work.PublishedOnline.Year()
	}
	if year == 0 {
		year = work.Created.Year()
	}

	doi := domain.NormalizeDOI(work.DOI)

	var pageURL string
	if doi != "" {
		pageURL = "https://doi.org/" + doi
	}

	rec := domain.Record{
		ID:              doi,
		Title:           title,
		Authors:         authors,
		Abstract:        cleanHTML(work.Abstract),
		PublicationYear: year,
		Source:          domain.SourceCrossRef,
		DOI:             doi,
		URL:             pageURL,
		CitedByCount:    work.ReferencedBy,
	}
	rec.Sanitize()
	return rec, true
}

// cleanHTML strips markup tags and collapses whitespace.
func cleanHTML(text string) string {
	if text == "" {
		return ""
	}
	clean := htmlTagPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(clean), " ")
}
