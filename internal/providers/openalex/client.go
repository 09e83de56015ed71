package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 10.
	BurstSize int

	// MaxResults caps how many records one search requests from this source.
	// Zero means no cap beyond the API's own page limit.
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

// Client implements the providers.Provider interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient
}

// Ensure Client implements the Provider interface.
var _ providers.Provider = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
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

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAlex for works matching the given parameters.
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
		return nil, domain.NewExternalAPIError(domain.SourceOpenAlex, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &providers.SearchResult{
		Records:    make([]domain.Record, 0, len(searchResp.Results)),
		TotalCount: searchResp.Meta.Count,
	}
	for i := range searchResp.Results {
		rec, ok := c.workToRecord(&searchResp.Results[i])
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
	return domain.SourceOpenAlex
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

	query := url.Values{}
	query.Set("search", params.Query)

	filters := buildFilters(params)
	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200 // OpenAlex API limit
	}
	if c.config.MaxResults > 0 && perPage > c.config.MaxResults {
		perPage = c.config.MaxResults
	}
	query.Set("per_page", strconv.Itoa(perPage))

	// OpenAlex uses page-based pagination (1-indexed)
	if params.Page > 1 {
		query.Set("page", strconv.Itoa(params.Page))
	}

	// Add mailto for polite pool
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// buildFilters constructs the filter query string components.
func buildFilters(params providers.SearchParams) []string {
	var filters []string

	switch {
	case params.YearMin > 0 && params.YearMax > 0:
		filters = append(filters, fmt.Sprintf("publication_year:%d-%d", params.YearMin, params.YearMax))
	case params.YearMin > 0:
		filters = append(filters, fmt.Sprintf("publication_year:>%d", params.YearMin-1))
	case params.YearMax > 0:
		filters = append(filters, fmt.Sprintf("publication_year:<%d", params.YearMax+1))
	}

	if params.OpenAccessOnly {
		filters = append(filters, "is_oa:true")
	}

	return filters
}

// workToRecord converts an OpenAlex Work to a domain Record.
func (c *Client) workToRecord(work *Work) (domain.Record, bool) {
	if work == nil || (work.ID == "" && work.DOI == "" && work.Title == "" && work.DisplayName == "") {
		return domain.Record{}, false
	}

	title := work.DisplayName
	if title == "" {
		title = work.Title
	}

	authors := make([]domain.Author, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName == "" {
			continue
		}
		author := domain.Author{Name: authorship.Author.DisplayName}
		if len(authorship.Institutions) > 0 {
			author.Affiliation = authorship.Institutions[0].DisplayName
		}
		authors = append(authors, author)
	}

	var isOA bool
	var oaURL string
	if work.OpenAccess != nil {
		isOA = work.OpenAccess.IsOA
		oaURL = work.OpenAccess.OAURL
	}
	if oaURL == "" && work.PrimaryLocation != nil {
		oaURL = work.PrimaryLocation.PDFURL
	}

	doi := domain.NormalizeDOI(work.DOI)

	// Prefer the DOI URL as the landing page, falling back to the
	// OpenAlex work URL.
	pageURL := work.DOI
	if pageURL == "" {
		pageURL = work.ID
	}

	rec := domain.Record{
		ID:              work.ID,
		Title:           title,
		Authors:         authors,
		Abstract:        reconstructAbstract(work.AbstractInvertedIndex),
		PublicationYear: work.PublicationYear,
		Source:          domain.SourceOpenAlex,
		DOI:             doi,
		URL:             pageURL,
		IsOpenAccess:    isOA,
		OpenAccessURL:   oaURL,
		CitedByCount:    work.CitedByCount,
	}
	rec.Sanitize()
	return rec, true
}

// reconstructAbstract reconstructs the abstract text from OpenAlex's inverted
// index format, which maps each word to its positions in the text.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return builder.String()
}
