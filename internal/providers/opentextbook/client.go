package opentextbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const (
	// DefaultBaseURL is the default Open Textbook Library base URL.
	DefaultBaseURL = "https://open.umn.edu/opentextbooks"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheTTL is how long the catalog is served from cache.
	DefaultCacheTTL = time.Hour

	// minWordLen filters very short query words out of catalog matching.
	minWordLen = 3
)

// Config holds configuration for the Open Textbook Library client.
type Config struct {
	// BaseURL is the library base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// CacheTTL is how long a fetched catalog stays valid.
	CacheTTL time.Duration

	// MaxResults caps how many records one search returns after filtering.
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
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// Client implements the providers.Provider interface for the Open Textbook
// Library. The full catalog is cached between searches; a stale cache is
// served when a refresh fails.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient

	mu        sync.Mutex
	catalog   []Textbook
	fetchedAt time.Time

	// now is swapped out in tests to control cache expiry.
	now func() time.Time
}

var _ providers.Provider = (*Client)(nil)

// New creates a new Open Textbook Library client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := providers.NewHTTPClient(providers.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "MinervaLibrary/1.0",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// NewWithHTTPClient creates a new client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Search filters the cached catalog against the query and paginates the
// matches in memory. TotalCount reflects the filtered set.
func (c *Client) Search(ctx context.Context, params providers.SearchParams) (*providers.SearchResult, error) {
	catalog, err := c.fetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	queryWords := queryWords(params.Query)

	var matched []domain.Record
	var skipped int
	for i := range catalog {
		textbook := &catalog[i]
		if !matchesQuery(textbook, queryWords) {
			continue
		}
		rec, ok := textbookToRecord(textbook, c.config.BaseURL)
		if !ok {
			skipped++
			continue
		}
		if params.YearMin > 0 && rec.PublicationYear > 0 && rec.PublicationYear < params.YearMin {
			continue
		}
		if params.YearMax > 0 && rec.PublicationYear > 0 && rec.PublicationYear > params.YearMax {
			continue
		}
		matched = append(matched, rec)
	}

	sortByQueryMatch(matched, queryWords)

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if c.config.MaxResults > 0 && perPage > c.config.MaxResults {
		perPage = c.config.MaxResults
	}
	start := (page - 1) * perPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	return &providers.SearchResult{
		Records:    matched[start:end],
		TotalCount: len(matched),
		Skipped:    skipped,
	}, nil
}

// Name returns the canonical source name.
func (c *Client) Name() string {
	return domain.SourceOpenTextbook
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// fetchCatalog returns the cached catalog, refreshing it when the TTL has
// lapsed. A failed refresh falls back to the stale cache if one exists.
func (c *Client) fetchCatalog(ctx context.Context) ([]Textbook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil && c.now().Sub(c.fetchedAt) < c.config.CacheTTL {
		return c.catalog, nil
	}

	catalog, err := c.downloadCatalog(ctx)
	if err != nil {
		if c.catalog != nil {
			return c.catalog, nil
		}
		return nil, err
	}

	c.catalog = catalog
	c.fetchedAt = c.now()
	return catalog, nil
}

// downloadCatalog fetches the full textbook catalog.
func (c *Client) downloadCatalog(ctx context.Context) ([]Textbook, error) {
	requestURL := c.config.BaseURL + "/textbooks.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
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
		return nil, domain.NewExternalAPIError(domain.SourceOpenTextbook, resp.StatusCode, string(body), nil)
	}

	// The catalog arrives either wrapped in {"data": [...]} or as a bare
	// array. Read once and try both shapes (limit body to 50MB, the whole
	// catalog comes down in one response).
	body, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var wrapped CatalogResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var bare []Textbook
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return bare, nil
}

// queryWords splits a query into lowercase words long enough to match on.
func queryWords(query string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) >= minWordLen {
			words = append(words, word)
		}
	}
	return words
}

// matchesQuery reports whether any query word occurs in the textbook's title,
// description, or subjects.
func matchesQuery(textbook *Textbook, queryWords []string) bool {
	if len(queryWords) == 0 {
		return true
	}

	var sb strings.Builder
	sb.WriteString(textbook.Title)
	sb.WriteByte(' ')
	sb.WriteString(textbook.Description)
	for _, subject := range textbook.Subjects {
		sb.WriteByte(' ')
		sb.WriteString(subject.Name)
	}
	text := strings.ToLower(sb.String())

	for _, word := range queryWords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

// sortByQueryMatch orders records by query overlap, title matches counting
// triple.
func sortByQueryMatch(records []domain.Record, queryWords []string) {
	score := func(rec *domain.Record) int {
		titleLower := strings.ToLower(rec.Title)
		abstractLower := strings.ToLower(rec.Abstract)

		var s int
		for _, word := range queryWords {
			if strings.Contains(titleLower, word) {
				s += 3
			}
			if strings.Contains(abstractLower, word) {
				s++
			}
		}
		return s
	}

	sort.SliceStable(records, func(i, j int) bool {
		return score(&records[i]) > score(&records[j])
	})
}

// textbookToRecord converts a catalog entry to a domain Record.
// Every catalog entry is open access; textbooks carry no DOIs or citation
// counts.
func textbookToRecord(textbook *Textbook, baseURL string) (domain.Record, bool) {
	id := textbook.ID.String()
	if id == "" && textbook.Title == "" {
		return domain.Record{}, false
	}

	authors := make([]domain.Author, 0, len(textbook.Contributors))
	for _, contributor := range textbook.Contributors {
		if contributor.Name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: contributor.Name})
	}

	var year int
	if yearStr := textbook.CopyrightYear.String(); len(yearStr) >= 4 {
		if y, err := strconv.Atoi(yearStr[:4]); err == nil {
			year = y
		}
	}

	pageURL := textbook.URL
	if pageURL == "" {
		pageURL = baseURL + "/textbooks/" + id
	}

	oaURL := textbook.PDFURL
	if oaURL == "" {
		oaURL = textbook.Link
	}
	if oaURL == "" {
		oaURL = pageURL
	}

	rec := domain.Record{
		ID:              "otl:" + id,
		Title:           textbook.Title,
		Authors:         authors,
		Abstract:        textbook.Description,
		PublicationYear: year,
		Source:          domain.SourceOpenTextbook,
		URL:             pageURL,
		IsOpenAccess:    true,
		OpenAccessURL:   oaURL,
	}
	rec.Sanitize()
	return rec, true
}
