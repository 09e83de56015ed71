package biorxiv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const (
	// DefaultBaseURL is the default Rxiv details API base URL.
	DefaultBaseURL = "https://api.biorxiv.org/details"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultWindowDays is how far back the posting window reaches when no
	// year filter narrows it.
	DefaultWindowDays = 60

	// DefaultMaxFetch caps how many preprints are pulled per server before
	// client-side filtering.
	DefaultMaxFetch = 500

	// pageSize is the fixed page size of the details endpoint.
	pageSize = 100
)

// servers are the Rxiv servers queried, with their canonical source names
// and web domains.
var servers = []struct {
	slug   string
	source string
	domain string
}{
	{"biorxiv", domain.SourceBioRxiv, "www.biorxiv.org"},
	{"medrxiv", domain.SourceMedRxiv, "www.medrxiv.org"},
}

// Config holds configuration for the bioRxiv/medRxiv client.
type Config struct {
	// BaseURL is the details API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// WindowDays is the length of the posting window fetched per search.
	WindowDays int

	// MaxFetch caps the number of preprints fetched per server.
	MaxFetch int

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
	if c.WindowDays == 0 {
		c.WindowDays = DefaultWindowDays
	}
	if c.MaxFetch == 0 {
		c.MaxFetch = DefaultMaxFetch
	}
}

// Client implements the providers.Provider interface for bioRxiv and medRxiv.
// Both servers are searched on every dispatch.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient

	// now is swapped out in tests to pin the posting window.
	now func() time.Time
}

var _ providers.Provider = (*Client)(nil)

// New creates a new Rxiv client with the given configuration.
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

// NewWithHTTPClient creates a new Rxiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Search fetches recent preprints from both servers and filters them against
// the query client-side. TotalCount reflects the filtered set, not the whole
// archive.
func (c *Client) Search(ctx context.Context, params providers.SearchParams) (*providers.SearchResult, error) {
	interval := c.interval(params)

	var all []domain.Record
	var skipped int
	for _, server := range servers {
		records, serverSkipped, err := c.fetchAndFilter(ctx, server.slug, server.source, server.domain, interval, params)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		skipped += serverSkipped
	}

	sortByQueryMatch(all, params.Query)

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
	if start > len(all) {
		start = len(all)
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}

	return &providers.SearchResult{
		Records:    all[start:end],
		TotalCount: len(all),
		Skipped:    skipped,
	}, nil
}

// Name returns the canonical source name.
func (c *Client) Name() string {
	return domain.SourceBioRxiv
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// interval computes the posting window, narrowed by any year bounds.
func (c *Client) interval(params providers.SearchParams) string {
	end := c.now()
	start := end.AddDate(0, 0, -c.config.WindowDays)

	if params.YearMin > 0 {
		filterStart := time.Date(params.YearMin, 1, 1, 0, 0, 0, 0, time.UTC)
		if filterStart.After(start) {
			start = filterStart
		}
	}
	if params.YearMax > 0 {
		filterEnd := time.Date(params.YearMax, 12, 31, 0, 0, 0, 0, time.UTC)
		if filterEnd.Before(end) {
			end = filterEnd
		}
	}

	return start.Format("2006-01-02") + "/" + end.Format("2006-01-02")
}

// fetchAndFilter pages through one server's posting window, keeping preprints
// that match the query and pass the year bounds.
func (c *Client) fetchAndFilter(ctx context.Context, slug, source, webDomain, interval string, params providers.SearchParams) ([]domain.Record, int, error) {
	queryLower := strings.ToLower(params.Query)
	queryWords := strings.Fields(queryLower)

	var records []domain.Record
	var skipped int
	for cursor := 0; cursor < c.config.MaxFetch; cursor += pageSize {
		requestURL := fmt.Sprintf("%s/%s/%s/%d", c.config.BaseURL, slug, interval, cursor)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, 0, fmt.Errorf("executing request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			resp.Body.Close()
			return nil, 0, domain.NewExternalAPIError(source, resp.StatusCode, string(body), nil)
		}

		var detailsResp DetailsResponse
		err = json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&detailsResp)
		resp.Body.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("decoding response: %w", err)
		}

		if len(detailsResp.Collection) == 0 {
			break
		}

		for i := range detailsResp.Collection {
			preprint := &detailsResp.Collection[i]
			if !matchesQuery(preprint, queryWords) {
				continue
			}
			rec, ok := preprintToRecord(preprint, slug, source, webDomain)
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
			records = append(records, rec)
		}

		if len(records) >= c.config.MaxFetch {
			break
		}
		if total, ok := intervalTotal(&detailsResp); ok && cursor+pageSize >= total {
			break
		}
	}

	return records, skipped, nil
}

// intervalTotal extracts the total preprint count for the interval.
func intervalTotal(resp *DetailsResponse) (int, bool) {
	if len(resp.Messages) == 0 {
		return 0, false
	}
	total, err := strconv.Atoi(resp.Messages[0].Total)
	if err != nil {
		return 0, false
	}
	return total, true
}

// matchesQuery reports whether at least half of the query words occur in the
// preprint's title or abstract.
func matchesQuery(preprint *Preprint, queryWords []string) bool {
	if len(queryWords) == 0 {
		return true
	}
	text := strings.ToLower(preprint.Title + " " + preprint.Abstract)

	matches := 0
	for _, word := range queryWords {
		if strings.Contains(text, word) {
			matches++
		}
	}
	required := len(queryWords) / 2
	if required < 1 {
		required = 1
	}
	return matches >= required
}

// sortByQueryMatch orders records by a simple query-overlap score, title
// matches counting double, with a small boost for recent postings.
func sortByQueryMatch(records []domain.Record, query string) {
	queryWords := strings.Fields(strings.ToLower(query))

	score := func(rec *domain.Record) float64 {
		titleLower := strings.ToLower(rec.Title)
		abstractLower := strings.ToLower(rec.Abstract)

		var s float64
		for _, word := range queryWords {
			if strings.Contains(titleLower, word) {
				s += 2
			}
			if strings.Contains(abstractLower, word) {
				s++
			}
		}
		switch {
		case rec.PublicationYear >= 2024:
			s++
		case rec.PublicationYear >= 2023:
			s += 0.5
		}
		return s
	}

	sort.SliceStable(records, func(i, j int) bool {
		return score(&records[i]) > score(&records[j])
	})
}

// preprintToRecord converts a preprint to a domain Record.
// All Rxiv preprints are open access; the API reports no citation counts.
func preprintToRecord(preprint *Preprint, slug, source, webDomain string) (domain.Record, bool) {
	doi := domain.NormalizeDOI(preprint.DOI)
	if doi == "" {
		return domain.Record{}, false
	}

	var authors []domain.Author
	for _, name := range strings.Split(preprint.Authors, ";") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: name})
	}

	var year int
	if t, err := time.Parse("2006-01-02", preprint.Date); err == nil {
		year = t.Year()
	}

	version := preprint.Version
	if version == "" {
		version = "1"
	}

	rec := domain.Record{
		ID:              slug + ":" + doi,
		Title:           strings.TrimSpace(preprint.Title),
		Authors:         authors,
		Abstract:        strings.TrimSpace(preprint.Abstract),
		PublicationYear: year,
		Source:          source,
		DOI:             doi,
		URL:             "https://" + webDomain + "/content/" + doi,
		IsOpenAccess:    true,
		OpenAccessURL:   "https://" + webDomain + "/content/" + doi + "v" + version + ".full.pdf",
	}
	rec.Sanitize()
	return rec, true
}
