package pmc

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
	// DefaultBaseURL is the default NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the default rate limit. NCBI allows 3 requests
	// per second without an API key and 10 with one.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultTool identifies this client to NCBI, as their usage policy
	// requires.
	DefaultTool = "minerva-library"

	// maxPerPage is the largest retmax we send to ESearch.
	maxPerPage = 100
)

// htmlTagPattern strips markup from summary titles.
var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the PMC client.
type Config struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string

	// Email is the maintainer contact sent with every request, as NCBI's
	// usage policy requires.
	Email string

	// Tool is the client identifier sent with every request.
	// Defaults to "minerva-library".
	Tool string

	// APIKey is an optional NCBI API key granting a higher rate limit.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults caps how many records one search requests from this source.
	// Zero means no cap beyond the ESearch retmax limit.
	MaxResults int

	// Enabled indicates whether this source participates in searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Tool == "" {
		c.Tool = DefaultTool
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

// Client implements the providers.Provider interface for PubMed Central.
type Client struct {
	config     Config
	httpClient *providers.HTTPClient
}

var _ providers.Provider = (*Client)(nil)

// New creates a new PMC client with the given configuration.
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
	}
}

// NewWithHTTPClient creates a new PMC client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *providers.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PMC for open access articles matching the given parameters.
// It chains ESearch (term to PMC IDs) and ESummary (IDs to summaries).
func (c *Client) Search(ctx context.Context, params providers.SearchParams) (*providers.SearchResult, error) {
	ids, total, err := c.searchIDs(ctx, params)
	if err != nil {
		return nil, err
	}

	result := &providers.SearchResult{
		Records:    []domain.Record{},
		TotalCount: total,
	}
	if len(ids) == 0 {
		return result, nil
	}

	summaries, err := c.fetchSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}

	result.Records = make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		doc, ok := summaries[id]
		if !ok {
			result.Skipped++
			continue
		}
		rec, ok := docToRecord(doc, id)
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
	return domain.SourcePMC
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// searchIDs runs ESearch and returns the matching PMC IDs plus total count.
func (c *Client) searchIDs(ctx context.Context, params providers.SearchParams) ([]string, int, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = baseURL.Path + "/esearch.fcgi"

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if c.config.MaxResults > 0 && perPage > c.config.MaxResults {
		perPage = c.config.MaxResults
	}

	query := url.Values{}
	query.Set("db", "pmc")
	query.Set("term", buildTerm(params))
	query.Set("retstart", strconv.Itoa(params.Offset()))
	query.Set("retmax", strconv.Itoa(perPage))
	query.Set("retmode", "json")
	query.Set("sort", "relevance")
	c.addIdentification(query)
	baseURL.RawQuery = query.Encode()

	var searchResp ESearchResponse
	if err := c.getJSON(ctx, baseURL.String(), &searchResp); err != nil {
		return nil, 0, err
	}

	total, _ := strconv.Atoi(searchResp.Result.Count)
	return searchResp.Result.IDList, total, nil
}

// fetchSummaries runs ESummary for the given IDs and decodes each document.
func (c *Client) fetchSummaries(ctx context.Context, ids []string) (map[string]*DocSummary, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = baseURL.Path + "/esummary.fcgi"

	query := url.Values{}
	query.Set("db", "pmc")
	query.Set("id", strings.Join(ids, ","))
	query.Set("retmode", "json")
	c.addIdentification(query)
	baseURL.RawQuery = query.Encode()

	var summaryResp ESummaryResponse
	if err := c.getJSON(ctx, baseURL.String(), &summaryResp); err != nil {
		return nil, err
	}

	summaries := make(map[string]*DocSummary, len(ids))
	for _, id := range ids {
		raw, ok := summaryResp.Result[id]
		if !ok {
			continue
		}
		var doc DocSummary
		if err := json.Unmarshal(raw, &doc); err != nil {
			// The "uids" key and other non-document entries are not
			// requested by ID, so a bad document is skipped rather
			// than failing the whole page.
			continue
		}
		summaries[id] = &doc
	}

	return summaries, nil
}

// getJSON executes a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(domain.SourcePMC, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// addIdentification appends the tool/email/api_key parameters NCBI expects.
func (c *Client) addIdentification(query url.Values) {
	query.Set("tool", c.config.Tool)
	if c.config.Email != "" {
		query.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		query.Set("api_key", c.config.APIKey)
	}
}

// buildTerm folds year bounds and the open access filter into the search term
// using PubMed's field-tag syntax.
func buildTerm(params providers.SearchParams) string {
	term := params.Query

	switch {
	case params.YearMin > 0 && params.YearMax > 0:
		term += fmt.Sprintf(" AND %d:%d[pdat]", params.YearMin, params.YearMax)
	case params.YearMin > 0:
		term += fmt.Sprintf(" AND %d:3000[pdat]", params.YearMin)
	case params.YearMax > 0:
		term += fmt.Sprintf(" AND 1900:%d[pdat]", params.YearMax)
	}

	// Restrict to the open access subset.
	term += " AND open access[filter]"
	return term
}

// docToRecord converts an ESummary document to a domain Record.
func docToRecord(doc *DocSummary, pmcID string) (domain.Record, bool) {
	if doc == nil {
		return domain.Record{}, false
	}

	title := strings.TrimSpace(htmlTagPattern.ReplaceAllString(doc.Title, ""))

	authors := make([]domain.Author, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		if a.Name == "" {
			continue
		}
		authors = append(authors, domain.Author{Name: a.Name})
	}

	var year int
	pubDate := doc.PubDate
	if pubDate == "" {
		pubDate = doc.EPubDate
	}
	if len(pubDate) >= 4 {
		if y, err := strconv.Atoi(pubDate[:4]); err == nil {
			year = y
		}
	}

	var doi string
	for _, id := range doc.ArticleIDs {
		if id.IDType == "doi" {
			doi = domain.NormalizeDOI(id.Value)
			break
		}
	}

	pageURL := "https://www.ncbi.nlm.nih.gov/pmc/articles/PMC" + pmcID + "/"
	pdfURL := pageURL + "pdf/"
	if doi != "" {
		pageURL = "https://doi.org/" + doi
	}

	rec := domain.Record{
		ID:              "PMC" + pmcID,
		Title:           title,
		Authors:         authors,
		PublicationYear: year,
		Source:          domain.SourcePMC,
		DOI:             doi,
		URL:             pageURL,
		IsOpenAccess:    true,
		OpenAccessURL:   pdfURL,
	}
	rec.Sanitize()
	return rec, true
}
