// Package providers defines the provider adapter contract and the shared HTTP
// plumbing used by every academic-metadata source.
//
// Each external database (OpenAlex, CrossRef, arXiv, ...) implements the
// Provider interface, translating the common search parameters into its own
// wire format and its response items into domain.Record values. The
// aggregation engine dispatches to all configured providers concurrently.
//
// Example usage:
//
//	p := openalex.New(cfg)
//	result, err := p.Search(ctx, providers.SearchParams{
//		Query:   "climate adaptation",
//		Page:    1,
//		PerPage: 20,
//	})
package providers

import (
	"context"

	"github.com/itsbakr/minerva-library/internal/domain"
)

// SearchParams defines the parameters of one logical search, shared by all
// providers. Each adapter translates these into its own query syntax.
type SearchParams struct {
	// Query is the free-text search query (required).
	Query string

	// Page is the 1-indexed result page.
	Page int

	// PerPage is the number of results requested per page, in [1,100].
	PerPage int

	// YearMin restricts results to works published in or after this year.
	// Zero means no lower bound.
	YearMin int

	// YearMax restricts results to works published in or before this year.
	// Zero means no upper bound.
	YearMax int

	// OpenAccessOnly asks the provider for open-access works only, where
	// the provider supports such a filter. The engine re-applies the filter
	// after merging regardless.
	OpenAccessOnly bool
}

// Offset returns the zero-based item offset implied by Page and PerPage.
func (p SearchParams) Offset() int {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * p.PerPage
}

// SearchResult contains the outcome of one provider search.
type SearchResult struct {
	// Records are the mapped response items. May be empty.
	Records []domain.Record

	// TotalCount is the provider's estimate of the total number of works
	// matching the query, regardless of pagination.
	TotalCount int

	// Skipped counts response items that could not be mapped to a record
	// and were dropped. A non-zero value downgrades the provider outcome
	// from ok to partial.
	Skipped int
}

// Provider is implemented once per external metadata source.
//
// Search must respect context cancellation, apply the source's rate limits,
// and return an error for any fault (network, parse, unexpected shape). The
// dispatcher isolates errors per provider; an adapter never needs to degrade
// its own failures to empty results.
type Provider interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// Name returns the canonical source name used in record Source fields
	// and provider status reports.
	Name() string

	// IsEnabled reports whether this provider participates in dispatches.
	// A provider may be disabled by configuration or a missing API key.
	IsEnabled() bool
}
