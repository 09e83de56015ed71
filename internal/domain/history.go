package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchFilters captures the optional constraints of one search request, for
// persistence alongside the query text.
type SearchFilters struct {
	Page           int  `json:"page"`
	PerPage        int  `json:"per_page"`
	YearMin        int  `json:"year_min,omitempty"`
	YearMax        int  `json:"year_max,omitempty"`
	OpenAccessOnly bool `json:"open_access_only,omitempty"`
}

// SearchHistory is one persisted search: the query, its filters, and the
// outcome summary. Written after every API search, read back by the history
// and stats endpoints.
type SearchHistory struct {
	ID                uuid.UUID
	Query             string
	Filters           SearchFilters
	ResultsCount      int
	SearchTime        time.Duration
	DatabasesSearched []string
	ClientIP          string
	CreatedAt         time.Time
}

// NewSearchHistory creates a history entry with a fresh ID and timestamp.
func NewSearchHistory(query string, filters SearchFilters) *SearchHistory {
	return &SearchHistory{
		ID:        uuid.New(),
		Query:     query,
		Filters:   filters,
		CreatedAt: time.Now().UTC(),
	}
}

// SearchStats is the read-only aggregate over all persisted searches.
type SearchStats struct {
	TotalSearches     int64
	AverageResults    float64
	AverageSearchTime time.Duration
	DistinctQueries   int64
	LastSearchAt      *time.Time
}
