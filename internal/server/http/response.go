package httpserver

import (
	"time"

	"github.com/itsbakr/minerva-library/internal/aggregator"
	"github.com/itsbakr/minerva-library/internal/domain"
)

// Response types for JSON serialization.

type searchResponse struct {
	Query             string                   `json:"query"`
	TotalResults      int                      `json:"total_results"`
	Results           []recordResponse         `json:"results"`
	SearchTime        float64                  `json:"search_time"`
	DatabasesSearched []string                 `json:"databases_searched"`
	ProviderStatus    []providerStatusResponse `json:"provider_status"`
}

type recordResponse struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Authors         []domain.Author `json:"authors"`
	Abstract        string          `json:"abstract,omitempty"`
	PublicationYear int             `json:"publication_year,omitempty"`
	Source          string          `json:"source"`
	DOI             string          `json:"doi,omitempty"`
	URL             string          `json:"url,omitempty"`
	IsOpenAccess    bool            `json:"is_open_access"`
	OpenAccessURL   string          `json:"open_access_url,omitempty"`
	CitedByCount    int             `json:"cited_by_count"`
	RelevanceScore  float64         `json:"relevance_score"`
}

type providerStatusResponse struct {
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	ResultCount     int     `json:"result_count"`
	ResponseSeconds float64 `json:"response_seconds"`
	Error           string  `json:"error,omitempty"`
}

type historyEntryResponse struct {
	ID                string               `json:"id"`
	Query             string               `json:"query"`
	Filters           domain.SearchFilters `json:"filters"`
	ResultsCount      int                  `json:"results_count"`
	SearchTime        float64              `json:"search_time"`
	DatabasesSearched []string             `json:"databases_searched"`
	CreatedAt         time.Time            `json:"created_at"`
}

type historyResponse struct {
	Searches   []historyEntryResponse `json:"searches"`
	TotalCount int                    `json:"total_count"`
}

type statsResponse struct {
	TotalSearches     int64      `json:"total_searches"`
	AverageResults    float64    `json:"average_results"`
	AverageSearchTime float64    `json:"average_search_time"`
	DistinctQueries   int64      `json:"distinct_queries"`
	LastSearchAt      *time.Time `json:"last_search_at,omitempty"`
}

// Converter functions

func aggregatorResultToResponse(query string, result *aggregator.Result, elapsed time.Duration) searchResponse {
	records := make([]recordResponse, len(result.Records))
	for i := range result.Records {
		records[i] = domainRecordToResponse(&result.Records[i])
	}

	statuses := make([]providerStatusResponse, len(result.ProviderStatuses))
	for i, o := range result.ProviderStatuses {
		statuses[i] = providerStatusResponse{
			Name:            o.Name,
			Status:          string(o.Status),
			ResultCount:     o.ResultCount,
			ResponseSeconds: o.ResponseSeconds,
			Error:           o.ErrorMessage,
		}
	}

	return searchResponse{
		Query:             query,
		TotalResults:      result.TotalCount,
		Results:           records,
		SearchTime:        elapsed.Seconds(),
		DatabasesSearched: result.ProviderNames,
		ProviderStatus:    statuses,
	}
}

func domainRecordToResponse(rec *domain.Record) recordResponse {
	authors := rec.Authors
	if authors == nil {
		authors = []domain.Author{}
	}
	return recordResponse{
		ID:              rec.ID,
		Title:           rec.Title,
		Authors:         authors,
		Abstract:        rec.Abstract,
		PublicationYear: rec.PublicationYear,
		Source:          rec.Source,
		DOI:             rec.DOI,
		URL:             rec.URL,
		IsOpenAccess:    rec.IsOpenAccess,
		OpenAccessURL:   rec.OpenAccessURL,
		CitedByCount:    rec.CitedByCount,
		RelevanceScore:  rec.RelevanceScore,
	}
}

func domainHistoryToResponse(entry *domain.SearchHistory) historyEntryResponse {
	databases := entry.DatabasesSearched
	if databases == nil {
		databases = []string{}
	}
	return historyEntryResponse{
		ID:                entry.ID.String(),
		Query:             entry.Query,
		Filters:           entry.Filters,
		ResultsCount:      entry.ResultsCount,
		SearchTime:        entry.SearchTime.Seconds(),
		DatabasesSearched: databases,
		CreatedAt:         entry.CreatedAt,
	}
}

func domainStatsToResponse(stats *domain.SearchStats) statsResponse {
	return statsResponse{
		TotalSearches:     stats.TotalSearches,
		AverageResults:    stats.AverageResults,
		AverageSearchTime: stats.AverageSearchTime.Seconds(),
		DistinctQueries:   stats.DistinctQueries,
		LastSearchAt:      stats.LastSearchAt,
	}
}
