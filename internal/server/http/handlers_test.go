package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbakr/minerva-library/internal/aggregator"
	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
	"github.com/itsbakr/minerva-library/internal/repository"
)

// stubEngine captures the params it was called with and returns a canned result.
type stubEngine struct {
	params providers.SearchParams
	result *aggregator.Result
}

func (e *stubEngine) Search(ctx context.Context, params providers.SearchParams) *aggregator.Result {
	e.params = params
	if e.result != nil {
		return e.result
	}
	return &aggregator.Result{
		Records:          []domain.Record{},
		ProviderNames:    []string{},
		ProviderStatuses: []domain.ProviderOutcome{},
	}
}

// stubHistoryRepo is an in-memory SearchHistoryRepository for handler tests.
type stubHistoryRepo struct {
	recorded  chan *domain.SearchHistory
	recordErr error
	entries   []*domain.SearchHistory
	total     int64
	stats     *domain.SearchStats
	filter    repository.HistoryFilter
	err       error
}

func newStubHistoryRepo() *stubHistoryRepo {
	return &stubHistoryRepo{recorded: make(chan *domain.SearchHistory, 1)}
}

func (r *stubHistoryRepo) Record(ctx context.Context, entry *domain.SearchHistory) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.recorded <- entry
	return nil
}

func (r *stubHistoryRepo) Recent(ctx context.Context, filter repository.HistoryFilter) ([]*domain.SearchHistory, int64, error) {
	r.filter = filter
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.entries, r.total, nil
}

func (r *stubHistoryRepo) Stats(ctx context.Context) (*domain.SearchStats, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.stats, nil
}

func newTestServer(engine SearchEngine, repo repository.SearchHistoryRepository) *Server {
	return NewServer(Config{Address: "127.0.0.1:0"}, engine, repo, nil, zerolog.Nop(), nil)
}

func doRequest(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestSearchHandler(t *testing.T) {
	t.Run("returns aggregated results", func(t *testing.T) {
		engine := &stubEngine{result: &aggregator.Result{
			Records: []domain.Record{
				{
					ID:    "W1",
					Title: "Climate Change and Agriculture",
					Authors: []domain.Author{
						{Name: "Alice Smith", Affiliation: "MIT"},
						{Name: "Bob Jones"},
					},
					PublicationYear: 2023,
					Source:          "OpenAlex+CrossRef",
					DOI:             "10.1/x",
					URL:             "https://doi.org/10.1/x",
					IsOpenAccess:    true,
					CitedByCount:    42,
					RelevanceScore:  118,
				},
				{ID: "W2", Title: "Crop Yields", Source: "DOAJ"},
			},
			TotalCount:    2,
			ProviderNames: []string{"OpenAlex", "CrossRef", "DOAJ"},
			ProviderStatuses: []domain.ProviderOutcome{
				{Name: "OpenAlex", Status: domain.StatusOK, ResultCount: 1, ResponseSeconds: 0.4},
				{Name: "CrossRef", Status: domain.StatusOK, ResultCount: 1, ResponseSeconds: 0.6},
				{Name: "DOAJ", Status: domain.StatusPartial, ResultCount: 1, ResponseSeconds: 0.2},
				{Name: "arXiv", Status: domain.StatusError, ErrorMessage: "connection refused"},
			},
		}}
		s := newTestServer(engine, nil)

		rec := doRequest(s, "/api/search?q=climate+change")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp searchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.Equal(t, "climate change", resp.Query)
		assert.Equal(t, 2, resp.TotalResults)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, "W1", resp.Results[0].ID)
		assert.Equal(t, "OpenAlex+CrossRef", resp.Results[0].Source)
		assert.True(t, resp.Results[0].IsOpenAccess)
		assert.Equal(t, []domain.Author{
			{Name: "Alice Smith", Affiliation: "MIT"},
			{Name: "Bob Jones"},
		}, resp.Results[0].Authors)
		// Authors serialize as objects, and a record without authors gets an
		// empty array rather than null.
		assert.Contains(t, rec.Body.String(), `"authors":[{"name":"Alice Smith","affiliation":"MIT"},{"name":"Bob Jones"}]`)
		assert.Contains(t, rec.Body.String(), `"authors":[]`)
		assert.Equal(t, []string{"OpenAlex", "CrossRef", "DOAJ"}, resp.DatabasesSearched)
		require.Len(t, resp.ProviderStatus, 4)
		assert.Equal(t, "error", resp.ProviderStatus[3].Status)
		assert.Equal(t, "connection refused", resp.ProviderStatus[3].Error)
		assert.GreaterOrEqual(t, resp.SearchTime, 0.0)
	})

	t.Run("applies parameter defaults", func(t *testing.T) {
		engine := &stubEngine{}
		s := newTestServer(engine, nil)

		rec := doRequest(s, "/api/search?q=graphene")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "graphene", engine.params.Query)
		assert.Equal(t, 1, engine.params.Page)
		assert.Equal(t, 20, engine.params.PerPage)
		assert.Zero(t, engine.params.YearMin)
		assert.Zero(t, engine.params.YearMax)
		assert.False(t, engine.params.OpenAccessOnly)
	})

	t.Run("passes filters through to the engine", func(t *testing.T) {
		engine := &stubEngine{}
		s := newTestServer(engine, nil)

		rec := doRequest(s, "/api/search?q=graphene&page=2&per_page=50&year_min=2010&year_max=2020&open_access_only=true")
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, 2, engine.params.Page)
		assert.Equal(t, 50, engine.params.PerPage)
		assert.Equal(t, 2010, engine.params.YearMin)
		assert.Equal(t, 2020, engine.params.YearMax)
		assert.True(t, engine.params.OpenAccessOnly)
	})

	t.Run("rejects invalid parameters", func(t *testing.T) {
		tests := []struct {
			name    string
			target  string
			message string
		}{
			{"missing query", "/api/search", "q is required"},
			{"page zero", "/api/search?q=x&page=0", "page must be at least 1"},
			{"page not a number", "/api/search?q=x&page=abc", "page must be an integer"},
			{"per_page too large", "/api/search?q=x&per_page=500", "per_page must be between 1 and 100"},
			{"year_max before year_min", "/api/search?q=x&year_min=2020&year_max=2010", "year bounds"},
			{"bad boolean", "/api/search?q=x&open_access_only=maybe", "open_access_only must be a boolean"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := newTestServer(&stubEngine{}, nil)
				rec := doRequest(s, tt.target)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, rec.Body.String(), tt.message)
			})
		}
	})

	t.Run("records search history asynchronously", func(t *testing.T) {
		engine := &stubEngine{result: &aggregator.Result{
			Records:          []domain.Record{{ID: "W1", Title: "Graphene"}},
			TotalCount:       1,
			ProviderNames:    []string{"OpenAlex"},
			ProviderStatuses: []domain.ProviderOutcome{{Name: "OpenAlex", Status: domain.StatusOK, ResultCount: 1}},
		}}
		repo := newStubHistoryRepo()
		s := newTestServer(engine, repo)

		rec := doRequest(s, "/api/search?q=graphene&open_access_only=true")
		require.Equal(t, http.StatusOK, rec.Code)

		select {
		case entry := <-repo.recorded:
			assert.Equal(t, "graphene", entry.Query)
			assert.Equal(t, 1, entry.ResultsCount)
			assert.Equal(t, []string{"OpenAlex"}, entry.DatabasesSearched)
			assert.True(t, entry.Filters.OpenAccessOnly)
			assert.Equal(t, 20, entry.Filters.PerPage)
			assert.NotEmpty(t, entry.ClientIP)
		case <-time.After(2 * time.Second):
			t.Fatal("history entry was never recorded")
		}
	})

	t.Run("history write failure does not affect the response", func(t *testing.T) {
		repo := newStubHistoryRepo()
		repo.recordErr = errors.New("connection refused")
		s := newTestServer(&stubEngine{}, repo)

		rec := doRequest(s, "/api/search?q=graphene")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHistoryHandler(t *testing.T) {
	t.Run("returns recent searches", func(t *testing.T) {
		repo := newStubHistoryRepo()
		entry := domain.NewSearchHistory("machine learning", domain.SearchFilters{Page: 1, PerPage: 20})
		entry.ResultsCount = 42
		entry.SearchTime = 1800 * time.Millisecond
		entry.DatabasesSearched = []string{"OpenAlex", "CrossRef"}
		repo.entries = []*domain.SearchHistory{entry}
		repo.total = 1

		s := newTestServer(&stubEngine{}, repo)
		rec := doRequest(s, "/api/history")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp historyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.TotalCount)
		require.Len(t, resp.Searches, 1)
		assert.Equal(t, "machine learning", resp.Searches[0].Query)
		assert.Equal(t, 42, resp.Searches[0].ResultsCount)
		assert.InDelta(t, 1.8, resp.Searches[0].SearchTime, 0.001)
		assert.Equal(t, []string{"OpenAlex", "CrossRef"}, resp.Searches[0].DatabasesSearched)

		assert.Equal(t, defaultHistoryLimit, repo.filter.Limit)
	})

	t.Run("clamps limit to maximum", func(t *testing.T) {
		repo := newStubHistoryRepo()
		s := newTestServer(&stubEngine{}, repo)

		rec := doRequest(s, "/api/history?limit=500")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxHistoryLimit, repo.filter.Limit)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		s := newTestServer(&stubEngine{}, newStubHistoryRepo())

		rec := doRequest(s, "/api/history?limit=0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("passes query filter through", func(t *testing.T) {
		repo := newStubHistoryRepo()
		s := newTestServer(&stubEngine{}, repo)

		rec := doRequest(s, "/api/history?q=graphene")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "graphene", repo.filter.QueryContains)
	})

	t.Run("returns 503 when history is unavailable", func(t *testing.T) {
		s := newTestServer(&stubEngine{}, nil)

		rec := doRequest(s, "/api/history")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("maps repository errors", func(t *testing.T) {
		repo := newStubHistoryRepo()
		repo.err = errors.New("connection refused")
		s := newTestServer(&stubEngine{}, repo)

		rec := doRequest(s, "/api/history")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestStatsHandler(t *testing.T) {
	t.Run("returns aggregate stats", func(t *testing.T) {
		lastSearch := time.Now().UTC()
		repo := newStubHistoryRepo()
		repo.stats = &domain.SearchStats{
			TotalSearches:     120,
			AverageResults:    34.5,
			AverageSearchTime: 1250 * time.Millisecond,
			DistinctQueries:   87,
			LastSearchAt:      &lastSearch,
		}

		s := newTestServer(&stubEngine{}, repo)
		rec := doRequest(s, "/api/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp statsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(120), resp.TotalSearches)
		assert.InDelta(t, 34.5, resp.AverageResults, 0.001)
		assert.InDelta(t, 1.25, resp.AverageSearchTime, 0.001)
		assert.Equal(t, int64(87), resp.DistinctQueries)
		require.NotNil(t, resp.LastSearchAt)
	})

	t.Run("returns 503 when history is unavailable", func(t *testing.T) {
		s := newTestServer(&stubEngine{}, nil)

		rec := doRequest(s, "/api/stats")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("healthz reports liveness", func(t *testing.T) {
		s := newTestServer(&stubEngine{}, nil)

		rec := doRequest(s, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("readyz fails without a database", func(t *testing.T) {
		s := newTestServer(&stubEngine{}, nil)

		rec := doRequest(s, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_ready")
	})
}
