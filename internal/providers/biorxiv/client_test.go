package biorxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const biorxivPage = `{
  "messages": [{"status": "ok", "total": "2", "cursor": 0}],
  "collection": [
    {
      "doi": "10.1101/2024.01.15.575432",
      "title": "CRISPR screening of neuronal differentiation",
      "abstract": "A genome-wide CRISPR screen identifies regulators of neuronal differentiation.",
      "authors": "Nakamura, K; Oyelaran, T; Smith, J",
      "date": "2024-01-16",
      "version": "2",
      "server": "biorxiv"
    },
    {
      "doi": "10.1101/2024.01.20.576001",
      "title": "Plant root architecture modeling",
      "abstract": "Computational models of root growth.",
      "authors": "Gruber, H",
      "date": "2024-01-21",
      "version": "1",
      "server": "biorxiv"
    }
  ]
}`

const medrxivPage = `{
  "messages": [{"status": "ok", "total": "1", "cursor": 0}],
  "collection": [
    {
      "doi": "10.1101/2024.02.01.24301234",
      "title": "CRISPR diagnostics in clinical neuronal assays",
      "abstract": "Clinical evaluation of CRISPR-based diagnostics.",
      "authors": "Alvarez, P; Wong, S",
      "date": "2024-02-02",
      "version": "1",
      "server": "medrxiv"
    }
  ]
}`

func newTestClient(serverURL string) *Client {
	httpClient := providers.NewHTTPClient(providers.HTTPClientConfig{
		Timeout:    5 * time.Second,
		RateLimit:  1000,
		BurstSize:  1000,
		RetryDelay: time.Millisecond,
		UserAgent:  "TestClient/1.0",
	})

	client := NewWithHTTPClient(Config{
		BaseURL: serverURL,
		Enabled: true,
	}, httpClient)
	client.now = func() time.Time {
		return time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	}
	return client
}

func newRxivServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/biorxiv/"):
			w.Write([]byte(biorxivPage))
		case strings.HasPrefix(r.URL.Path, "/medrxiv/"):
			w.Write([]byte(medrxivPage))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	return server, &paths
}

func TestClient_Search(t *testing.T) {
	t.Run("fetches both servers and filters by query", func(t *testing.T) {
		server, paths := newRxivServer(t)
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "CRISPR neuronal",
			Page:    1,
			PerPage: 20,
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		// 60-day window ending at the pinned clock, starting from cursor 0.
		require.Len(t, *paths, 2)
		assert.Equal(t, "/biorxiv/2023-12-12/2024-02-10/0", (*paths)[0])
		assert.Equal(t, "/medrxiv/2023-12-12/2024-02-10/0", (*paths)[1])

		// The root-architecture preprint matches neither query word.
		require.Equal(t, 2, len(result.Records))
		assert.Equal(t, 2, result.TotalCount)

		for _, rec := range result.Records {
			assert.True(t, rec.IsOpenAccess)
			assert.Equal(t, 0, rec.CitedByCount)
		}

		var sources []string
		for _, rec := range result.Records {
			sources = append(sources, rec.Source)
		}
		assert.ElementsMatch(t, []string{domain.SourceBioRxiv, domain.SourceMedRxiv}, sources)
	})

	t.Run("record mapping", func(t *testing.T) {
		server, _ := newRxivServer(t)
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{
			Query: "CRISPR screening differentiation",
		})
		require.NoError(t, err)
		require.NotEmpty(t, result.Records)

		rec := result.Records[0]
		assert.Equal(t, "biorxiv:10.1101/2024.01.15.575432", rec.ID)
		assert.Equal(t, "CRISPR screening of neuronal differentiation", rec.Title)
		assert.Equal(t, "10.1101/2024.01.15.575432", rec.DOI)
		assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2024.01.15.575432", rec.URL)
		assert.Equal(t, "https://www.biorxiv.org/content/10.1101/2024.01.15.575432v2.full.pdf", rec.OpenAccessURL)
		assert.Equal(t, 2024, rec.PublicationYear)
		require.Equal(t, 3, len(rec.Authors))
		assert.Equal(t, "Nakamura, K", rec.Authors[0].Name)
	})

	t.Run("year bounds narrow the window", func(t *testing.T) {
		server, paths := newRxivServer(t)
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "CRISPR",
			YearMin: 2024,
		})
		require.NoError(t, err)

		assert.Equal(t, "/biorxiv/2024-01-01/2024-02-10/0", (*paths)[0])
	})

	t.Run("in-memory pagination", func(t *testing.T) {
		server, _ := newRxivServer(t)
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "CRISPR neuronal",
			Page:    2,
			PerPage: 1,
		})
		require.NoError(t, err)

		assert.Equal(t, 2, result.TotalCount)
		assert.Equal(t, 1, len(result.Records))
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{Query: "CRISPR"})
		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("stops paging when interval exhausted", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			// 150 preprints in the interval: expect exactly two pages
			// per server.
			fmt.Fprintf(w, `{"messages": [{"total": "150"}], "collection": [%s]}`,
				`{"doi": "10.1101/x", "title": "CRISPR", "date": "2024-01-05", "version": "1"}`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{Query: "CRISPR"})
		require.NoError(t, err)
		assert.Equal(t, 4, calls)
	})
}

func TestMatchesQuery(t *testing.T) {
	preprint := &Preprint{
		Title:    "Deep learning for protein folding",
		Abstract: "We train neural networks on structural data.",
	}

	// Half of the query words must appear.
	assert.True(t, matchesQuery(preprint, []string{"protein", "folding"}))
	assert.True(t, matchesQuery(preprint, []string{"protein", "nonsense"}))
	assert.False(t, matchesQuery(preprint, []string{"quantum", "gravity"}))
	assert.True(t, matchesQuery(preprint, nil))
}
