package crossref

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

func newTestClient(serverURL string) *Client {
	cfg := Config{
		BaseURL:   serverURL,
		Email:     "test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 100,
		BurstSize: 100,
		Enabled:   true,
	}

	httpClient := providers.NewHTTPClient(providers.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "TestClient/1.0",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

func sampleSearchResponse() SearchResponse {
	return SearchResponse{
		Status: "ok",
		Message: Message{
			TotalResults: 412,
			Items: []Work{
				{
					DOI:   "10.1145/3297280.3297641",
					Title: []string{"Streaming Graph Partitioning"},
					Abstract: "<jats:p>We study <jats:italic>streaming</jats:italic> partitioning " +
						"of large graphs.</jats:p>",
					Author: []Author{
						{Given: "Maria", Family: "Petrov", Affiliation: []Affiliation{{Name: "TU Wien"}}},
						{Given: "Li", Family: "Chen"},
					},
					PublishedPrint: &Date{DateParts: [][]int{{2019, 4, 8}}},
					ReferencedBy:   87,
				},
				{
					DOI:             "10.5555/12345",
					Title:           []string{"Untitled Draft"},
					PublishedOnline: &Date{DateParts: [][]int{{2021}}},
				},
			},
		},
	}
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/works", r.URL.Path)
			assert.Equal(t, "graph partitioning", r.URL.Query().Get("query"))
			assert.Equal(t, "20", r.URL.Query().Get("rows"))
			assert.Equal(t, "0", r.URL.Query().Get("offset"))
			assert.Equal(t, "test@example.com", r.URL.Query().Get("mailto"))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sampleSearchResponse())
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "graph partitioning",
			Page:    1,
			PerPage: 20,
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, 412, result.TotalCount)
		require.Equal(t, 2, len(result.Records))

		rec := result.Records[0]
		assert.Equal(t, "10.1145/3297280.3297641", rec.ID)
		assert.Equal(t, "10.1145/3297280.3297641", rec.DOI)
		assert.Equal(t, "Streaming Graph Partitioning", rec.Title)
		assert.Equal(t, "https://doi.org/10.1145/3297280.3297641", rec.URL)
		assert.Equal(t, 2019, rec.PublicationYear)
		assert.Equal(t, 87, rec.CitedByCount)
		assert.Equal(t, domain.SourceCrossRef, rec.Source)
		assert.False(t, rec.IsOpenAccess)

		// Markup stripped from the JATS abstract.
		assert.Equal(t, "We study streaming partitioning of large graphs.", rec.Abstract)

		require.Equal(t, 2, len(rec.Authors))
		assert.Equal(t, "Maria Petrov", rec.Authors[0].Name)
		assert.Equal(t, "TU Wien", rec.Authors[0].Affiliation)
		assert.Equal(t, "Li Chen", rec.Authors[1].Name)
	})

	t.Run("pagination offset", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "40", r.URL.Query().Get("offset"))
			assert.Equal(t, "20", r.URL.Query().Get("rows"))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sampleSearchResponse())
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "graphs",
			Page:    3,
			PerPage: 20,
		})
		require.NoError(t, err)
	})

	t.Run("year filters", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "from-pub-date:2018,until-pub-date:2022", r.URL.Query().Get("filter"))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sampleSearchResponse())
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "graphs",
			YearMin: 2018,
			YearMax: 2022,
		})
		require.NoError(t, err)
	})

	t.Run("placeholder author when none listed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sampleSearchResponse())
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{Query: "graphs"})
		require.NoError(t, err)

		rec := result.Records[1]
		require.Equal(t, 1, len(rec.Authors))
		assert.Equal(t, domain.PlaceholderAuthor, rec.Authors[0].Name)
		assert.Equal(t, 2021, rec.PublicationYear)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad filter"))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{Query: "graphs"})
		require.Error(t, err)
		assert.Nil(t, result)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, domain.SourceCrossRef, apiErr.Source)
	})
}

func TestDateYear(t *testing.T) {
	assert.Equal(t, 0, (*Date)(nil).Year())
	assert.Equal(t, 0, (&Date{}).Year())
	assert.Equal(t, 0, (&Date{DateParts: [][]int{{}}}).Year())
	assert.Equal(t, 2020, (&Date{DateParts: [][]int{{2020, 6}}}).Year())
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "", cleanHTML(""))
	assert.Equal(t, "plain text", cleanHTML("plain   text"))
	assert.Equal(t, "bold and italic", cleanHTML("<b>bold</b> and <i>italic</i>"))
}
