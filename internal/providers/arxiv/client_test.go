package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsbakr/minerva-library/internal/domain"
	"github.com/itsbakr/minerva-library/internal/providers"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/">
  <opensearch:totalResults>347</opensearch:totalResults>
  <opensearch:startIndex>0</opensearch:startIndex>
  <opensearch:itemsPerPage>2</opensearch:itemsPerPage>
  <entry>
    <id>http://arxiv.org/abs/2301.12345v2</id>
    <title>Attention  Is
      All You Need, Revisited</title>
    <summary>
      We revisit the attention mechanism
      in modern transformer architectures.
    </summary>
    <published>2023-01-15T18:30:00Z</published>
    <author><name>Grace Hopper</name></author>
    <author><name>Alan Kay</name></author>
    <link rel="alternate" type="text/html" href="http://arxiv.org/abs/2301.12345v2"/>
    <link title="pdf" type="application/pdf" href="http://arxiv.org/pdf/2301.12345v2"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/hep-th/9901001v1</id>
    <title>Old Style Identifier</title>
    <summary>Legacy identifier format.</summary>
    <published>1999-01-04T09:00:00Z</published>
    <author><name>Old Timer</name></author>
  </entry>
</feed>`

func newTestClient(serverURL string) *Client {
	httpClient := providers.NewHTTPClient(providers.HTTPClientConfig{
		Timeout:   5 * time.Second,
		RateLimit: 100,
		BurstSize: 100,
		UserAgent: "TestClient/1.0",
	})

	return NewWithHTTPClient(Config{
		BaseURL: serverURL,
		Enabled: true,
	}, httpClient)
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/query", r.URL.Path)
			assert.Equal(t, "all:transformers", r.URL.Query().Get("search_query"))
			assert.Equal(t, "20", r.URL.Query().Get("max_results"))
			assert.Equal(t, "submittedDate", r.URL.Query().Get("sortBy"))

			w.Header().Set("Content-Type", "application/atom+xml")
			w.Write([]byte(sampleFeed))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "transformers",
			Page:    1,
			PerPage: 20,
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, 347, result.TotalCount)
		require.Equal(t, 2, len(result.Records))

		rec := result.Records[0]
		assert.Equal(t, "arxiv:2301.12345", rec.ID)
		assert.Equal(t, "Attention Is All You Need, Revisited", rec.Title)
		assert.Equal(t, "We revisit the attention mechanism in modern transformer architectures.", rec.Abstract)
		assert.Equal(t, 2023, rec.PublicationYear)
		assert.Equal(t, domain.SourceArXiv, rec.Source)
		assert.True(t, rec.IsOpenAccess)
		assert.Equal(t, "http://arxiv.org/abs/2301.12345v2", rec.URL)
		assert.Equal(t, "http://arxiv.org/pdf/2301.12345v2", rec.OpenAccessURL)
		assert.Equal(t, 0, rec.CitedByCount)
		require.Equal(t, 2, len(rec.Authors))
		assert.Equal(t, "Grace Hopper", rec.Authors[0].Name)

		// Legacy identifier with a category prefix.
		rec2 := result.Records[1]
		assert.Equal(t, "arxiv:hep-th/9901001", rec2.ID)
		assert.Equal(t, "https://arxiv.org/pdf/hep-th/9901001.pdf", rec2.OpenAccessURL)
		assert.Equal(t, 1999, rec2.PublicationYear)
	})

	t.Run("year filter in search query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query().Get("search_query")
			assert.Equal(t, "all:transformers AND submittedDate:[202001010000 TO 202312312359]", q)

			w.Write([]byte(sampleFeed))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "transformers",
			YearMin: 2020,
			YearMax: 2023,
		})
		require.NoError(t, err)
	})

	t.Run("pagination sets start", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "40", r.URL.Query().Get("start"))
			w.Write([]byte(sampleFeed))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{
			Query:   "transformers",
			Page:    3,
			PerPage: 20,
		})
		require.NoError(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		result, err := client.Search(context.Background(), providers.SearchParams{Query: "transformers"})
		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("malformed XML", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not xml"))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.Search(context.Background(), providers.SearchParams{Query: "transformers"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding response")
	})
}

func TestExtractArXivID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://arxiv.org/abs/2301.12345v1", "2301.12345"},
		{"http://arxiv.org/abs/2301.12345", "2301.12345"},
		{"http://arxiv.org/abs/hep-th/9901001v3", "hep-th/9901001"},
		{"https://example.com/not-arxiv", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractArXivID(tt.input), "input %q", tt.input)
	}
}

func TestBuildDateFilter(t *testing.T) {
	assert.Equal(t, "", buildDateFilter(0, 0))
	assert.Equal(t, "submittedDate:[202001010000 TO *]", buildDateFilter(2020, 0))
	assert.Equal(t, "submittedDate:[* TO 202212312359]", buildDateFilter(0, 2022))
	assert.Equal(t, "submittedDate:[201501010000 TO 202512312359]", buildDateFilter(2015, 2025))
}
