package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmux/pkg/domain"
)

// fakeStore serves a fixed snapshot and records forced refreshes
type fakeStore struct {
	snap       *domain.Snapshot
	forceCalls int32
}

func (f *fakeStore) Snapshot(_ context.Context, force bool) *domain.Snapshot {
	if force {
		atomic.AddInt32(&f.forceCalls, 1)
	}
	return f.snap
}

func (f *fakeStore) Current() *domain.Snapshot { return f.snap }
func (f *fakeStore) TTL() time.Duration        { return 5 * time.Minute }

type fakeConfig struct{}

func (fakeConfig) GetServerConfig() (string, time.Duration) { return "127.0.0.1:0", 30 * time.Second }

func testSnapshot() *domain.Snapshot {
	published := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{ID: "id1", Title: "World summit opens", Snippet: "leaders meet to discuss trade",
			Source: "BBC News", SourceKey: "bbc_world", Category: "World", Tier: "free",
			Sentiment: domain.SentimentNeutral, Published: published, TrendingScore: 90},
		{ID: "id2", Title: "Election results announced", Snippet: "votes counted overnight",
			Source: "Dawn News", SourceKey: "dawn_politics", Category: "Politics", Tier: "free",
			Sentiment: domain.SentimentPositive, Published: published.Add(-time.Hour), TrendingScore: 70},
		{ID: "id3", Title: "Market closes lower", Snippet: "stocks fall on weak earnings",
			Source: "BBC News", SourceKey: "bbc_business", Category: "Business", Tier: "premium",
			Sentiment: domain.SentimentNegative, Published: published.Add(-2 * time.Hour), TrendingScore: 40},
	}
	return &domain.Snapshot{
		Articles:      articles,
		ByCategory:    map[string][]domain.Article{"World": articles[:1], "Politics": articles[1:2], "Business": articles[2:]},
		BySource:      map[string][]domain.Article{"BBC News": {articles[0], articles[2]}, "Dawn News": {articles[1]}},
		Trending:      []domain.Article{articles[0], articles[1]},
		FrontPage:     articles[:2],
		FailedSources: []string{"Tribune"},
		Stats:         domain.Stats{TotalArticles: 3, Categories: 3, Sources: 2, SuccessRate: "75.0%"},
		FetchedAt:     time.Now().Add(-30 * time.Second),
	}
}

func startTestServer(t *testing.T, store Store) *httptest.Server {
	t.Helper()
	srv := New(fakeConfig{}, store, "test", false)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestServer_Articles(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Articles   []domain.Article `json:"articles"`
		Total      int              `json:"total"`
		Page       int              `json:"page"`
		PerPage    int              `json:"per_page"`
		TotalPages int              `json:"total_pages"`
	}
	resp := getJSON(t, ts.URL+"/api/v1/articles", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, 50, body.PerPage)
	assert.Equal(t, 1, body.TotalPages)
	require.Len(t, body.Articles, 3)
	assert.Equal(t, "World summit opens", body.Articles[0].Title)
}

func TestServer_ArticlesFilters(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	tbl := []struct {
		name  string
		query string
		ids   []string
	}{
		{"by category", "category=World", []string{"id1"}},
		{"by source key", "source=bbc_business", []string{"id3"}},
		{"by sentiment", "sentiment=positive", []string{"id2"}},
		{"by tier", "tier=premium", []string{"id3"}},
		{"combined", "category=Business&tier=premium", []string{"id3"}},
		{"no match", "category=Sports", []string{}},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Articles []domain.Article `json:"articles"`
				Total    int              `json:"total"`
			}
			getJSON(t, ts.URL+"/api/v1/articles?"+tt.query, &body)

			assert.Equal(t, len(tt.ids), body.Total)
			got := make([]string, 0, len(body.Articles))
			for _, a := range body.Articles {
				got = append(got, a.ID)
			}
			assert.Equal(t, tt.ids, got)
		})
	}
}

func TestServer_ArticlesPagination(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Articles   []domain.Article `json:"articles"`
		Total      int              `json:"total"`
		TotalPages int              `json:"total_pages"`
	}
	getJSON(t, ts.URL+"/api/v1/articles?page=2&per_page=2", &body)

	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Articles, 1)
	assert.Equal(t, "id3", body.Articles[0].ID)

	// out of range page yields an empty list, not an error
	getJSON(t, ts.URL+"/api/v1/articles?page=9&per_page=2", &body)
	assert.Empty(t, body.Articles)

	// bad pagination params fall back to defaults
	getJSON(t, ts.URL+"/api/v1/articles?page=zero&per_page=-1", &body)
	assert.Len(t, body.Articles, 3)
}

func TestServer_Trending(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Trending []domain.Article `json:"trending"`
	}
	getJSON(t, ts.URL+"/api/v1/trending", &body)

	require.Len(t, body.Trending, 2)
	assert.Equal(t, "id1", body.Trending[0].ID)
}

func TestServer_ClustersEmptyIsList(t *testing.T) {
	snap := testSnapshot()
	snap.Clusters = nil
	ts := startTestServer(t, &fakeStore{snap: snap})

	resp, err := http.Get(ts.URL + "/api/v1/clusters")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, "[]", string(raw["clusters"]), "nil clusters marshal as an empty list")
}

func TestServer_FrontPage(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Front []domain.Article `json:"front"`
	}
	getJSON(t, ts.URL+"/api/v1/frontpage", &body)

	require.Len(t, body.Front, 2)
	assert.Equal(t, "World", body.Front[0].Category)
	assert.Equal(t, "Politics", body.Front[1].Category)
}

func TestServer_Search(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Results []domain.Article `json:"results"`
		Total   int              `json:"total"`
		Query   string           `json:"query"`
	}
	getJSON(t, ts.URL+"/api/v1/search?q=SUMMIT", &body)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "id1", body.Results[0].ID)
	assert.Equal(t, "summit", body.Query, "query lowercased")

	// matches the snippet too
	getJSON(t, ts.URL+"/api/v1/search?q=stocks+fall", &body)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "id3", body.Results[0].ID)

	getJSON(t, ts.URL+"/api/v1/search?q=nothing+matches+this", &body)
	assert.Equal(t, 0, body.Total)
	assert.NotNil(t, body.Results)
}

func TestServer_SearchEmptyQuery(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body map[string]string
	resp := getJSON(t, ts.URL+"/api/v1/search?q=+++", &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "query required", body["error"])
}

func TestServer_Stats(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var stats domain.Stats
	getJSON(t, ts.URL+"/api/v1/stats", &stats)
	assert.Equal(t, 3, stats.TotalArticles)
	assert.Equal(t, "75.0%", stats.SuccessRate)
}

func TestServer_RefreshForcesCycle(t *testing.T) {
	store := &fakeStore{snap: testSnapshot()}
	ts := startTestServer(t, store)

	var body struct {
		Message       string `json:"message"`
		TotalArticles int    `json:"total_articles"`
	}
	getJSON(t, ts.URL+"/api/v1/refresh", &body)

	assert.Equal(t, "refreshed", body.Message)
	assert.Equal(t, 3, body.TotalArticles)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.forceCalls))
}

func TestServer_Health(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Status        string   `json:"status"`
		CacheAge      float64  `json:"cache_age"`
		CacheTTL      float64  `json:"cache_ttl"`
		TotalArticles int      `json:"total_articles"`
		FailedSources []string `json:"failed_sources"`
	}
	getJSON(t, ts.URL+"/api/v1/health", &body)

	assert.Equal(t, "healthy", body.Status)
	assert.InDelta(t, 30, body.CacheAge, 5)
	assert.Equal(t, 300.0, body.CacheTTL)
	assert.Equal(t, 3, body.TotalArticles)
	assert.Equal(t, []string{"Tribune"}, body.FailedSources)
}

func TestServer_HealthBeforeFirstCycle(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: nil})

	var body struct {
		Status        string   `json:"status"`
		CacheAge      float64  `json:"cache_age"`
		CacheTTL      float64  `json:"cache_ttl"`
		TotalArticles int      `json:"total_articles"`
		FailedSources []string `json:"failed_sources"`
	}
	getJSON(t, ts.URL+"/api/v1/health", &body)

	assert.Equal(t, "healthy", body.Status)
	assert.Zero(t, body.CacheAge)
	assert.Equal(t, 300.0, body.CacheTTL)
	assert.Zero(t, body.TotalArticles)
	assert.Empty(t, body.FailedSources)
}

func TestServer_Status(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	getJSON(t, ts.URL+"/api/v1/status", &body)

	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestServer_Ping(t *testing.T) {
	ts := startTestServer(t, &fakeStore{snap: testSnapshot()})

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
