package domain

import "time"

// Sentiment is the heuristic tone classification of an article
type Sentiment string

// sentiment values
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Source represents one configured feed with its metadata.
// Sources are loaded from config at startup and never change afterwards.
type Source struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	FeedURL  string `json:"feed"`
	Logo     string `json:"logo"`
	Tier     string `json:"tier"`
	Category string `json:"category"`
}

// Article is the canonical aggregated news item. It is built once per fetch
// cycle from a raw feed entry and immutable after creation; the whole set is
// discarded and rebuilt on every cache refresh.
type Article struct {
	ID            string    `json:"id"` // fingerprint of title+link, dedup key
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Snippet       string    `json:"snippet"`
	Image         string    `json:"image,omitempty"`
	Source        string    `json:"source"`
	SourceKey     string    `json:"source_key"`
	SourceLogo    string    `json:"source_logo"`
	Category      string    `json:"category"`
	Tier          string    `json:"tier"`
	Published     time.Time `json:"published"`
	FetchedAt     time.Time `json:"fetched_at"`
	Sentiment     Sentiment `json:"sentiment"`
	TrendingScore float64   `json:"trending_score"`
}

// Cluster groups near-duplicate coverage of the same story. Count includes
// the main article.
type Cluster struct {
	MainArticle Article   `json:"main_article"`
	Related     []Article `json:"related"`
	Count       int       `json:"count"`
}

// Stats summarizes one aggregation cycle
type Stats struct {
	TotalArticles     int    `json:"total_articles"`
	Categories        int    `json:"categories"`
	Sources           int    `json:"sources"`
	TrendingCount     int    `json:"trending_count"`
	Clusters          int    `json:"clusters"`
	LastUpdated       string `json:"last_updated"`
	SuccessfulFetches int    `json:"successful_fetches"`
	FailedFetches     int    `json:"failed_fetches"`
	SuccessRate       string `json:"success_rate"`
}

// Snapshot is the full result of one aggregation cycle. It is immutable after
// construction and swapped atomically in the cache, so readers never observe
// a partially updated state.
type Snapshot struct {
	Articles      []Article            `json:"articles"`
	ByCategory    map[string][]Article `json:"by_category"`
	BySource      map[string][]Article `json:"by_source"`
	Trending      []Article            `json:"trending"`
	Clusters      []Cluster            `json:"clusters"`
	FrontPage     []Article            `json:"front_page"`
	FailedSources []string             `json:"failed_sources"`
	Stats         Stats                `json:"stats"`
	FetchedAt     time.Time            `json:"fetched_at"`
}

// Age returns how long ago the snapshot was built
func (s *Snapshot) Age() time.Duration {
	if s == nil {
		return 0
	}
	return time.Since(s.FetchedAt)
}
