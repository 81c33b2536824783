package agg

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"newsmux/pkg/config"
	"newsmux/pkg/domain"
)

const (
	priorityCategory = "World" // moved to the front of the merged list
	trendingLimit    = 30
)

// frontPageCategories make up the front-page list
var frontPageCategories = map[string]bool{"World": true, "Politics": true}

// Fetcher retrieves feed entries and, for the image fallback, raw pages
type Fetcher interface {
	FetchLimited(ctx context.Context, url string, limit int) ([]*gofeed.Item, error)
	FetchPage(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Aggregator runs one full aggregation cycle: concurrent fetch of every
// configured source, normalization and enrichment per article, dedup, ranking
// and clustering. A single source failing, timing out or parsing to nothing
// never aborts the cycle; it is recorded and the rest proceed.
type Aggregator struct {
	fetcher Fetcher
	sources []domain.Source
	cfg     config.FetchConfig
}

// New creates an aggregator over the configured sources
func New(fetcher Fetcher, sources []domain.Source, cfg config.FetchConfig) *Aggregator {
	return &Aggregator{fetcher: fetcher, sources: sources, cfg: cfg}
}

// sourceResult is one source's contribution collected in completion order
type sourceResult struct {
	source   domain.Source
	articles []domain.Article
}

// Run executes one aggregation cycle and always returns a usable snapshot;
// when every source fails the snapshot is empty with a "0%" success rate
func (a *Aggregator) Run(ctx context.Context) *domain.Snapshot {
	started := time.Now()
	lgr.Printf("[INFO] aggregation cycle started, %d sources", len(a.sources))

	results := make(chan sourceResult, len(a.sources))

	g := &errgroup.Group{}
	g.SetLimit(a.cfg.MaxWorkers)
	for _, src := range a.sources {
		g.Go(func() error {
			// each source gets its own deadline so a slow feed cannot
			// hold up collection of the others
			sctx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
			defer cancel()

			articles, err := a.fetchSource(sctx, src)
			if err != nil {
				lgr.Printf("[WARN] source %s (%s) failed: %v", src.Key, src.Name, err)
				results <- sourceResult{source: src}
				return nil
			}
			results <- sourceResult{source: src, articles: articles}
			return nil
		})
	}
	_ = g.Wait() // tasks swallow their own errors
	close(results)

	// collect in completion order; dedup keeps the first occurrence
	var merged []domain.Article
	seen := map[string]bool{}
	failedNames := map[string]bool{}
	successes, failures := 0, 0

	for res := range results {
		if len(res.articles) == 0 {
			failures++
			failedNames[res.source.Name] = true
			continue
		}
		successes++
		for _, article := range res.articles {
			if seen[article.ID] {
				continue
			}
			seen[article.ID] = true
			merged = append(merged, article)
		}
	}

	// newest first, then the priority category partition
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Published.After(merged[j].Published) })
	merged = prioritizeCategory(merged, priorityCategory)

	snap := &domain.Snapshot{
		Articles:      merged,
		ByCategory:    indexBy(merged, func(a domain.Article) string { return a.Category }),
		BySource:      indexBy(merged, func(a domain.Article) string { return a.Source }),
		Trending:      topTrending(merged, trendingLimit),
		Clusters:      clusterArticles(merged),
		FrontPage:     frontPage(merged),
		FailedSources: sortedNames(failedNames),
		FetchedAt:     time.Now(),
	}
	snap.Stats = buildStats(snap, successes, failures)

	lgr.Printf("[INFO] aggregation cycle done in %v: %d unique articles from %d sources, %d failed",
		time.Since(started).Round(time.Millisecond), len(merged), successes, failures)
	return snap
}

// fetchSource runs the full per-source pipeline: fetch, normalize, enrich
func (a *Aggregator) fetchSource(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	entries, err := a.fetcher.FetchLimited(ctx, src.FeedURL, a.cfg.MaxPerSource)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fallbacksLeft := a.cfg.ImageFallback.MaxPerFeed

	articles := make([]domain.Article, 0, len(entries))
	for _, entry := range entries {
		article, ok := normalize(entry, src, now)
		if !ok {
			continue
		}

		article.Image = extractImage(entry, article.Link)
		if article.Image == "" && fallbacksLeft > 0 && a.fallbackAllowed(src.Key) {
			fallbacksLeft--
			article.Image = a.imageFromPage(ctx, article.Link)
		}

		articles = append(articles, article)
	}

	if len(articles) == 0 {
		return nil, fmt.Errorf("no usable entries in feed %s", src.FeedURL)
	}
	return articles, nil
}

// fallbackAllowed reports whether the source key matches the page fetch
// allow-list; list entries match as substrings of the key
func (a *Aggregator) fallbackAllowed(key string) bool {
	for _, allowed := range a.cfg.ImageFallback.Sources {
		if allowed != "" && strings.Contains(key, allowed) {
			return true
		}
	}
	return false
}

// imageFromPage fetches the article page itself and re-runs the HTML image
// extraction on it; every failure here is swallowed
func (a *Aggregator) imageFromPage(ctx context.Context, link string) string {
	body, err := a.fetcher.FetchPage(ctx, link, a.cfg.ImageFallback.Timeout)
	if err != nil {
		lgr.Printf("[DEBUG] fallback page fetch failed for %s: %v", link, err)
		return ""
	}
	if found := extractImageFromHTML(string(body), link); found != "" {
		return resolveURL(found, link)
	}
	return ""
}

// prioritizeCategory moves articles of the given category to the front,
// ordered by trending score descending then published descending; the rest
// keep their existing relative order
func prioritizeCategory(articles []domain.Article, category string) []domain.Article {
	var priority, others []domain.Article
	for _, a := range articles {
		if a.Category == category {
			priority = append(priority, a)
		} else {
			others = append(others, a)
		}
	}

	sort.SliceStable(priority, func(i, j int) bool {
		if priority[i].TrendingScore != priority[j].TrendingScore {
			return priority[i].TrendingScore > priority[j].TrendingScore
		}
		return priority[i].Published.After(priority[j].Published)
	})

	return append(priority, others...)
}

// topTrending returns the highest scored articles, ties keeping list order
func topTrending(articles []domain.Article, limit int) []domain.Article {
	trending := make([]domain.Article, len(articles))
	copy(trending, articles)
	sort.SliceStable(trending, func(i, j int) bool { return trending[i].TrendingScore > trending[j].TrendingScore })
	if len(trending) > limit {
		trending = trending[:limit]
	}
	return trending
}

// frontPage picks the front-page categories, newest first
func frontPage(articles []domain.Article) []domain.Article {
	var front []domain.Article
	for _, a := range articles {
		if frontPageCategories[a.Category] {
			front = append(front, a)
		}
	}
	sort.SliceStable(front, func(i, j int) bool { return front[i].Published.After(front[j].Published) })
	return front
}

// indexBy groups articles by the given key
func indexBy(articles []domain.Article, key func(domain.Article) string) map[string][]domain.Article {
	index := map[string][]domain.Article{}
	for _, a := range articles {
		index[key(a)] = append(index[key(a)], a)
	}
	return index
}

// sortedNames flattens a name set into a sorted slice, never nil
func sortedNames(names map[string]bool) []string {
	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// buildStats summarizes the cycle
func buildStats(snap *domain.Snapshot, successes, failures int) domain.Stats {
	rate := "0%"
	if successes+failures > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(successes)/float64(successes+failures)*100)
	}
	return domain.Stats{
		TotalArticles:     len(snap.Articles),
		Categories:        len(snap.ByCategory),
		Sources:           len(snap.BySource),
		TrendingCount:     len(snap.Trending),
		Clusters:          len(snap.Clusters),
		LastUpdated:       snap.FetchedAt.Format(time.RFC3339),
		SuccessfulFetches: successes,
		FailedFetches:     failures,
		SuccessRate:       rate,
	}
}
