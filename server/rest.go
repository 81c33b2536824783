package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsmux/pkg/domain"
)

const (
	defaultPerPage = 50
	frontPageLimit = 50
)

// articlesHandler serves the filtered, paginated article list.
// Filters: category, source (key), sentiment, tier; pagination: page, per_page.
func (s *Server) articlesHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)

	articles := snap.Articles
	if category := r.URL.Query().Get("category"); category != "" {
		articles = filterArticles(articles, func(a domain.Article) bool { return a.Category == category })
	}
	if source := r.URL.Query().Get("source"); source != "" {
		articles = filterArticles(articles, func(a domain.Article) bool { return a.SourceKey == source })
	}
	if sentiment := r.URL.Query().Get("sentiment"); sentiment != "" {
		articles = filterArticles(articles, func(a domain.Article) bool { return string(a.Sentiment) == sentiment })
	}
	if tier := r.URL.Query().Get("tier"); tier != "" {
		articles = filterArticles(articles, func(a domain.Article) bool { return a.Tier == tier })
	}

	page := intParam(r, "page", 1)
	perPage := intParam(r, "per_page", defaultPerPage)
	paginated := paginate(articles, page, perPage)

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"articles":    paginated,
		"total":       len(articles),
		"page":        page,
		"per_page":    perPage,
		"total_pages": (len(articles) + perPage - 1) / perPage,
	})
}

// trendingHandler serves the top trending articles
func (s *Server) trendingHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"trending": emptyNotNil(snap.Trending)})
}

// clustersHandler serves the similarity clusters
func (s *Server) clustersHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)
	clusters := snap.Clusters
	if clusters == nil {
		clusters = []domain.Cluster{}
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"clusters": clusters})
}

// frontPageHandler serves the front page list, capped
func (s *Server) frontPageHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)
	front := snap.FrontPage
	if len(front) > frontPageLimit {
		front = front[:frontPageLimit]
	}
	renderJSON(w, r, http.StatusOK, map[string]interface{}{"front": emptyNotNil(front)})
}

// searchHandler serves case-insensitive substring search over title+snippet
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if query == "" {
		renderError(w, r, fmt.Errorf("query required"), http.StatusBadRequest)
		return
	}

	snap := s.store.Snapshot(r.Context(), false)
	results := filterArticles(snap.Articles, func(a domain.Article) bool {
		return strings.Contains(strings.ToLower(a.Title), query) ||
			strings.Contains(strings.ToLower(a.Snippet), query)
	})

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"results": emptyNotNil(results),
		"total":   len(results),
		"query":   query,
	})
}

// statsHandler serves the latest cycle statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)
	renderJSON(w, r, http.StatusOK, snap.Stats)
}

// refreshHandler forces a new aggregation cycle
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), true)
	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"message":        "refreshed",
		"total_articles": len(snap.Articles),
		"stats":          snap.Stats,
	})
}

// healthHandler reports cache age and failure state without triggering a fetch
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":         "healthy",
		"cache_age":      0.0,
		"cache_ttl":      s.store.TTL().Seconds(),
		"total_articles": 0,
		"failed_sources": []string{},
	}

	if snap := s.store.Current(); snap != nil {
		health["cache_age"] = snap.Age().Seconds()
		health["total_articles"] = len(snap.Articles)
		health["failed_sources"] = snap.FailedSources
	}

	renderJSON(w, r, http.StatusOK, health)
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// filterArticles keeps articles matching the predicate
func filterArticles(articles []domain.Article, keep func(domain.Article) bool) []domain.Article {
	result := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if keep(a) {
			result = append(result, a)
		}
	}
	return result
}

// paginate slices one page out of the article list
func paginate(articles []domain.Article, page, perPage int) []domain.Article {
	start := (page - 1) * perPage
	if start >= len(articles) {
		return []domain.Article{}
	}
	end := start + perPage
	if end > len(articles) {
		end = len(articles)
	}
	return articles[start:end]
}

// intParam parses a positive integer query parameter with a default
func intParam(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return defaultValue
	}
	return value
}

// emptyNotNil makes empty lists marshal as [] instead of null
func emptyNotNil(articles []domain.Article) []domain.Article {
	if articles == nil {
		return []domain.Article{}
	}
	return articles
}
