package agg

import (
	"crypto/md5" //nolint:gosec // fingerprint for dedup, not security
	"encoding/hex"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"newsmux/pkg/domain"
)

// snippetLimit is the maximum snippet length in runes before truncation
const snippetLimit = 300

// stripPolicy removes all markup, leaving plain text
var stripPolicy = bluemonday.StrictPolicy()

// dateFormats tried in order against string date fields when the feed parser
// did not produce a structured time
var dateFormats = []string{
	time.RFC1123Z, // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC1123,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// normalize converts a raw feed entry into a canonical article. Entries
// without a title or link are dropped. now is the ingestion timestamp, also
// used as the fallback when no publication date can be parsed.
func normalize(entry *gofeed.Item, src domain.Source, now time.Time) (domain.Article, bool) {
	title := strings.TrimSpace(entry.Title)
	link := strings.TrimSpace(entry.Link)
	if title == "" || link == "" {
		return domain.Article{}, false
	}

	raw := entry.Description
	if raw == "" {
		raw = entry.Content
	}
	snippet := cleanText(raw)

	article := domain.Article{
		ID:         fingerprint(title, link),
		Title:      title,
		Link:       link,
		Snippet:    snippet,
		Source:     src.Name,
		SourceKey:  src.Key,
		SourceLogo: src.Logo,
		Category:   src.Category,
		Tier:       src.Tier,
		Published:  parsePublished(entry, now),
		FetchedAt:  now,
		Sentiment:  analyzeSentiment(title + " " + snippet),
	}
	article.TrendingScore = trendingScore(article.Title, article.Published, now)

	return article, true
}

// fingerprint derives the dedup id from title and link. Identical (title,
// link) pairs always produce the same id.
func fingerprint(title, link string) string {
	sum := md5.Sum([]byte(title + link)) //nolint:gosec // content fingerprint, not security
	return hex.EncodeToString(sum[:])[:16]
}

// cleanText strips markup from a summary, collapses whitespace and truncates
// to the snippet limit with a trailing ellipsis marker
func cleanText(text string) string {
	if text == "" {
		return ""
	}

	plain := stripPolicy.Sanitize(text)
	plain = html.UnescapeString(plain)
	plain = strings.Join(strings.Fields(plain), " ")

	runes := []rune(plain)
	if len(runes) > snippetLimit {
		return string(runes[:snippetLimit]) + "..."
	}
	return plain
}

// parsePublished extracts the publication time from an entry, trying
// structured fields first, then string fields against the fixed format list.
// First successful parse wins; everything failing falls back to now.
func parsePublished(entry *gofeed.Item, now time.Time) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}

	for _, raw := range []string{entry.Published, entry.Updated} {
		if raw == "" {
			continue
		}
		for _, format := range dateFormats {
			if ts, err := time.Parse(format, raw); err == nil {
				return ts
			}
		}
	}

	return now
}
