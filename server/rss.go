package server

import (
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"time"

	"newsmux/pkg/domain"
)

const rssItemLimit = 30

// rssTrendingHandler serves the trending list as an RSS 2.0 feed
func (s *Server) rssTrendingHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)
	s.writeRSS(w, "Newsmux - Trending", "Top trending stories across all sources", snap.Trending)
}

// rssFrontPageHandler serves the front page as an RSS 2.0 feed
func (s *Server) rssFrontPageHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot(r.Context(), false)
	s.writeRSS(w, "Newsmux - Front Page", "World and Politics, newest first", snap.FrontPage)
}

// writeRSS renders a list of articles as RSS 2.0
func (s *Server) writeRSS(w http.ResponseWriter, title, description string, articles []domain.Article) {
	if len(articles) > rssItemLimit {
		articles = articles[:rssItemLimit]
	}

	output, err := generateRSS(title, description, articles)
	if err != nil {
		log.Printf("[ERROR] failed to generate RSS feed: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(output)); err != nil {
		log.Printf("[ERROR] failed to write RSS response: %v", err)
	}
}

// rssFeed represents the root RSS 2.0 element
type rssFeed struct {
	XMLName xml.Name    `xml:"rss"`
	Version string      `xml:"version,attr"`
	Channel *rssChannel `xml:"channel"`
}

// rssChannel represents an RSS channel
type rssChannel struct {
	Title         string     `xml:"title"`
	Link          string     `xml:"link"`
	Description   string     `xml:"description"`
	LastBuildDate string     `xml:"lastBuildDate"`
	Items         []*rssItem `xml:"item"`
}

// rssItem represents an item in an RSS feed
type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate"`
}

// generateRSS creates an RSS 2.0 document from aggregated articles
func generateRSS(title, description string, articles []domain.Article) (string, error) {
	items := make([]*rssItem, 0, len(articles))
	for _, a := range articles {
		desc := a.Snippet
		if desc == "" {
			desc = fmt.Sprintf("%s (%s)", a.Title, a.Source)
		}
		items = append(items, &rssItem{
			Title:       fmt.Sprintf("%s - %s", a.Title, a.Source),
			Link:        a.Link,
			GUID:        a.ID,
			Description: desc,
			Category:    a.Category,
			PubDate:     a.Published.Format(time.RFC1123Z),
		})
	}

	feed := &rssFeed{
		Version: "2.0",
		Channel: &rssChannel{
			Title:         title,
			Description:   description,
			LastBuildDate: time.Now().Format(time.RFC1123Z),
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}

	return xml.Header + string(output), nil
}
