package agg

import (
	"strings"
	"time"

	"newsmux/pkg/domain"
)

// positiveWords and negativeWords are matched as case-insensitive substrings;
// each distinct word present counts once
var positiveWords = []string{
	"breakthrough", "success", "growth", "innovation", "win", "achievement",
	"record", "profit", "gain", "improve", "advance", "positive", "excellent",
	"outstanding",
}

var negativeWords = []string{
	"crisis", "crash", "decline", "threat", "conflict", "war", "death",
	"disaster", "scandal", "controversial", "failure", "loss", "negative",
	"worst",
}

// trendingKeywords boost the trending score when present in the title
var trendingKeywords = []string{
	"breaking", "just in", "urgent", "alert", "developing", "live",
	"exclusive", "update",
}

// analyzeSentiment classifies text by counting keyword hits from the two
// fixed sets. A strict majority wins; ties (including no hits) are neutral.
func analyzeSentiment(text string) domain.Sentiment {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			pos++
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			neg++
		}
	}

	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

// trendingScore combines recency with keyword boosts: max(0, 100 - hours
// since published) plus 20 per trending keyword found in the title
func trendingScore(title string, published, now time.Time) float64 {
	hours := now.Sub(published).Hours()
	recency := 100 - hours
	if recency < 0 {
		recency = 0
	}

	lower := strings.ToLower(title)
	keyword := 0.0
	for _, kw := range trendingKeywords {
		if strings.Contains(lower, kw) {
			keyword += 20
		}
	}

	return recency + keyword
}
