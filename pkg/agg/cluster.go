package agg

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"newsmux/pkg/domain"
)

const (
	clusterMinArticles   = 3   // below this, clustering is skipped entirely
	clusterMaxArticles   = 100 // only the head of the list is clustered
	clusterMaxVocabulary = 100
	clusterThreshold     = 0.3
	clusterMaxResults    = 5
)

// stopwords excluded from the clustering vocabulary
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {},
	"and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "for": {}, "from": {}, "had": {},
	"has": {}, "have": {}, "he": {}, "her": {}, "his": {}, "how": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "more": {},
	"most": {}, "new": {}, "no": {}, "not": {}, "of": {}, "on": {},
	"one": {}, "or": {}, "other": {}, "our": {}, "out": {}, "over": {},
	"said": {}, "say": {}, "says": {}, "she": {}, "some": {}, "than": {},
	"that": {}, "the": {}, "their": {}, "them": {}, "there": {}, "they": {},
	"this": {}, "to": {}, "up": {}, "was": {}, "were": {}, "what": {},
	"when": {}, "which": {}, "who": {}, "will": {}, "with": {}, "would": {},
	"you": {}, "your": {},
}

// clusterArticles groups near-duplicate coverage using TF-IDF vectors and
// cosine similarity. It operates on at most the first clusterMaxArticles
// articles, requires at least clusterMinArticles, and returns up to
// clusterMaxResults clusters ordered by descending member count. Any
// degenerate input degrades to no clusters.
func clusterArticles(articles []domain.Article) []domain.Cluster {
	if len(articles) < clusterMinArticles {
		return nil
	}

	docs := articles
	if len(docs) > clusterMaxArticles {
		docs = docs[:clusterMaxArticles]
	}

	tokens := make([][]string, len(docs))
	for i, a := range docs {
		tokens[i] = tokenize(a.Title + " " + a.Snippet)
	}

	vectors := vectorize(tokens)

	// greedy pass: each unvisited article gathers everything above the
	// similarity threshold; matched indices are not reused as another
	// cluster's main article
	visited := make(map[int]bool, len(docs))
	var clusters []domain.Cluster

	for i := range docs {
		if visited[i] {
			continue
		}

		var members []int
		for j := range docs {
			if cosine(vectors[i], vectors[j]) > clusterThreshold {
				members = append(members, j)
			}
		}

		if len(members) <= 1 {
			continue
		}

		cluster := domain.Cluster{
			MainArticle: docs[i],
			Count:       len(members),
		}
		for _, j := range members {
			visited[j] = true
			if j != i {
				cluster.Related = append(cluster.Related, docs[j])
			}
		}
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Count > clusters[j].Count })
	if len(clusters) > clusterMaxResults {
		clusters = clusters[:clusterMaxResults]
	}
	return clusters
}

// tokenize lowercases and splits text into terms of at least two characters,
// excluding stopwords
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// vectorize builds l2-normalized TF-IDF vectors over a bounded vocabulary of
// the most frequent corpus terms
func vectorize(docs [][]string) []map[string]float64 {
	// corpus term frequency and document frequency
	corpusFreq := map[string]int{}
	docFreq := map[string]int{}
	for _, terms := range docs {
		seen := map[string]bool{}
		for _, t := range terms {
			corpusFreq[t]++
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}

	// vocabulary: top terms by corpus frequency, ties alphabetical for
	// deterministic output
	vocab := make([]string, 0, len(corpusFreq))
	for t := range corpusFreq {
		vocab = append(vocab, t)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if corpusFreq[vocab[i]] != corpusFreq[vocab[j]] {
			return corpusFreq[vocab[i]] > corpusFreq[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > clusterMaxVocabulary {
		vocab = vocab[:clusterMaxVocabulary]
	}
	inVocab := make(map[string]bool, len(vocab))
	for _, t := range vocab {
		inVocab[t] = true
	}

	// smoothed idf
	n := float64(len(docs))
	idf := make(map[string]float64, len(vocab))
	for _, t := range vocab {
		idf[t] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}

	vectors := make([]map[string]float64, len(docs))
	for i, terms := range docs {
		vec := map[string]float64{}
		for _, t := range terms {
			if inVocab[t] {
				vec[t]++
			}
		}

		var norm float64
		for t := range vec {
			vec[t] *= idf[t]
			norm += vec[t] * vec[t]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for t := range vec {
				vec[t] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors
}

// cosine of two l2-normalized sparse vectors is their dot product
func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, v := range a {
		dot += v * b[t]
	}
	return dot
}
