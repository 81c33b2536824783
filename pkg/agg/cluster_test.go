package agg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmux/pkg/domain"
)

func clusterArticle(title, snippet string) domain.Article {
	return domain.Article{ID: fingerprint(title, title), Title: title, Snippet: snippet}
}

func TestClusterArticles_BelowMinimum(t *testing.T) {
	articles := []domain.Article{
		clusterArticle("election results announced today", "votes counted across regions"),
		clusterArticle("election results announced tonight", "votes counted across regions"),
	}
	assert.Nil(t, clusterArticles(articles), "fewer than 3 articles never cluster")
}

func TestClusterArticles_NearDuplicates(t *testing.T) {
	articles := []domain.Article{
		clusterArticle("election results announced today", "votes counted across all regions overnight"),
		clusterArticle("election results announced tonight", "votes counted across all regions overnight"),
		clusterArticle("quantum computing milestone reached", "researchers entangle photons in silicon chips"),
	}

	clusters := clusterArticles(articles)
	require.Len(t, clusters, 1)

	cluster := clusters[0]
	assert.Equal(t, articles[0].ID, cluster.MainArticle.ID, "first unvisited article is the main one")
	require.Len(t, cluster.Related, 1)
	assert.Equal(t, articles[1].ID, cluster.Related[0].ID)
	assert.Equal(t, 2, cluster.Count, "count includes the main article")
}

func TestClusterArticles_UnrelatedStayApart(t *testing.T) {
	articles := []domain.Article{
		clusterArticle("football championship final tonight", "two teams meet in the stadium"),
		clusterArticle("central bank raises interest rates", "inflation pressure prompts monetary tightening"),
		clusterArticle("volcanic eruption disrupts flights", "ash cloud closes regional airspace"),
	}
	assert.Empty(t, clusterArticles(articles))
}

func TestClusterArticles_MembersNotReused(t *testing.T) {
	articles := []domain.Article{
		clusterArticle("storm hits coastal towns hard", "heavy rainfall floods streets and homes"),
		clusterArticle("storm hits coastal towns overnight", "heavy rainfall floods streets and homes"),
		clusterArticle("storm hits coastal villages hard", "heavy rainfall floods streets and homes"),
		clusterArticle("parliament debates budget proposal", "ministers argue over spending priorities"),
	}

	clusters := clusterArticles(articles)
	require.Len(t, clusters, 1, "matched articles are not reused as another cluster's main")
	assert.Equal(t, 3, clusters[0].Count)
}

func TestClusterArticles_CapAndOrder(t *testing.T) {
	// seven near-duplicate pairs with disjoint vocabularies, plus one triple
	topics := [][2]string{
		{"harvest season begins early", "farmers gather wheat barley corn"},
		{"telescope spots distant galaxy", "astronomers measure ancient starlight spectra"},
		{"marathon winner breaks course", "runner finishes race ahead"},
		{"museum restores renaissance painting", "curators repair canvas pigment layers"},
		{"ferry route resumes service", "passengers cross strait daily again"},
		{"orchestra premieres violin concerto", "composer conducts symphony debut performance"},
		{"glacier survey maps ice", "scientists drill frozen core samples"},
	}
	var articles []domain.Article
	for _, topic := range topics {
		articles = append(articles, clusterArticle(topic[0]+" first", topic[1]))
		articles = append(articles, clusterArticle(topic[0]+" second", topic[1]))
	}
	triple := "major summit concludes with agreement"
	tripleSnippet := "leaders sign historic cooperation accord"
	articles = append(articles,
		clusterArticle(triple+" one", tripleSnippet),
		clusterArticle(triple+" two", tripleSnippet),
		clusterArticle(triple+" three", tripleSnippet),
	)

	clusters := clusterArticles(articles)
	require.NotEmpty(t, clusters)
	assert.LessOrEqual(t, len(clusters), 5, "at most five clusters returned")

	for i := 1; i < len(clusters); i++ {
		assert.GreaterOrEqual(t, clusters[i-1].Count, clusters[i].Count, "ordered by descending member count")
	}
	assert.Equal(t, 3, clusters[0].Count, "largest cluster first")
}

func TestTokenize(t *testing.T) {
	terms := tokenize("The Quick-Brown Fox! And a dog's day")
	assert.Equal(t, []string{"quick", "brown", "fox", "dog", "day"}, terms)
}

func TestCosine(t *testing.T) {
	a := map[string]float64{"x": 1}
	b := map[string]float64{"x": 1}
	c := map[string]float64{"y": 1}
	assert.InDelta(t, 1.0, cosine(a, b), 1e-9)
	assert.Zero(t, cosine(a, c))
	assert.Zero(t, cosine(a, map[string]float64{}))
}
