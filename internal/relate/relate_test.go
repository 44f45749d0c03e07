package relate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/news"
)

var actors = []config.Actor{
	{Name: "US", Aliases: []string{"United States", "Washington"}},
	{Name: "China", Aliases: []string{"China", "Beijing", "Xi Jinping"}},
	{Name: "Japan", Aliases: []string{"Japan", "Tokyo"}},
}

func article(title, summary string, sentiment map[string]float64) *news.Article {
	a := news.FromRaw(news.Raw{
		Title:      title,
		Summary:    summary,
		Link:       "https://example.com/" + title,
		SourceName: "Test",
		Published:  time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC),
	}, news.Options{})
	a.Sentiment = sentiment
	return a
}

func TestExtract_PairsTypedBySentence(t *testing.T) {
	x := New(actors, zaptest.NewLogger(t))
	a := article("Beijing and Tokyo sign trade agreement",
		"Washington warned Beijing over rising tensions. The weather was calm. Tokyo reported on the talks.", nil)

	got := x.Extract(a)

	assert.Equal(t, []Relationship{
		{Source: "China", SourceKind: KindActor, Target: "Japan", TargetKind: KindActor, Type: Cooperation,
			Sentence: "Beijing and Tokyo sign trade agreement."},
		{Source: "US", SourceKind: KindActor, Target: "China", TargetKind: KindActor, Type: Conflict,
			Sentence: "Washington warned Beijing over rising tensions."},
	}, got)
}

func TestExtract_TitledPeople(t *testing.T) {
	x := New(actors, nil)
	a := article("Envoy visit",
		"President Xi Jinping met Prime Minister Anthony Albanese in Beijing.", nil)

	got := x.Extract(a)

	require.Len(t, got, 1)
	assert.Equal(t, "China", got[0].Source)
	assert.Equal(t, "Anthony Albanese", got[0].Target)
	assert.Equal(t, KindPerson, got[0].TargetKind)
	assert.Equal(t, Mentioned, got[0].Type)
}

func TestExtract_WholeWordsOnly(t *testing.T) {
	x := New(actors, nil)
	a := article("Chinatown and Japanese gardens reopen with software upgrades", "", nil)

	assert.Empty(t, x.Extract(a))
}

func TestExtract_DefaultsToMentioned(t *testing.T) {
	x := New(actors, nil)
	got := x.Extract(article("China and Japan respond", "", nil))

	require.Len(t, got, 1)
	assert.Equal(t, Mentioned, got[0].Type)
}

func TestExtract_RepeatedSentenceCountsOnce(t *testing.T) {
	x := New(actors, nil)
	a := news.FromRaw(news.Raw{
		Title:   "Update",
		Summary: "China and Japan hold talks.",
		Body:    "<p>China and Japan hold talks.</p><p>More later.</p>",
	}, news.Options{})

	assert.Len(t, x.Extract(a), 1)
}

func TestNetwork(t *testing.T) {
	x := New(actors, zaptest.NewLogger(t))
	articles := []*news.Article{
		article("China and Japan clash over islands", "", map[string]float64{"China": -0.6, "Japan": -0.2}),
		article("Beijing and Tokyo hold talks", "Washington welcomed the meeting.", map[string]float64{"China": 0.2, "Japan": 0.4, "US": 0.5}),
		article("Washington and Tokyo expand defense alliance", "", nil),
		article("Cyclone hits Fiji", "", nil),
	}

	net := x.Network(articles)

	require.Len(t, net.Edges, 2)
	assert.Equal(t, "China", net.Edges[0].Source)
	assert.Equal(t, "Japan", net.Edges[0].Target)
	assert.Equal(t, 2, net.Edges[0].Weight)
	assert.Equal(t, []Type{Conflict, Diplomatic}, net.Edges[0].Types)
	require.Len(t, net.Edges[0].Articles, 2)
	assert.Equal(t, "China and Japan clash over islands", net.Edges[0].Articles[0].Title)

	assert.Equal(t, "Japan", net.Edges[1].Source)
	assert.Equal(t, "US", net.Edges[1].Target)
	assert.Equal(t, []Type{Cooperation}, net.Edges[1].Types)

	require.Len(t, net.Nodes, 3)
	japan := net.Nodes[0]
	assert.Equal(t, "Japan", japan.Name)
	assert.Equal(t, 2, japan.Degree)
	assert.Equal(t, 1.0, japan.Centrality)
	assert.Equal(t, 3, japan.Articles)
	require.NotNil(t, japan.Sentiment)
	assert.Equal(t, 0.1, *japan.Sentiment)

	us := net.Nodes[2]
	assert.Equal(t, "US", us.Name)
	assert.Equal(t, 1, us.Articles, "a lone mention in another sentence is not a link")
	assert.Nil(t, us.Sentiment)
}

func TestNetwork_Empty(t *testing.T) {
	net := New(nil, nil).Network([]*news.Article{article("China and Japan", "", nil)})

	assert.Empty(t, net.Nodes)
	assert.NotNil(t, net.Edges)
}

func TestSelect(t *testing.T) {
	x := New(actors, nil)
	net := x.Network([]*news.Article{
		article("China and Japan clash", "", nil),
		article("China and Japan clash again", "", nil),
		article("Washington and Tokyo sign trade deal", "", nil),
	})

	got := net.Select(Query{Entity: "us"})
	require.Len(t, got.Edges, 1)
	assert.Equal(t, "Japan", got.Edges[0].Source)
	assert.Len(t, got.Nodes, 2)

	assert.Len(t, net.Select(Query{Type: Conflict}).Edges, 1)
	assert.Len(t, net.Select(Query{MinWeight: 2}).Edges, 1)
	assert.Len(t, net.Select(Query{Limit: 1}).Edges, 1)
	assert.Len(t, net.Select(Query{}).Edges, 2)

	var none *Network
	assert.Empty(t, none.Select(Query{}).Edges)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("Conflict")
	assert.True(t, ok)
	assert.Equal(t, Conflict, typ)

	_, ok = ParseType("friendship")
	assert.False(t, ok)
}
