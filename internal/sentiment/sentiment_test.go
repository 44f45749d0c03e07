package sentiment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/metrics"
	"github.com/deusflow/pacwatch/internal/news"
)

var actors = []config.Actor{
	{Name: "China", Aliases: []string{"China", "Beijing", "PRC"}},
	{Name: "Japan", Aliases: []string{"Japan", "Tokyo"}},
	{Name: "US", Aliases: []string{"United States", "U.S.", "Washington"}},
}

type fakeCapability struct {
	fail  string // text containing this fails
	calls []string
	reset int
}

func (f *fakeCapability) Polarity(_ context.Context, text string) (float64, error) {
	f.calls = append(f.calls, text)
	if f.fail != "" && strings.Contains(text, f.fail) {
		return 0, errors.New("model unavailable")
	}
	if strings.Contains(text, "neutral") {
		return 0, nil
	}
	return -0.456, nil
}

func (f *fakeCapability) ResetBudget() { f.reset++ }

func article(title, summary string) *news.Article {
	return news.FromRaw(news.Raw{Title: title, Summary: summary, SourceName: "Test"}, news.Options{})
}

func TestLexicon_Polarity(t *testing.T) {
	l := NewLexicon()
	ctx := context.Background()

	pos, err := l.Polarity(ctx, "Leaders welcomed the landmark agreement on cooperation.")
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos)

	neg, _ := l.Polarity(ctx, "Beijing condemned the provocation amid rising tensions.")
	assert.Equal(t, -1.0, neg)

	none, _ := l.Polarity(ctx, "The ship arrived on Tuesday.")
	assert.Zero(t, none)

	flipped, _ := l.Polarity(ctx, "There was no agreement.")
	assert.Equal(t, -1.0, flipped)

	phrase, _ := l.Polarity(ctx, "Coast guard used a water cannon.")
	assert.Equal(t, -1.0, phrase)

	mixed, _ := l.Polarity(ctx, "Talks continued despite tensions.")
	assert.InDelta(t, (0.2-0.5)/0.7, mixed, 1e-9)
}

func TestAnalyze_OnlyMentionedActors(t *testing.T) {
	an := NewAnalyzer(NewLexicon(), actors, nil, zaptest.NewLogger(t))
	a := article("Beijing condemned the drills", "Tokyo welcomed the new partnership. The weather was calm.")

	got, err := an.Analyze(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"China": -1, "Japan": 1}, got)
	_, ok := got["US"]
	assert.False(t, ok, "unmentioned actor has no entry")
}

func TestAnalyze_NeutralIsZeroNotAbsent(t *testing.T) {
	an := NewAnalyzer(NewLexicon(), actors, nil, nil)
	a := article("Japan ship arrives", "")

	got, err := an.Analyze(context.Background(), a)
	require.NoError(t, err)

	v, ok := got["Japan"]
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestAnalyze_AliasWordBoundary(t *testing.T) {
	an := NewAnalyzer(NewLexicon(), actors, nil, nil)
	a := article("Chinatown festival draws crowds", "")

	got, err := an.Analyze(context.Background(), a)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAnalyze_RoundsAndUsesMentioningSentences(t *testing.T) {
	fake := &fakeCapability{}
	an := NewAnalyzer(fake, actors, nil, nil)
	a := article("Washington sends envoy", "The envoy met officials. The United States pledged aid.")

	got, err := an.Analyze(context.Background(), a)
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"US": -0.46}, got)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "Washington sends envoy. The United States pledged aid.", fake.calls[0])
}

func TestAnalyze_RepeatedSentencesSentOnce(t *testing.T) {
	fake := &fakeCapability{}
	an := NewAnalyzer(fake, actors, nil, nil)
	a := news.FromRaw(news.Raw{
		Title:   "Envoy arrives",
		Summary: "Washington pledged aid. Officials met.",
		Body:    "<p>Officials met.</p><p>Washington pledged aid.</p><p>Washington pledged aid.</p>",
	}, news.Options{})

	_, err := an.Analyze(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "Washington pledged aid.", fake.calls[0])
}

func TestAnalyzeAll_FailureOmitsArticleAndContinues(t *testing.T) {
	fake := &fakeCapability{fail: "Tokyo"}
	m := metrics.New()
	an := NewAnalyzer(fake, actors, m, zaptest.NewLogger(t))

	bad := article("Beijing and Tokyo meet", "")
	bad.Sentiment = map[string]float64{"stale": 1}
	good := article("Beijing neutral statement", "")

	require.NoError(t, an.AnalyzeAll(context.Background(), []*news.Article{bad, good}))

	assert.Nil(t, bad.Sentiment, "no partial entries for a failed article")
	assert.Equal(t, map[string]float64{"China": 0}, good.Sentiment)
	assert.Equal(t, 1, fake.reset)
	assert.Equal(t, int64(1), m.GetStats()["sentiment_failures"])
}

func TestAnalyzeAll_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	an := NewAnalyzer(NewLexicon(), actors, nil, nil)

	err := an.AnalyzeAll(ctx, []*news.Article{article("Japan", "")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCached_SkipsRepeatCallsButNotFailures(t *testing.T) {
	fake := &fakeCapability{fail: "Tokyo"}
	c := NewCached(fake, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		v, err := c.Polarity(ctx, "Beijing warns")
		require.NoError(t, err)
		assert.Equal(t, -0.456, v)

		_, err = c.Polarity(ctx, "Tokyo talks")
		assert.Error(t, err)
	}
	assert.Equal(t, []string{"Beijing warns", "Tokyo talks", "Tokyo talks"}, fake.calls)

	c.ResetBudget()
	assert.Equal(t, 1, fake.reset)
	assert.Equal(t, int64(1), c.Stats()["cache_hits"])
}

type countingCapability struct{ fakeCapability }

func (c *countingCapability) Stats() map[string]interface{} {
	return map[string]interface{}{"total_used": len(c.calls)}
}

func TestAnalyzer_Stats(t *testing.T) {
	assert.Nil(t, NewAnalyzer(NewLexicon(), actors, nil, nil).Stats())

	inner := &countingCapability{}
	an := NewAnalyzer(NewCached(inner, time.Hour), actors, nil, nil)
	for i := 0; i < 2; i++ {
		_, err := an.Analyze(context.Background(), article("Tokyo responds", ""))
		require.NoError(t, err)
	}

	stats := an.Stats()
	assert.Equal(t, 1, stats["total_used"])
	assert.Equal(t, int64(1), stats["cache_hits"])
	assert.Equal(t, int64(1), stats["cache_misses"])
	assert.Equal(t, int64(1), stats["cache_entries"])
}
