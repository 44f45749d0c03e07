package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/metrics"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>Test Feed</title>
  <link>https://example.com</link>
  <description>test</description>
  <item>
    <title>Navy deploys destroyer</title>
    <link>https://example.com/1</link>
    <description>&lt;p&gt;The destroyer left port.&lt;/p&gt;</description>
    <pubDate>Sun, 18 Oct 2026 06:00:00 GMT</pubDate>
    <enclosure url="https://img.example.com/1.jpg" type="image/jpeg" length="100"/>
  </item>
  <item>
    <title>Entry without link</title>
    <description>dropped</description>
  </item>
  <item>
    <title>Media entry</title>
    <link>https://example.com/2</link>
    <media:content url="https://img.example.com/2.jpg" medium="image"/>
  </item>
  <item>
    <title>Inline image entry</title>
    <link>https://example.com/3</link>
    <description>&lt;img src="https://img.example.com/3.jpg"&gt; Text</description>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <id>urn:test</id>
  <updated>2026-10-18T05:00:00Z</updated>
  <entry>
    <title>Atom entry</title>
    <link href="https://example.org/1"/>
    <id>urn:test:1</id>
    <updated>2026-10-18T05:00:00Z</updated>
    <summary>Summit opens</summary>
  </entry>
</feed>`

var fetchedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func body(s string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, s)
	}
}

func newTestFetcher(t *testing.T, opts Options, m *metrics.Metrics) *Fetcher {
	f := NewFetcher(opts, m, zaptest.NewLogger(t))
	f.now = func() time.Time { return fetchedAt }
	return f
}

func TestFetchSource_ParsesEntries(t *testing.T) {
	userAgents := make(chan string, 1)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		body(rssFeed)(w, r)
	})
	f := newTestFetcher(t, Options{Timeout: time.Second, Concurrency: 1, UserAgent: "pacwatch-test"}, nil)

	items, err := f.FetchSource(context.Background(), config.FeedSource{URL: srv.URL, Name: "USNI News", Priority: 4, Group: "Security & Defense"})
	require.NoError(t, err)
	require.Len(t, items, 3, "entry without link is skipped")

	assert.Equal(t, "pacwatch-test", <-userAgents)

	first := items[0]
	assert.Equal(t, "Navy deploys destroyer", first.Title)
	assert.Equal(t, "https://example.com/1", first.Link)
	assert.Equal(t, "<p>The destroyer left port.</p>", first.Summary)
	assert.Equal(t, time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC), first.Published)
	assert.Equal(t, "https://img.example.com/1.jpg", first.ImageURL)
	assert.Equal(t, "USNI News", first.SourceName)
	assert.Equal(t, 4, first.Priority)
	assert.Equal(t, "Security & Defense", first.SourceGroup)

	assert.Equal(t, "https://img.example.com/2.jpg", items[1].ImageURL)
	assert.Equal(t, fetchedAt, items[1].Published, "no date falls back to fetch time")
	assert.Equal(t, "https://img.example.com/3.jpg", items[2].ImageURL)
}

func TestFetchSource_MaxEntries(t *testing.T) {
	srv := serve(t, body(rssFeed))
	f := newTestFetcher(t, Options{Timeout: time.Second, MaxEntries: 2}, nil)

	items, err := f.FetchSource(context.Background(), config.FeedSource{URL: srv.URL, Name: "A"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchSource_AtomUpdatedFallback(t *testing.T) {
	srv := serve(t, body(atomFeed))
	f := newTestFetcher(t, Options{Timeout: time.Second}, nil)

	items, err := f.FetchSource(context.Background(), config.FeedSource{URL: srv.URL, Name: "Atom"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://example.org/1", items[0].Link)
	assert.Equal(t, time.Date(2026, 10, 18, 5, 0, 0, 0, time.UTC), items[0].Published)
}

func TestFetchSource_Unavailable(t *testing.T) {
	failing := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	garbage := serve(t, body("this is not a feed"))
	f := newTestFetcher(t, Options{Timeout: time.Second}, nil)

	for _, url := range []string{failing.URL, garbage.URL, "http://127.0.0.1:0/feed"} {
		_, err := f.FetchSource(context.Background(), config.FeedSource{URL: url, Name: "Bad"})
		var unavailable *SourceUnavailableError
		require.True(t, errors.As(err, &unavailable), "url %s: %v", url, err)
		assert.Equal(t, "Bad", unavailable.Source)
	}
}

func TestFetchAll_TimeoutDegradesToEmpty(t *testing.T) {
	good := serve(t, body(rssFeed))
	atom := serve(t, body(atomFeed))
	slow := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	m := metrics.New()
	f := newTestFetcher(t, Options{Timeout: 200 * time.Millisecond, Concurrency: 2}, m)

	sources := []config.FeedSource{
		{URL: slow.URL, Name: "Slow"},
		{URL: good.URL, Name: "Good"},
		{URL: atom.URL, Name: "Atom"},
	}
	start := time.Now()
	items, err := f.FetchAll(context.Background(), sources)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	var got []string
	for _, it := range items {
		assert.NotEqual(t, "Slow", it.SourceName)
		got = append(got, it.SourceName+": "+it.Title)
	}
	assert.Equal(t, []string{
		"Good: Navy deploys destroyer",
		"Good: Media entry",
		"Good: Inline image entry",
		"Atom: Atom entry",
	}, got, "merged in source order")

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["total_source_failures"])
	assert.Equal(t, int64(4), stats["total_articles_fetched"])
}

func TestFetchAll_CancelledDiscardsEverything(t *testing.T) {
	good := serve(t, body(rssFeed))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := metrics.New()
	f := newTestFetcher(t, Options{Timeout: time.Second, Concurrency: 2}, m)

	items, err := f.FetchAll(ctx, []config.FeedSource{{URL: good.URL, Name: "Good"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, items)
	assert.Equal(t, int64(0), m.GetStats()["total_source_failures"], "cancellation is not a source failure")
}

func TestItemToRaw_MissingTitle(t *testing.T) {
	_, err := itemToRaw(&gofeed.Item{Title: "  ", Link: "https://x"}, config.FeedSource{Name: "A"}, fetchedAt)
	assert.ErrorIs(t, err, ErrParse)

	_, err = itemToRaw(&gofeed.Item{Title: "<br>", Link: "https://x"}, config.FeedSource{Name: "A"}, fetchedAt)
	assert.ErrorIs(t, err, ErrParse)
}

func TestItemToRaw_UpdatedFallback(t *testing.T) {
	updated := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	raw, err := itemToRaw(&gofeed.Item{Title: "T", Link: "https://x", UpdatedParsed: &updated, Content: "<p>Body</p>", Description: "Desc"}, config.FeedSource{Name: "A"}, fetchedAt)
	require.NoError(t, err)
	assert.Equal(t, updated, raw.Published)
	assert.Equal(t, "<p>Body</p>", raw.Body)
	assert.Equal(t, "Desc", raw.Summary)
}
