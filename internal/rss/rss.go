package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/metrics"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/textnorm"
)

const maxFeedBytes = 10 << 20

// ErrParse marks a feed entry that cannot become an article.
var ErrParse = errors.New("malformed feed entry")

// SourceUnavailableError means a feed could not be fetched or parsed as a
// whole. The source contributes zero articles to the run.
type SourceUnavailableError struct {
	Source string
	URL    string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable (%s): %v", e.Source, e.URL, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Options tunes a Fetcher.
type Options struct {
	Timeout     time.Duration // per feed request
	Concurrency int
	MaxEntries  int // per source, 0 = unlimited
	UserAgent   string
}

// Fetcher downloads and parses feeds, one attempt per source per run.
type Fetcher struct {
	client  *http.Client
	opts    Options
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewFetcher(opts Options, m *metrics.Metrics, log *zap.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Fetcher{
		client:  &http.Client{},
		opts:    opts,
		now:     time.Now,
		metrics: m,
		logger:  logger.OrNop(log),
	}
}

// FetchAll fetches every source concurrently and merges the results in
// source order once all fetches have settled. Unreachable sources are
// logged and skipped. The only error is ctx's, in which case nothing is
// returned.
func (f *Fetcher) FetchAll(ctx context.Context, sources []config.FeedSource) ([]news.Raw, error) {
	results := make([][]news.Raw, len(sources))

	var g errgroup.Group
	g.SetLimit(f.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			items, err := f.FetchSource(ctx, src)
			if err != nil {
				if ctx.Err() == nil {
					f.metrics.IncrementSourceFailures(src.Name)
					f.logger.Warn("source unavailable", zap.String("source", src.Name), zap.Error(err))
				}
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []news.Raw
	ok := 0
	for i, items := range results {
		if items != nil {
			ok++
		}
		all = append(all, items...)
		f.metrics.AddArticlesFetched(sources[i].Name, len(items))
	}
	f.logger.Info("feeds fetched",
		zap.Int("sources_ok", ok),
		zap.Int("sources", len(sources)),
		zap.Int("articles", len(all)))
	return all, nil
}

// FetchSource fetches one feed within the configured timeout. Malformed
// entries are skipped; any other failure is a *SourceUnavailableError.
func (f *Fetcher) FetchSource(ctx context.Context, src config.FeedSource) ([]news.Raw, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	unavailable := func(err error) error {
		return &SourceUnavailableError{Source: src.Name, URL: src.URL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable(fmt.Errorf("http status %d", resp.StatusCode))
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, unavailable(fmt.Errorf("parse feed: %w", err))
	}

	fetchedAt := f.now()
	items := make([]news.Raw, 0, len(feed.Items))
	skipped := 0
	for _, item := range feed.Items {
		if f.opts.MaxEntries > 0 && len(items) >= f.opts.MaxEntries {
			break
		}
		raw, err := itemToRaw(item, src, fetchedAt)
		if err != nil {
			skipped++
			f.metrics.IncrementEntriesSkipped(src.Name)
			f.logger.Debug("entry skipped", zap.String("source", src.Name), zap.Error(err))
			continue
		}
		items = append(items, raw)
	}
	if skipped > 0 {
		f.logger.Warn("malformed entries skipped", zap.String("source", src.Name), zap.Int("skipped", skipped))
	}
	return items, nil
}

func itemToRaw(item *gofeed.Item, src config.FeedSource, fetchedAt time.Time) (news.Raw, error) {
	if item == nil {
		return news.Raw{}, fmt.Errorf("%w: nil item", ErrParse)
	}
	title := strings.TrimSpace(item.Title)
	if title == "" || textnorm.Clean(title) == "" {
		return news.Raw{}, fmt.Errorf("%w: missing title", ErrParse)
	}
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" {
		return news.Raw{}, fmt.Errorf("%w: %q has no link", ErrParse, title)
	}

	published := fetchedAt
	switch {
	case item.PublishedParsed != nil && !item.PublishedParsed.IsZero():
		published = *item.PublishedParsed
	case item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero():
		published = *item.UpdatedParsed
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}

	return news.Raw{
		Title:       title,
		Summary:     item.Description,
		Body:        body,
		Link:        link,
		ImageURL:    imageURL(item),
		Published:   published.UTC(),
		SourceName:  src.Name,
		SourceURL:   src.URL,
		SourceGroup: src.Group,
		Priority:    src.Priority,
	}, nil
}

// imageURL picks the item image, then an image enclosure, then Media RSS
// content or thumbnail, then the first <img> of the content.
func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, e := range media[name] {
				if u := e.Attrs["url"]; u != "" && (name == "thumbnail" || isImageMedia(e.Attrs)) {
					return u
				}
			}
		}
		for _, group := range media["group"] {
			for _, e := range group.Children["content"] {
				if u := e.Attrs["url"]; u != "" && isImageMedia(e.Attrs) {
					return u
				}
			}
		}
	}
	if img := textnorm.FirstImage(item.Content); img != "" {
		return img
	}
	return textnorm.FirstImage(item.Description)
}

func isImageMedia(attrs map[string]string) bool {
	if m := attrs["medium"]; m != "" {
		return m == "image"
	}
	if t := attrs["type"]; t != "" {
		return strings.HasPrefix(strings.ToLower(t), "image/")
	}
	return true
}
