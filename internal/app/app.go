package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/classify"
	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/gemini"
	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/metrics"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/rank"
	"github.com/deusflow/pacwatch/internal/ratelimit"
	"github.com/deusflow/pacwatch/internal/relate"
	"github.com/deusflow/pacwatch/internal/rss"
	"github.com/deusflow/pacwatch/internal/score"
	"github.com/deusflow/pacwatch/internal/sentiment"
)

// Fetcher produces the raw entries of one cycle.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []config.FeedSource) ([]news.Raw, error)
}

// Snapshot is the immutable result of one refresh cycle.
type Snapshot struct {
	RunID       string
	GeneratedAt time.Time
	Articles    []*news.Article // deduplicated, ranked by importance
	Fetched     int             // raw entries before dedup
	Duration    time.Duration
	Relations   *relate.Network // nil when relationship extraction is off
}

// Pipeline runs fetch, normalize, classify, score, sentiment and
// dedup/rank once per call. It holds no state between runs.
type Pipeline struct {
	reference  *config.Reference
	fetcher    Fetcher
	classifier *classify.Classifier
	scorer     *score.Scorer
	analyzer   *sentiment.Analyzer
	dedup      *rank.Deduplicator
	relations  *relate.Extractor
	textOpts   news.Options
	now        func() time.Time
	logger     *zap.Logger
}

// Components wires a Pipeline explicitly; nil Now means time.Now.
type Components struct {
	Reference  *config.Reference
	Fetcher    Fetcher
	Classifier *classify.Classifier
	Scorer     *score.Scorer
	Analyzer   *sentiment.Analyzer
	Dedup      *rank.Deduplicator
	Relations  *relate.Extractor // optional
	TextOpts   news.Options
	Now        func() time.Time
	Logger     *zap.Logger
}

func NewPipeline(c Components) *Pipeline {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		reference:  c.Reference,
		fetcher:    c.Fetcher,
		classifier: c.Classifier,
		scorer:     c.Scorer,
		analyzer:   c.Analyzer,
		dedup:      c.Dedup,
		relations:  c.Relations,
		textOpts:   c.TextOpts,
		now:        now,
		logger:     logger.OrNop(c.Logger),
	}
}

// Build assembles the production pipeline from settings and reference data.
// The returned close func releases the sentiment backend.
func Build(ctx context.Context, cfg *config.Config, ref *config.Reference, m *metrics.Metrics, log *zap.Logger) (*Pipeline, func(), error) {
	log = logger.OrNop(log)

	var capability sentiment.Capability = sentiment.NewLexicon()
	closeFn := func() {}
	if cfg.SentimentBackend == "gemini" {
		limiter := ratelimit.New(cfg.MaxGeminiRequests, cfg.GeminiRPS)
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout, limiter, log.Named("gemini"))
		if err != nil {
			return nil, nil, fmt.Errorf("sentiment backend: %w", err)
		}
		capability = client
		if cfg.SentimentCacheTTL > 0 {
			capability = sentiment.NewCached(client, cfg.SentimentCacheTTL)
		}
		closeFn = client.Close
	}

	p := NewPipeline(Components{
		Reference: ref,
		Fetcher: rss.NewFetcher(rss.Options{
			Timeout:     cfg.FetchTimeout,
			Concurrency: cfg.FetchConcurrency,
			MaxEntries:  cfg.MaxEntriesPerSource,
			UserAgent:   cfg.UserAgent,
		}, m, log.Named("fetch")),
		Classifier: classify.New(ref, log.Named("classify")),
		Scorer:     score.FromConfig(cfg),
		Analyzer:   sentiment.NewAnalyzer(capability, ref.Actors, m, log.Named("sentiment")),
		Dedup:      rank.NewDeduplicator(rank.Jaccard, cfg.DedupThreshold, cfg.DedupWindow, m, log.Named("dedup")),
		Relations:  relate.New(ref.Actors, log.Named("relate")),
		TextOpts: news.Options{
			SummaryMaxSentences: cfg.SummaryMaxSentences,
			ExcerptMaxRunes:     cfg.ExcerptMaxRunes,
		},
		Logger: log,
	})
	return p, closeFn, nil
}

// Stats reports sentiment backend counters, nil for the lexicon.
func (p *Pipeline) Stats() map[string]interface{} {
	return p.analyzer.Stats()
}

// Run executes one cycle. A cancelled ctx aborts it and nothing is
// returned; every other failure is absorbed by the stage that owns it.
func (p *Pipeline) Run(ctx context.Context) (*Snapshot, error) {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID))
	start := time.Now()
	log.Info("refresh started", zap.Int("sources", len(p.reference.Feeds)))

	raws, err := p.fetcher.FetchAll(ctx, p.reference.Feeds)
	if err != nil {
		return nil, err
	}

	now := p.now()
	articles := make([]*news.Article, 0, len(raws))
	unmatched := 0
	for _, raw := range raws {
		a := news.FromRaw(raw, p.textOpts)
		if res := p.classifier.Apply(a); len(res.Categories) == 0 {
			unmatched++
		}
		p.scorer.Apply(a, now)
		articles = append(articles, a)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.analyzer.AnalyzeAll(ctx, articles); err != nil {
		return nil, err
	}

	unique := p.dedup.Deduplicate(articles)
	ranked := rank.Rank(unique, rank.SortImportance, now)

	snap := &Snapshot{
		RunID:       runID,
		GeneratedAt: now,
		Articles:    ranked,
		Fetched:     len(raws),
	}
	if p.relations != nil {
		snap.Relations = p.relations.Network(ranked)
	}
	snap.Duration = time.Since(start)
	log.Info("refresh finished",
		zap.Int("fetched", len(raws)),
		zap.Int("unclassified", unmatched),
		zap.Int("articles", len(ranked)),
		zap.Duration("took", snap.Duration))
	return snap, nil
}
