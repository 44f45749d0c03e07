package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/metrics"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/textnorm"
)

// Capability scores the polarity of a text in -1..1. Implementations may
// call out to a model; the Analyzer never depends on how.
type Capability interface {
	Polarity(ctx context.Context, text string) (float64, error)
}

// budgeted capabilities get a fresh request budget per AnalyzeAll.
type budgeted interface {
	ResetBudget()
}

// statser capabilities expose counters for the stats endpoint.
type statser interface {
	Stats() map[string]interface{}
}

// UnavailableError reports that the capability failed for one article.
type UnavailableError struct {
	Article string
	Actor   string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("sentiment unavailable for %q (actor %s): %v", e.Article, e.Actor, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

type actor struct {
	name    string
	aliases []string // padded folded aliases
}

// Analyzer derives per-actor polarity from the sentences mentioning each
// tracked actor.
type Analyzer struct {
	capability Capability
	actors     []actor
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewAnalyzer(capability Capability, actors []config.Actor, m *metrics.Metrics, log *zap.Logger) *Analyzer {
	a := &Analyzer{
		capability: capability,
		logger:     logger.OrNop(log),
		metrics:    m,
	}
	for _, cfg := range actors {
		act := actor{name: cfg.Name}
		for _, alias := range cfg.Aliases {
			if f := textnorm.Fold(alias); f != "" {
				act.aliases = append(act.aliases, " "+f+" ")
			}
		}
		if len(act.aliases) > 0 {
			a.actors = append(a.actors, act)
		}
	}
	return a
}

// Analyze returns actor -> polarity for the actors a mentions. Actors that
// are not mentioned have no entry. Any capability failure fails the whole
// article so partial maps are never produced.
func (an *Analyzer) Analyze(ctx context.Context, a *news.Article) (map[string]float64, error) {
	var sentences, folded []string
	seen := make(map[string]bool)
	for _, s := range textnorm.Sentences(a.Text.Plain()) {
		f := " " + textnorm.Fold(s) + " "
		if seen[f] {
			continue
		}
		seen[f] = true
		sentences = append(sentences, s)
		folded = append(folded, f)
	}

	var out map[string]float64
	for _, act := range an.actors {
		var window []string
		for i, f := range folded {
			if mentions(f, act.aliases) {
				window = append(window, sentences[i])
			}
		}
		if len(window) == 0 {
			continue
		}

		score, err := an.capability.Polarity(ctx, strings.Join(window, " "))
		if err != nil {
			return nil, &UnavailableError{Article: a.Title, Actor: act.name, Err: err}
		}
		if math.IsNaN(score) {
			return nil, &UnavailableError{Article: a.Title, Actor: act.name, Err: errors.New("NaN polarity")}
		}
		if out == nil {
			out = make(map[string]float64)
		}
		out[act.name] = round2(math.Max(-1, math.Min(1, score)))
	}
	return out, nil
}

// AnalyzeAll fills Sentiment for every article. Per-article failures are
// logged and counted; only a done ctx stops the loop.
func (an *Analyzer) AnalyzeAll(ctx context.Context, articles []*news.Article) error {
	if b, ok := an.capability.(budgeted); ok {
		b.ResetBudget()
	}

	failed := 0
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}
		scores, err := an.Analyze(ctx, a)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			failed++
			a.Sentiment = nil
			an.metrics.IncrementSentimentFailures()
			an.logger.Warn("sentiment omitted", zap.String("source", a.Source), zap.Error(err))
			continue
		}
		a.Sentiment = scores
	}

	if failed > 0 {
		an.logger.Info("sentiment analysis finished with omissions",
			zap.Int("articles", len(articles)),
			zap.Int("omitted", failed))
	}
	return nil
}

// Stats returns the capability's counters, or nil when it keeps none.
func (an *Analyzer) Stats() map[string]interface{} {
	if s, ok := an.capability.(statser); ok {
		return s.Stats()
	}
	return nil
}

func mentions(paddedSentence string, aliases []string) bool {
	for _, alias := range aliases {
		if strings.Contains(paddedSentence, alias) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
