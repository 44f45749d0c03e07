package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/rank"
)

// Polarity is a shortcut for the sign of an actor's sentiment.
type Polarity string

const (
	PolarityAny      Polarity = ""
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// SentimentFilter keeps articles whose polarity towards Actor is within
// [Min, Max] and, when set, of the given sign. Articles without an entry
// for Actor never pass.
type SentimentFilter struct {
	Actor    string
	Min      *float64
	Max      *float64
	Polarity Polarity
}

// Spec is a user query over the ranked article set. A zero value in any
// dimension means no restriction for that dimension.
type Spec struct {
	Sources       []string
	Countries     []string
	Categories    []string
	MinImportance float64
	Sentiment     *SentimentFilter
	Search        string
	Since         time.Duration // relative to Now
	Now           time.Time
}

// Validate rejects contradictory or incomplete specs.
func (s Spec) Validate() error {
	var problems []string
	if s.MinImportance < 0 {
		problems = append(problems, "min importance must not be negative")
	}
	if s.Since < 0 {
		problems = append(problems, "since must not be negative")
	}
	if sf := s.Sentiment; sf != nil {
		if strings.TrimSpace(sf.Actor) == "" {
			problems = append(problems, "sentiment filter needs an actor")
		}
		for _, v := range []*float64{sf.Min, sf.Max} {
			if v != nil && (*v < -1 || *v > 1) {
				problems = append(problems, fmt.Sprintf("sentiment bound %v outside -1..1", *v))
			}
		}
		if sf.Min != nil && sf.Max != nil && *sf.Min > *sf.Max {
			problems = append(problems, "sentiment min is greater than max")
		}
		switch sf.Polarity {
		case PolarityAny, PolarityPositive, PolarityNegative:
		default:
			problems = append(problems, fmt.Sprintf("unknown polarity %q", sf.Polarity))
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid filter: " + strings.Join(problems, "; "))
	}
	return nil
}

// Filter returns the articles matching every predicate of spec, in input
// order. It never modifies the articles.
func Filter(articles []*news.Article, spec Spec) []*news.Article {
	m := newMatcher(spec)
	out := make([]*news.Article, 0, len(articles))
	for _, a := range articles {
		if m.match(a) {
			out = append(out, a)
		}
	}
	return out
}

// Query is a filter plus presentation choices.
type Query struct {
	Spec  Spec
	Sort  rank.SortKey
	Limit int // 0 = no limit
}

// Run filters, sorts and caps articles. Input is expected in ranked order;
// sorting is stable so equal keys keep that order.
func (q Query) Run(articles []*news.Article) []*news.Article {
	out := Filter(articles, q.Spec)
	if q.Sort != "" {
		now := q.Spec.Now
		if now.IsZero() {
			now = time.Now()
		}
		out = rank.Rank(out, q.Sort, now)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

type matcher struct {
	spec       Spec
	sources    map[string]bool
	countries  map[string]bool
	categories map[string]bool
	search     string
	cutoff     time.Time
}

func newMatcher(spec Spec) *matcher {
	m := &matcher{
		spec:       spec,
		sources:    lowerSet(spec.Sources),
		countries:  lowerSet(spec.Countries),
		categories: lowerSet(spec.Categories),
		search:     strings.ToLower(strings.TrimSpace(spec.Search)),
	}
	if spec.Since > 0 {
		now := spec.Now
		if now.IsZero() {
			now = time.Now()
		}
		m.cutoff = now.Add(-spec.Since)
	}
	return m
}

func (m *matcher) match(a *news.Article) bool {
	if len(m.sources) > 0 && !m.sources[strings.ToLower(a.Source)] {
		return false
	}
	if len(m.countries) > 0 && (a.Country == "" || !m.countries[strings.ToLower(a.Country)]) {
		return false
	}
	if len(m.categories) > 0 && !m.anyCategory(a) {
		return false
	}
	if a.Score < m.spec.MinImportance {
		return false
	}
	if !m.cutoff.IsZero() && a.Published.Before(m.cutoff) {
		return false
	}
	if sf := m.spec.Sentiment; sf != nil && !matchSentiment(a, sf) {
		return false
	}
	if m.search != "" && !m.matchSearch(a) {
		return false
	}
	return true
}

func (m *matcher) anyCategory(a *news.Article) bool {
	for _, c := range a.Categories {
		if m.categories[strings.ToLower(c)] {
			return true
		}
	}
	return false
}

func (m *matcher) matchSearch(a *news.Article) bool {
	return strings.Contains(strings.ToLower(a.Text.Title.Plain), m.search) ||
		strings.Contains(strings.ToLower(a.Text.Summary.Plain), m.search)
}

func matchSentiment(a *news.Article, sf *SentimentFilter) bool {
	v, ok := a.SentimentFor(sf.Actor)
	if !ok {
		return false
	}
	if sf.Min != nil && v < *sf.Min {
		return false
	}
	if sf.Max != nil && v > *sf.Max {
		return false
	}
	switch sf.Polarity {
	case PolarityPositive:
		return v > 0
	case PolarityNegative:
		return v < 0
	}
	return true
}

func lowerSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[strings.ToLower(v)] = true
		}
	}
	return set
}
