package rank

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/metrics"
	"github.com/deusflow/pacwatch/internal/news"
)

// Deduplicator collapses articles that report the same event. Two articles
// are duplicates when their folded titles reach Threshold similarity and
// their publication times are at most Window apart; groups are the
// transitive closure of that relation.
type Deduplicator struct {
	similarity Similarity
	threshold  float64
	window     time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewDeduplicator(sim Similarity, threshold float64, window time.Duration, m *metrics.Metrics, log *zap.Logger) *Deduplicator {
	if sim == nil {
		sim = Jaccard
	}
	return &Deduplicator{
		similarity: sim,
		threshold:  threshold,
		window:     window,
		metrics:    m,
		logger:     logger.OrNop(log),
	}
}

// Duplicates reports whether a and b belong to the same event.
func (d *Deduplicator) Duplicates(a, b *news.Article) bool {
	gap := a.Published.Sub(b.Published)
	if gap < 0 {
		gap = -gap
	}
	if gap > d.window {
		return false
	}
	return d.similarity.Similarity(a.Text.Title.Match, b.Text.Title.Match) >= d.threshold
}

// Deduplicate returns one representative per duplicate group, in input order
// of the representatives. The representative comes from the highest
// priority source, then the earliest publication, then input order. It
// records the other reporting sources in AlsoReportedBy. Running it again
// on its own output collapses nothing further.
func (d *Deduplicator) Deduplicate(articles []*news.Article) []*news.Article {
	n := len(articles)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d.Duplicates(articles[i], articles[j]) {
				ri, rj := find(i), find(j)
				if ri != rj {
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	reps := make([]int, 0, len(roots))
	for _, r := range roots {
		members := groups[r]
		best := members[0]
		for _, m := range members[1:] {
			if better(articles[m], articles[best]) {
				best = m
			}
		}
		rep := articles[best]
		rep.GroupID = "g-" + shortKey(rep.Key())
		rep.AlsoReportedBy = otherSources(rep, articles, members)
		reps = append(reps, best)
	}

	// representatives keep their relative input order
	sort.Ints(reps)
	out := make([]*news.Article, 0, len(reps))
	for _, i := range reps {
		out = append(out, articles[i])
	}

	if collapsed := n - len(out); collapsed > 0 {
		d.metrics.AddDuplicatesCollapsed(collapsed)
		d.logger.Debug("duplicates collapsed",
			zap.Int("articles", n),
			zap.Int("groups", len(out)),
			zap.Int("collapsed", collapsed))
	}
	return out
}

func better(a, b *news.Article) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Published.Before(b.Published)
}

func otherSources(rep *news.Article, articles []*news.Article, members []int) []string {
	seen := map[string]bool{rep.Source: true}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range rep.AlsoReportedBy {
		add(s)
	}
	for _, m := range members {
		a := articles[m]
		if a == rep {
			continue
		}
		add(a.Source)
		for _, s := range a.AlsoReportedBy {
			add(s)
		}
	}
	return out
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
