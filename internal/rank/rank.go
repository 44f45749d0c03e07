package rank

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/pacwatch/internal/news"
)

// SortKey selects the ordering of a ranked sequence.
type SortKey string

const (
	SortImportance SortKey = "importance"
	SortDate       SortKey = "date"
	SortRelevance  SortKey = "relevance"
	SortSource     SortKey = "source"
)

// ParseSortKey accepts the known keys case-insensitively; empty means
// importance.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortImportance, nil
	case SortImportance, SortDate, SortRelevance, SortSource:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Rank returns a stably sorted copy of articles. Articles that compare equal
// keep their relative input order. now anchors the relevance key.
func Rank(articles []*news.Article, key SortKey, now time.Time) []*news.Article {
	out := append([]*news.Article(nil), articles...)

	var less func(a, b *news.Article) bool
	switch key {
	case SortDate:
		less = func(a, b *news.Article) bool {
			return a.Published.After(b.Published)
		}
	case SortRelevance:
		less = func(a, b *news.Article) bool {
			return Relevance(a, now) > Relevance(b, now)
		}
	case SortSource:
		less = func(a, b *news.Article) bool {
			return strings.ToLower(a.Source) < strings.ToLower(b.Source)
		}
	default:
		less = func(a, b *news.Article) bool {
			if a.Score != b.Score {
				return a.Score > b.Score
			}
			return a.Published.After(b.Published)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Relevance weighs importance by freshness: score / (days old + 1).
func Relevance(a *news.Article, now time.Time) float64 {
	days := int(now.Sub(a.Published) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return a.Score / float64(days+1)
}
