package classify

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/textnorm"
)

const maxTags = 5

type kind int

const (
	kindCategory kind = iota
	kindCountry
)

// mapping ties one dictionary pattern back to the table entry it came from.
type mapping struct {
	kind    kind
	index   int // category or country position in the reference table
	keyword string
	weight  float64
}

// Match is one keyword that counted towards a category.
type Match struct {
	Keyword      string
	Category     string
	Weight       float64
	Multiplier   float64
	Contribution float64
}

// Result is what the classifier derives for one article.
type Result struct {
	Categories    []string
	Country       string
	Keywords      []string
	Tags          []string
	Matches       []Match
	KeywordWeight float64
}

// Classifier assigns categories and a country tag with a single Aho-Corasick
// pass over the folded article text. It is immutable after New and safe for
// concurrent use.
type Classifier struct {
	matcher    *ahocorasick.Matcher
	patterns   []string // " keyword ", padded for word boundaries
	mappings   [][]mapping
	categories []config.Category
	countries  []string
	logger     *zap.Logger
}

// New indexes the category and country keyword tables of ref.
func New(ref *config.Reference, log *zap.Logger) *Classifier {
	c := &Classifier{
		categories: append([]config.Category(nil), ref.Categories...),
		countries:  ref.CountryNames(),
		logger:     logger.OrNop(log),
	}

	byPattern := make(map[string]int)
	add := func(k kind, index int, raw string, weight float64) {
		folded := textnorm.Fold(raw)
		if folded == "" {
			return
		}
		pattern := " " + folded + " "
		i, ok := byPattern[pattern]
		if !ok {
			i = len(c.patterns)
			byPattern[pattern] = i
			c.patterns = append(c.patterns, pattern)
			c.mappings = append(c.mappings, nil)
		}
		// Spellings that fold alike are one keyword of their entry, at the
		// higher weight.
		for j, m := range c.mappings[i] {
			if m.kind == k && m.index == index {
				c.mappings[i][j].weight = max(m.weight, weight)
				return
			}
		}
		c.mappings[i] = append(c.mappings[i], mapping{kind: k, index: index, keyword: folded, weight: weight})
	}

	for i, cat := range ref.Categories {
		for _, kw := range sortedKeys(cat.Keywords) {
			add(kindCategory, i, kw, cat.Keywords[kw])
		}
	}
	for i, country := range ref.Countries {
		for _, kw := range sortedKeys(country.Keywords) {
			add(kindCountry, i, kw, country.Keywords[kw])
		}
	}

	if len(c.patterns) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.patterns)
	}
	c.logger.Debug("classifier initialized",
		zap.Int("patterns", len(c.patterns)),
		zap.Int("categories", len(c.categories)),
		zap.Int("countries", len(c.countries)))
	return c
}

// Apply classifies a and writes the classifier-owned fields.
func (c *Classifier) Apply(a *news.Article) Result {
	res := c.Classify(a.Text.Match())
	a.Categories = res.Categories
	a.Country = res.Country
	a.Keywords = res.Keywords
	a.Tags = res.Tags
	a.KeywordWeight = res.KeywordWeight
	return res
}

// Classify scans folded text. No match is a valid empty result.
func (c *Classifier) Classify(folded string) Result {
	var res Result
	if folded == "" {
		return res
	}
	if c.matcher == nil {
		res.Tags = fillTags(nil, folded)
		return res
	}
	text := " " + folded + " "

	hits := c.matcher.MatchThreadSafe([]byte(text))
	seen := make(map[int]bool, len(hits))
	var matched []int
	for _, h := range hits {
		if h < 0 || h >= len(c.patterns) || seen[h] {
			continue
		}
		seen[h] = true
		matched = append(matched, h)
	}

	catMatched := c.survivors(text, matched, kindCategory)
	countryMatched := c.survivors(text, matched, kindCountry)

	// Categories, multi-label, in configured order.
	catHit := make([]bool, len(c.categories))
	best := make(map[string]Match)
	for _, m := range catMatched {
		cat := c.categories[m.index]
		catHit[m.index] = true
		contribution := m.weight * cat.Multiplier
		res.Matches = append(res.Matches, Match{
			Keyword:      m.keyword,
			Category:     cat.Name,
			Weight:       m.weight,
			Multiplier:   cat.Multiplier,
			Contribution: contribution,
		})
		// A keyword listed under several categories counts once, at its best.
		if prev, ok := best[m.keyword]; !ok || contribution > prev.Contribution {
			best[m.keyword] = Match{Keyword: m.keyword, Category: cat.Name, Contribution: contribution}
		}
	}
	for i, hit := range catHit {
		if hit {
			res.Categories = append(res.Categories, c.categories[i].Name)
		}
	}

	tags := make([]Match, 0, len(best))
	for _, m := range best {
		tags = append(tags, m)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Contribution != tags[j].Contribution {
			return tags[i].Contribution > tags[j].Contribution
		}
		return tags[i].Keyword < tags[j].Keyword
	})
	for i, m := range tags {
		res.KeywordWeight += m.Contribution
		if i < maxTags {
			res.Tags = append(res.Tags, m.Keyword)
		}
	}
	res.Tags = fillTags(res.Tags, folded)

	// Country, single-valued: highest cumulative weight, earliest on ties.
	totals := make([]float64, len(c.countries))
	for _, m := range countryMatched {
		totals[m.index] += m.weight
	}
	bestIdx := -1
	for i, total := range totals {
		if total > 0 && (bestIdx < 0 || total > totals[bestIdx]) {
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		res.Country = c.countries[bestIdx]
	}

	kwSet := make(map[string]bool)
	for _, m := range catMatched {
		kwSet[m.keyword] = true
	}
	for _, m := range countryMatched {
		kwSet[m.keyword] = true
	}
	for kw := range kwSet {
		res.Keywords = append(res.Keywords, kw)
	}
	sort.Strings(res.Keywords)

	sort.SliceStable(res.Matches, func(i, j int) bool {
		if res.Matches[i].Category != res.Matches[j].Category {
			return c.categoryIndex(res.Matches[i].Category) < c.categoryIndex(res.Matches[j].Category)
		}
		return res.Matches[i].Keyword < res.Matches[j].Keyword
	})
	return res
}

// survivors returns the mappings of kind k whose keyword occurs at least once
// outside every longer matched keyword of the same kind, so "missile test"
// does not also count "missile".
func (c *Classifier) survivors(text string, matched []int, k kind) []mapping {
	type span struct{ start, end int }
	var keywords []string
	for _, idx := range matched {
		for _, m := range c.mappings[idx] {
			if m.kind == k {
				keywords = append(keywords, c.patterns[idx])
				break
			}
		}
	}
	spans := make(map[string][]span, len(keywords))
	for _, p := range keywords {
		for off := 0; ; {
			i := strings.Index(text[off:], p)
			if i < 0 {
				break
			}
			start := off + i
			spans[p] = append(spans[p], span{start, start + len(p)})
			// Patterns share their padding space with neighbours.
			off = start + len(p) - 1
		}
	}

	covered := func(p string, s span) bool {
		for _, q := range keywords {
			if len(q) <= len(p) {
				continue
			}
			for _, t := range spans[q] {
				if t.start <= s.start && s.end <= t.end {
					return true
				}
			}
		}
		return false
	}

	var out []mapping
	for _, idx := range matched {
		p := c.patterns[idx]
		free := false
		for _, s := range spans[p] {
			if !covered(p, s) {
				free = true
				break
			}
		}
		if !free {
			continue
		}
		for _, m := range c.mappings[idx] {
			if m.kind == k {
				out = append(out, m)
			}
		}
	}
	return out
}

func (c *Classifier) categoryIndex(name string) int {
	for i, cat := range c.categories {
		if cat.Name == name {
			return i
		}
	}
	return len(c.categories)
}

func sortedKeys(kw config.KeywordWeights) []string {
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "amid": true, "been": true,
	"before": true, "being": true, "both": true, "could": true, "does": true, "during": true,
	"each": true, "from": true, "have": true, "having": true, "here": true, "into": true,
	"just": true, "more": true, "most": true, "news": true, "only": true, "other": true,
	"over": true, "said": true, "says": true, "some": true, "such": true, "than": true,
	"that": true, "their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "under": true, "very": true,
	"were": true, "what": true, "when": true, "where": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "year": true, "your": true,
}

// fillTags tops tags up to maxTags with the most frequent content words.
func fillTags(tags []string, folded string) []string {
	if len(tags) >= maxTags {
		return tags
	}
	have := make(map[string]bool, maxTags)
	for _, t := range tags {
		for _, w := range strings.Fields(t) {
			have[w] = true
		}
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range textnorm.Tokens(folded) {
		if utf8.RuneCountInString(w) < 4 || stopwords[w] || have[w] || isNumber(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	for _, w := range order {
		if len(tags) >= maxTags {
			break
		}
		tags = append(tags, w)
	}
	return tags
}

func isNumber(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
