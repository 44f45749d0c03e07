package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/filter"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/relate"
)

// ReportKind selects the sections of a report.
type ReportKind string

const (
	ReportComprehensive ReportKind = "comprehensive"
	ReportSummary       ReportKind = "summary"
	ReportSecurity      ReportKind = "security"
	ReportEconomic      ReportKind = "economic"
)

const DefaultReportTitle = "Indo-Pacific Region: Current Developments and Sentiment Analysis"

func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return ReportComprehensive, nil
	case ReportComprehensive, ReportSummary, ReportSecurity, ReportEconomic:
		return k, nil
	}
	return "", fmt.Errorf("unknown report type %q (want comprehensive, summary, security or economic)", s)
}

// ReportOptions configures FormatReport.
type ReportOptions struct {
	Kind       ReportKind
	Title      string
	Filter     filter.Spec // applied before any section is built
	Sections   config.ReportSections
	Categories []string // configured order, for the per-category summary
	PerSection int      // articles listed per heading, 0 means 5
}

// FormatReport renders a Markdown briefing from a snapshot.
func FormatReport(snap *Snapshot, opts ReportOptions) (string, error) {
	kind, err := ParseReportKind(string(opts.Kind))
	if err != nil {
		return "", err
	}
	if err := opts.Filter.Validate(); err != nil {
		return "", err
	}
	if opts.Title == "" {
		opts.Title = DefaultReportTitle
	}
	if opts.PerSection <= 0 {
		opts.PerSection = 5
	}
	if snap == nil {
		return "No snapshot yet.\n", nil
	}

	articles := filter.Filter(snap.Articles, opts.Filter)
	switch kind {
	case ReportSecurity:
		articles = inCategories(articles, opts.Sections.Security)
	case ReportEconomic:
		articles = inCategories(articles, opts.Sections.Economic)
	}
	if len(articles) == 0 {
		return "## No articles available for the selected filters.\n\nAdjust the filters or the time period.\n", nil
	}

	r := &report{snap: snap, opts: opts, articles: articles}
	switch kind {
	case ReportSummary:
		r.summary()
	case ReportSecurity:
		r.focused(" - Security Focus", "Security Overview", "Major Security Developments",
			opts.Sections.Security, "Security Relations", relate.Conflict, relate.Military)
	case ReportEconomic:
		r.focused(" - Economic Focus", "Economic Overview", "Major Economic Developments",
			opts.Sections.Economic, "Economic Relations", relate.Economic, relate.Cooperation)
	default:
		r.comprehensive()
	}
	return r.b.String(), nil
}

type report struct {
	b        strings.Builder
	snap     *Snapshot
	opts     ReportOptions
	articles []*news.Article
}

func (r *report) comprehensive() {
	r.header("")
	r.heading(2, "Executive Summary")
	r.executiveSummary()

	n := 0
	for _, s := range []struct {
		title      string
		categories []string
	}{
		{"Security Developments", r.opts.Sections.Security},
		{"Economic Developments", r.opts.Sections.Economic},
		{"Social Developments", r.opts.Sections.Social},
	} {
		if len(inCategories(r.articles, s.categories)) == 0 {
			continue
		}
		n++
		r.heading(2, fmt.Sprintf("%d. %s", n, s.title))
		r.byCategory(s.categories, r.opts.PerSection)
	}

	n++
	r.heading(2, fmt.Sprintf("%d. Relations", n))
	r.relations()

	n++
	r.heading(2, fmt.Sprintf("%d. Sentiment Analysis", n))
	r.sentiment(true)
	r.footer()
}

func (r *report) summary() {
	r.header(" - Summary")
	r.heading(2, "Key Developments")
	r.executiveSummary()
	r.heading(2, "Top Stories by Category")
	r.byCategory(r.opts.Categories, min(3, r.opts.PerSection))
	r.heading(2, "Sentiment Analysis")
	r.sentiment(false)
	r.footer()
}

func (r *report) focused(suffix, overview, developments string, categories []string, relationsTitle string, types ...relate.Type) {
	r.header(suffix)
	r.heading(2, overview)
	r.executiveSummary()
	r.heading(2, developments)
	r.byCategory(categories, r.opts.PerSection)
	r.heading(2, relationsTitle)
	r.relations(types...)
	r.heading(2, "Sentiment Analysis")
	r.sentiment(false)
	r.footer()
}

func (r *report) header(suffix string) {
	fmt.Fprintf(&r.b, "# %s%s\n", r.opts.Title, suffix)
	fmt.Fprintf(&r.b, "*Report date: %s | run %s*\n", r.snap.GeneratedAt.Format("January 2, 2006"), r.snap.RunID)
}

func (r *report) heading(level int, title string) {
	fmt.Fprintf(&r.b, "\n%s %s\n\n", strings.Repeat("#", level), title)
}

func (r *report) executiveSummary() {
	sources := make(map[string]bool)
	categories := make(map[string]int)
	countries := make(map[string]int)
	for _, a := range r.articles {
		sources[a.Source] = true
		for _, c := range a.Categories {
			categories[c]++
		}
		if a.Country != "" {
			countries[a.Country]++
		}
	}

	fmt.Fprintf(&r.b, "Analysis of %d %s from %d %s published %s.",
		len(r.articles), plural(len(r.articles), "article"), len(sources), plural(len(sources), "source"), r.dateRange())
	if top := topCounts(categories, 3); top != "" {
		fmt.Fprintf(&r.b, " Most covered topics: %s.", top)
	}
	if top := topCounts(countries, 3); top != "" {
		fmt.Fprintf(&r.b, " Most reported countries: %s.", top)
	}
	fmt.Fprintf(&r.b, " Coverage shows %s.\n", overallSentiment(r.articles))
}

// byCategory lists the top articles of each category in order. An article
// is listed under its first matching category only.
func (r *report) byCategory(categories []string, limit int) {
	listed := make(map[*news.Article]bool)
	wrote := false
	for _, c := range categories {
		var picked []*news.Article
		for _, a := range inCategories(r.articles, []string{c}) {
			if len(picked) >= limit {
				break
			}
			if listed[a] {
				continue
			}
			listed[a] = true
			picked = append(picked, a)
		}
		if len(picked) == 0 {
			continue
		}
		if wrote {
			r.b.WriteString("\n")
		}
		wrote = true
		fmt.Fprintf(&r.b, "### %s\n\n", c)
		for _, a := range picked {
			r.articleLine(a)
		}
	}
	if !wrote {
		r.b.WriteString("No significant developments in the analyzed period.\n")
	}
}

func (r *report) articleLine(a *news.Article) {
	fmt.Fprintf(&r.b, "- **[%s](%s)** (%s, %s) %s\n",
		a.Text.Title.Plain, a.Link, a.Source, a.Published.Format("Jan 2"), strings.Repeat("★", a.Stars))
	if a.DisplaySummary != "" {
		fmt.Fprintf(&r.b, "  %s\n", a.DisplaySummary)
	}
}

// relations lists the snapshot's links that the report's articles show,
// weighted by those articles only. With types, only links of one of them.
func (r *report) relations(types ...relate.Type) {
	links := make(map[string]bool, len(r.articles))
	for _, a := range r.articles {
		links[a.Link] = true
	}

	type line struct {
		edge   relate.Edge
		weight int
	}
	var lines []line
	if r.snap.Relations != nil {
		for _, e := range r.snap.Relations.Edges {
			if len(types) > 0 && !anyType(e.Types, types) {
				continue
			}
			weight := 0
			for _, ref := range e.Articles {
				if links[ref.Link] {
					weight++
				}
			}
			if weight > 0 {
				lines = append(lines, line{e, weight})
			}
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].weight > lines[j].weight })

	if len(lines) == 0 {
		r.b.WriteString("No relationships between tracked actors in the analyzed period.\n")
		return
	}
	for i, l := range lines {
		if i >= r.opts.PerSection {
			break
		}
		names := make([]string, 0, len(l.edge.Types))
		for _, t := range l.edge.Types {
			names = append(names, string(t))
		}
		fmt.Fprintf(&r.b, "- %s and %s: %d %s (%s)\n",
			l.edge.Source, l.edge.Target, l.weight, plural(l.weight, "article"), strings.Join(names, ", "))
	}
}

func (r *report) sentiment(detailed bool) {
	type actorStat struct {
		name     string
		sum      float64
		n        int
		low      *news.Article
		high     *news.Article
		lowScore float64
		hiScore  float64
	}
	stats := make(map[string]*actorStat)
	for _, a := range r.articles {
		for actor, v := range a.Sentiment {
			s, ok := stats[actor]
			if !ok {
				s = &actorStat{name: actor, lowScore: math.Inf(1), hiScore: math.Inf(-1)}
				stats[actor] = s
			}
			s.sum += v
			s.n++
			if v < s.lowScore {
				s.low, s.lowScore = a, v
			}
			if v > s.hiScore {
				s.high, s.hiScore = a, v
			}
		}
	}
	if len(stats) == 0 {
		r.b.WriteString("Insufficient sentiment data for analysis.\n")
		return
	}

	list := make([]*actorStat, 0, len(stats))
	for _, s := range stats {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		mi, mj := math.Abs(list[i].sum/float64(list[i].n)), math.Abs(list[j].sum/float64(list[j].n))
		if mi != mj {
			return mi > mj
		}
		return list[i].name < list[j].name
	})

	for i, s := range list {
		mean := s.sum / float64(s.n)
		if !detailed {
			fmt.Fprintf(&r.b, "- %s: %s (%+.2f, %d %s)\n", s.name, polarityLabel(mean), mean, s.n, plural(s.n, "article"))
			continue
		}
		if i > 0 {
			r.b.WriteString("\n")
		}
		fmt.Fprintf(&r.b, "### %s: %s\n\n", s.name, polarityLabel(mean))
		fmt.Fprintf(&r.b, "- Mean polarity %+.2f across %d %s\n", mean, s.n, plural(s.n, "article"))
		if s.lowScore < 0 {
			fmt.Fprintf(&r.b, "- Most negative: [%s](%s) (%+.2f)\n", s.low.Text.Title.Plain, s.low.Link, s.lowScore)
		}
		if s.hiScore > 0 {
			fmt.Fprintf(&r.b, "- Most positive: [%s](%s) (%+.2f)\n", s.high.Text.Title.Plain, s.high.Link, s.hiScore)
		}
	}
}

func (r *report) footer() {
	fmt.Fprintf(&r.b, "\n---\n*Based on %d %s published %s.*\n", len(r.articles), plural(len(r.articles), "article"), r.dateRange())
}

func (r *report) dateRange() string {
	first, last := r.articles[0].Published, r.articles[0].Published
	for _, a := range r.articles[1:] {
		if a.Published.Before(first) {
			first = a.Published
		}
		if a.Published.After(last) {
			last = a.Published
		}
	}
	const layout = "January 2, 2006"
	if first.Format(layout) == last.Format(layout) {
		return "on " + first.Format(layout)
	}
	return "between " + first.Format(layout) + " and " + last.Format(layout)
}

func inCategories(articles []*news.Article, categories []string) []*news.Article {
	if len(categories) == 0 {
		return nil
	}
	return filter.Filter(articles, filter.Spec{Categories: categories})
}

func topCounts(counts map[string]int, n int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%d)", name, counts[name]))
	}
	return strings.Join(parts, ", ")
}

func overallSentiment(articles []*news.Article) string {
	sum, n := 0.0, 0
	for _, a := range articles {
		for _, v := range a.Sentiment {
			sum += v
			n++
		}
	}
	if n == 0 {
		return "mixed sentiment"
	}
	switch mean := sum / float64(n); {
	case mean > 0.2:
		return "strongly positive sentiment"
	case mean > 0:
		return "cautiously optimistic sentiment"
	case mean > -0.2:
		return "mixed sentiment"
	default:
		return "predominantly negative sentiment"
	}
}

func polarityLabel(v float64) string {
	switch {
	case v > 0.1:
		return "POSITIVE"
	case v < -0.1:
		return "NEGATIVE"
	}
	return "NEUTRAL"
}

func anyType(have []relate.Type, want []relate.Type) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
