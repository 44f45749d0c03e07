package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deusflow/pacwatch/internal/news"
)

// FormatTop renders the first limit articles of a snapshot as plain text.
func FormatTop(snap *Snapshot, limit int) string {
	var b strings.Builder

	if snap == nil {
		return "No snapshot yet.\n"
	}

	b.WriteString(fmt.Sprintf("Pacific news watch | run %s | %s\n", snap.RunID, snap.GeneratedAt.Format("2006-01-02 15:04 MST")))
	b.WriteString(strings.Repeat("━", 60) + "\n\n")

	if len(snap.Articles) == 0 {
		b.WriteString("No articles.\n")
		return b.String()
	}

	for i, a := range snap.Articles {
		if limit > 0 && i >= limit {
			break
		}
		b.WriteString(formatSingleArticle(a, i+1))
	}

	b.WriteString(strings.Repeat("━", 60) + "\n")
	b.WriteString(fmt.Sprintf("%d articles from %d fetched entries\n", len(snap.Articles), snap.Fetched))
	return b.String()
}

func formatSingleArticle(a *news.Article, number int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%d. %s %s\n", number, strings.Repeat("★", a.Stars), a.Text.Title.Plain))
	b.WriteString(fmt.Sprintf("   %s | %s | score %.2f\n", a.Source, a.Published.Format("2006-01-02 15:04"), a.Score))

	var facets []string
	if len(a.Categories) > 0 {
		facets = append(facets, strings.Join(a.Categories, ", "))
	}
	if a.Country != "" {
		facets = append(facets, a.Country)
	}
	if len(facets) > 0 {
		b.WriteString("   " + strings.Join(facets, " | ") + "\n")
	}

	if len(a.Sentiment) > 0 {
		b.WriteString("   sentiment: " + formatSentiment(a.Sentiment) + "\n")
	}
	if len(a.AlsoReportedBy) > 0 {
		b.WriteString("   also reported by: " + strings.Join(a.AlsoReportedBy, ", ") + "\n")
	}
	if a.DisplaySummary != "" {
		b.WriteString("   " + a.DisplaySummary + "\n")
	}
	b.WriteString("   " + a.Link + "\n\n")

	return b.String()
}

func formatSentiment(s map[string]float64) string {
	actors := make([]string, 0, len(s))
	for actor := range s {
		actors = append(actors, actor)
	}
	sort.Strings(actors)
	parts := make([]string, 0, len(actors))
	for _, actor := range actors {
		parts = append(parts, fmt.Sprintf("%s %+.2f", actor, s[actor]))
	}
	return strings.Join(parts, ", ")
}
