package news

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/deusflow/pacwatch/internal/textnorm"
)

// Raw is one feed entry as fetched, before any normalization.
type Raw struct {
	Title       string
	Summary     string
	Body        string
	Link        string
	ImageURL    string
	Published   time.Time
	SourceName  string
	SourceURL   string
	SourceGroup string
	Priority    int
}

// Normalized holds the cleaned variants of an article's text.
type Normalized struct {
	Title   textnorm.Text
	Summary textnorm.Text
	Body    textnorm.Text
}

// body is empty when it only repeats the summary, as it does for feeds
// without separate content.
func (n Normalized) body() textnorm.Text {
	if n.Body.Plain == n.Summary.Plain {
		return textnorm.Text{}
	}
	return n.Body
}

// Match returns the folded title, summary and body joined for keyword scans.
func (n Normalized) Match() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{n.Title.Match, n.Summary.Match, n.body().Match} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Plain returns display text suitable for sentence splitting.
func (n Normalized) Plain() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{n.Title.Plain, n.Summary.Plain, n.body().Plain} {
		if s == "" {
			continue
		}
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			s += "."
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// Article is a news item flowing through one pipeline run. The original
// Title, Summary and Body are kept verbatim for display; matching uses Text.
// Derived fields are written once by the stage that owns them.
type Article struct {
	key string

	Title       string
	Summary     string
	Body        string
	Link        string
	ImageURL    string
	Published   time.Time
	Source      string
	SourceURL   string
	SourceGroup string
	Priority    int

	Text           Normalized
	DisplaySummary string
	Excerpt        string

	// Classifier
	Categories []string
	Country    string
	Keywords   []string
	Tags       []string

	// Sum of distinct category keyword weights, each scaled by its best category multiplier.
	KeywordWeight float64

	// Scorer
	Score float64
	Stars int

	// Sentiment analyzer: actor -> polarity in -1..+1. Missing actor means not mentioned.
	Sentiment map[string]float64

	// Deduplicator
	GroupID        string
	AlsoReportedBy []string
}

// Options controls the display text derived at creation.
type Options struct {
	SummaryMaxSentences int
	ExcerptMaxRunes     int
}

// FromRaw normalizes a raw entry into an Article and fixes its identity key.
func FromRaw(r Raw, opts Options) *Article {
	a := &Article{
		Title:       r.Title,
		Summary:     r.Summary,
		Body:        r.Body,
		Link:        r.Link,
		ImageURL:    r.ImageURL,
		Published:   r.Published,
		Source:      r.SourceName,
		SourceURL:   r.SourceURL,
		SourceGroup: r.SourceGroup,
		Priority:    r.Priority,
		Text: Normalized{
			Title:   textnorm.Normalize(r.Title),
			Summary: textnorm.Normalize(r.Summary),
			Body:    textnorm.Normalize(r.Body),
		},
	}
	a.key = MakeKey(a.Text.Title.Match, r.SourceName)
	a.DisplaySummary = textnorm.Summarize(a.Text.Summary.Plain, opts.SummaryMaxSentences)
	a.Excerpt = textnorm.Excerpt(a.Text.Body.Plain, opts.ExcerptMaxRunes)
	return a
}

// Key is the identity of the article: normalized title plus source.
func (a *Article) Key() string {
	return a.key
}

// SentimentFor reports the polarity towards actor and whether it was mentioned.
func (a *Article) SentimentFor(actor string) (float64, bool) {
	v, ok := a.Sentiment[actor]
	return v, ok
}

// HasCategory reports whether the classifier assigned category.
func (a *Article) HasCategory(category string) bool {
	for _, c := range a.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// MakeKey hashes a folded title and source name into a stable identity.
func MakeKey(foldedTitle, source string) string {
	h := sha1.New()
	h.Write([]byte(foldedTitle + "|" + strings.ToLower(strings.TrimSpace(source))))
	return hex.EncodeToString(h.Sum(nil))
}
