// Package textnorm turns feed markup into display text and matching text.
// Nothing here returns an error: malformed input degrades to best-effort
// plain text.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text is a normalized pair: Plain keeps case and punctuation for display and
// sentence splitting, Match is case- and accent-folded for keyword matching.
type Text struct {
	Plain string
	Match string
}

// Normalize cleans raw feed text (possibly HTML) into a Text.
func Normalize(raw string) Text {
	plain := Clean(raw)
	return Text{Plain: plain, Match: Fold(plain)}
}

var (
	reTags     = regexp.MustCompile(`<[^>]*>`)
	reSpaces   = regexp.MustCompile(`\s+`)
	skipMarkup = map[string]bool{"script": true, "style": true, "noscript": true, "iframe": true}
)

// Clean strips markup and entities and collapses whitespace. Case and
// punctuation are preserved.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToValidUTF8(raw, " ")

	var text string
	if strings.ContainsAny(s, "<&") {
		text = htmlText(s)
	} else {
		text = s
	}
	text = stripControl(text)
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}

// htmlText extracts text nodes with a separator between elements, so
// "<p>a</p><p>b</p>" yields "a b" rather than "ab".
func htmlText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return html.UnescapeString(reTags.ReplaceAllString(s, " "))
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipMarkup[n.Data] {
				return
			}
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			b.WriteByte(' ')
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	// Feeds sometimes double-escape entities ("&amp;amp;").
	out := b.String()
	if strings.Contains(out, "&") {
		out = html.UnescapeString(out)
	}
	return out
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == utf8.RuneError:
			return ' '
		case unicode.IsControl(r) && !unicode.IsSpace(r):
			return -1
		}
		return r
	}, s)
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lower-cases, removes accents and replaces everything that is not a
// letter or digit with a single space. Keywords and text folded the same way
// can be matched on word boundaries by padding both with spaces.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(strings.ToValidUTF8(s, " "))
	if folded, _, err := transform.String(accentFolder, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits folded text into words.
func Tokens(folded string) []string {
	return strings.Fields(folded)
}

// Excerpt shortens plain text to at most maxRunes runes, cutting at the last
// word boundary and appending an ellipsis when it had to cut.
func Excerpt(plain string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(plain) <= maxRunes {
		return plain
	}
	runes := []rune(plain)
	cut := string(runes[:maxRunes])
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}

// Sentences splits plain text after '.', '!' or '?' followed by whitespace.
func Sentences(plain string) []string {
	var out []string
	start := 0
	rs := []rune(plain)
	for i := 0; i < len(rs); i++ {
		switch rs[i] {
		case '.', '!', '?':
			if i+1 < len(rs) && unicode.IsSpace(rs[i+1]) {
				if s := strings.TrimSpace(string(rs[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(rs[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// Summarize keeps the first maxSentences sentences of plain text.
func Summarize(plain string, maxSentences int) string {
	sentences := Sentences(plain)
	if maxSentences <= 0 || len(sentences) <= maxSentences {
		return plain
	}
	return strings.Join(sentences[:maxSentences], " ")
}

// FirstImage returns the src of the first <img> in an HTML fragment.
func FirstImage(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}
