// Package relate links tracked actors, and people named with an official
// title, that are mentioned in the same sentence, and aggregates those links
// across the articles of a snapshot.
package relate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"go.uber.org/zap"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/logger"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/textnorm"
)

// Type classifies a link by the cue words of its sentence.
type Type string

const (
	Cooperation Type = "cooperation"
	Conflict    Type = "conflict"
	Economic    Type = "economic"
	Diplomatic  Type = "diplomatic"
	Military    Type = "military"
	Mentioned   Type = "mentioned"
)

// Types lists every link type in precedence order.
var Types = []Type{Cooperation, Conflict, Economic, Diplomatic, Military, Mentioned}

// cues in precedence order: the first type with a cue in the sentence wins.
var cues = []struct {
	typ   Type
	words []string
}{
	{Cooperation, []string{"cooperation", "cooperate", "agreement", "agreements", "partnership", "alliance", "allies", "deal", "treaty", "pact"}},
	{Conflict, []string{"conflict", "tension", "tensions", "dispute", "disputes", "war", "confrontation", "clash", "clashes", "standoff"}},
	{Economic, []string{"trade", "investment", "economic", "financial", "commerce", "tariff", "tariffs", "loan", "aid"}},
	{Diplomatic, []string{"diplomatic", "diplomacy", "talks", "negotiation", "negotiations", "meeting", "summit", "envoy"}},
	{Military, []string{"military", "defense", "defence", "security", "naval", "navy", "army", "forces", "drills"}},
}

// EntityKind tells configured actors from people found in the text.
type EntityKind string

const (
	KindActor  EntityKind = "actor"
	KindPerson EntityKind = "person"
)

var titledPerson = regexp.MustCompile(`\b(?:President|Prime Minister|Foreign Minister|Defen[cs]e Minister|Secretary|General|Admiral)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`)

// Relationship is one link found in one article.
type Relationship struct {
	Source     string
	SourceKind EntityKind
	Target     string
	TargetKind EntityKind
	Type       Type
	Sentence   string
}

type entity struct {
	name string
	kind EntityKind
}

// Extractor finds relationships with one Aho-Corasick pass per sentence over
// the actor aliases. It is immutable after New and safe for concurrent use.
type Extractor struct {
	matcher  *ahocorasick.Matcher
	owners   []int // pattern -> actor index
	actors   []string
	aliases  map[string]bool // folded, to keep titled actors from becoming people
	cueWords []map[string]bool
	logger   *zap.Logger
}

func New(actors []config.Actor, log *zap.Logger) *Extractor {
	x := &Extractor{
		aliases: make(map[string]bool),
		logger:  logger.OrNop(log),
	}
	var patterns []string
	seen := make(map[string]bool)
	for i, a := range actors {
		x.actors = append(x.actors, a.Name)
		for _, alias := range a.Aliases {
			f := textnorm.Fold(alias)
			if f == "" {
				continue
			}
			x.aliases[f] = true
			p := " " + f + " "
			if seen[p] {
				continue
			}
			seen[p] = true
			patterns = append(patterns, p)
			x.owners = append(x.owners, i)
		}
	}
	if len(patterns) > 0 {
		x.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	for _, c := range cues {
		words := make(map[string]bool, len(c.words))
		for _, w := range c.words {
			words[w] = true
		}
		x.cueWords = append(x.cueWords, words)
	}
	x.logger.Debug("relationship extractor initialized",
		zap.Int("actors", len(x.actors)),
		zap.Int("aliases", len(patterns)))
	return x
}

// Extract returns the relationships of one article, one per source, target
// and type, keeping the first sentence that showed it. Pairs are ordered
// actors first in configured order, then people in order of appearance.
func (x *Extractor) Extract(a *news.Article) []Relationship {
	var out []Relationship
	seenLink := make(map[string]bool)
	seenSentence := make(map[string]bool)

	for _, s := range textnorm.Sentences(a.Text.Plain()) {
		folded := textnorm.Fold(s)
		if seenSentence[folded] {
			continue
		}
		seenSentence[folded] = true

		entities := x.entities(s, folded)
		if len(entities) < 2 {
			continue
		}
		typ := x.classify(folded)
		for i, e1 := range entities {
			for _, e2 := range entities[i+1:] {
				key := e1.name + "\x00" + e2.name + "\x00" + string(typ)
				if seenLink[key] {
					continue
				}
				seenLink[key] = true
				out = append(out, Relationship{
					Source:     e1.name,
					SourceKind: e1.kind,
					Target:     e2.name,
					TargetKind: e2.kind,
					Type:       typ,
					Sentence:   s,
				})
			}
		}
	}
	return out
}

func (x *Extractor) entities(sentence, folded string) []entity {
	var out []entity
	if x.matcher != nil {
		hit := make([]bool, len(x.actors))
		for _, h := range x.matcher.MatchThreadSafe([]byte(" " + folded + " ")) {
			if h >= 0 && h < len(x.owners) {
				hit[x.owners[h]] = true
			}
		}
		for i, ok := range hit {
			if ok {
				out = append(out, entity{name: x.actors[i], kind: KindActor})
			}
		}
	}

	seen := make(map[string]bool)
	for _, m := range titledPerson.FindAllStringSubmatch(sentence, -1) {
		name := m[1]
		if seen[name] || x.aliases[textnorm.Fold(name)] {
			continue
		}
		seen[name] = true
		out = append(out, entity{name: name, kind: KindPerson})
	}
	return out
}

func (x *Extractor) classify(folded string) Type {
	words := textnorm.Tokens(folded)
	for i, c := range cues {
		for _, w := range words {
			if x.cueWords[i][w] {
				return c.typ
			}
		}
	}
	return Mentioned
}

func sortTypes(types []Type) {
	rank := make(map[Type]int, len(Types))
	for i, t := range Types {
		rank[t] = i
	}
	sort.Slice(types, func(i, j int) bool { return rank[types[i]] < rank[types[j]] })
}

// ParseType accepts a link type name, case-insensitively.
func ParseType(s string) (Type, bool) {
	for _, t := range Types {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}
