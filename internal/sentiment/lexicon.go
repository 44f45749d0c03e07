package sentiment

import (
	"context"
	"strings"

	"github.com/deusflow/pacwatch/internal/textnorm"
)

// Weighted cue words, folded. Phrases are matched on word boundaries.
var positiveWords = map[string]float64{
	"agreement": 0.6, "agree": 0.5, "agreed": 0.5, "cooperation": 0.6, "cooperate": 0.5,
	"partnership": 0.6, "partner": 0.4, "ally": 0.4, "allies": 0.4, "support": 0.4,
	"supports": 0.4, "welcome": 0.5, "welcomed": 0.5, "welcomes": 0.5, "aid": 0.4,
	"assistance": 0.4, "peace": 0.6, "peaceful": 0.6, "stability": 0.5, "stable": 0.4,
	"progress": 0.5, "success": 0.6, "successful": 0.6, "boost": 0.4, "strengthen": 0.5,
	"strengthens": 0.5, "friendship": 0.6, "deal": 0.3, "dialogue": 0.4, "talks": 0.2,
	"investment": 0.3, "growth": 0.4, "recovery": 0.4, "praise": 0.6, "praised": 0.6,
	"resolve": 0.4, "resolved": 0.5, "ceasefire": 0.5, "relief": 0.4, "landmark": 0.5,
	"de escalation": 0.6, "good faith": 0.5, "win win": 0.6,
}

var negativeWords = map[string]float64{
	"tension": 0.5, "tensions": 0.5, "conflict": 0.6, "threat": 0.6, "threatens": 0.6,
	"threatened": 0.6, "condemn": 0.7, "condemns": 0.7, "condemned": 0.7, "protest": 0.4,
	"protests": 0.4, "protested": 0.4, "dispute": 0.5, "aggression": 0.8, "aggressive": 0.7,
	"coercion": 0.7, "coercive": 0.7, "harass": 0.6, "harassment": 0.7, "clash": 0.7,
	"clashes": 0.7, "attack": 0.8, "attacks": 0.8, "sanction": 0.5, "sanctions": 0.5,
	"crisis": 0.6, "violation": 0.6, "violations": 0.6, "accuse": 0.5, "accused": 0.5,
	"accuses": 0.5, "warn": 0.4, "warns": 0.4, "warning": 0.4, "provocation": 0.7,
	"provocative": 0.7, "dangerous": 0.6, "collapse": 0.6, "coup": 0.7, "unrest": 0.6,
	"violence": 0.8, "illegal": 0.6, "intimidation": 0.7, "escalation": 0.6, "blockade": 0.6,
	"collision": 0.5, "rammed": 0.7, "water cannon": 0.7, "espionage": 0.6, "corruption": 0.6,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "nor": true, "neither": true,
}

// Lexicon is an offline, deterministic polarity capability.
type Lexicon struct {
	positive map[string]float64
	negative map[string]float64
	maxWords int
}

func NewLexicon() *Lexicon {
	l := &Lexicon{positive: positiveWords, negative: negativeWords}
	for _, m := range []map[string]float64{positiveWords, negativeWords} {
		for k := range m {
			if n := len(strings.Fields(k)); n > l.maxWords {
				l.maxWords = n
			}
		}
	}
	return l
}

// Polarity returns (pos - neg) / (pos + neg), 0 when no cue matches. A
// negator directly before a cue flips it.
func (l *Lexicon) Polarity(_ context.Context, text string) (float64, error) {
	tokens := textnorm.Tokens(textnorm.Fold(text))

	var pos, neg float64
	for i := 0; i < len(tokens); {
		matched := false
		for n := l.maxWords; n >= 1 && !matched; n-- {
			if i+n > len(tokens) {
				continue
			}
			phrase := strings.Join(tokens[i:i+n], " ")
			p, isPos := l.positive[phrase]
			q, isNeg := l.negative[phrase]
			if !isPos && !isNeg {
				continue
			}
			negated := i > 0 && negators[tokens[i-1]]
			switch {
			case isPos && !negated, isNeg && negated:
				pos += p + q
			default:
				neg += p + q
			}
			i += n
			matched = true
		}
		if !matched {
			i++
		}
	}

	total := pos + neg
	if total == 0 {
		return 0, nil
	}
	return (pos - neg) / total, nil
}
