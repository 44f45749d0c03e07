package score

import (
	"math"
	"time"

	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/news"
)

// Curve selects how the recency bonus falls off after the full window.
type Curve string

const (
	CurveLinear      Curve = "linear"
	CurveExponential Curve = "exponential"
	CurveStep        Curve = "step"
)

// Decay parameterizes the recency bonus. The bonus is MaxBonus for ages up to
// FullWindow, zero from Horizon on, and never increases with age in between.
type Decay struct {
	Curve      Curve
	MaxBonus   float64
	FullWindow time.Duration
	Horizon    time.Duration
	HalfLife   time.Duration // exponential only
}

// Scorer computes importance from classifier keyword weight and recency.
type Scorer struct {
	decay       Decay
	starDivisor float64
}

func New(decay Decay, starDivisor float64) *Scorer {
	if starDivisor <= 0 {
		starDivisor = 20
	}
	return &Scorer{decay: decay, starDivisor: starDivisor}
}

// FromConfig builds a Scorer from validated settings.
func FromConfig(cfg *config.Config) *Scorer {
	return New(Decay{
		Curve:      Curve(cfg.RecencyCurve),
		MaxBonus:   cfg.RecencyMaxBonus,
		FullWindow: cfg.RecencyFullWindow,
		Horizon:    cfg.RecencyHorizon,
		HalfLife:   cfg.RecencyHalfLife,
	}, cfg.StarDivisor)
}

// RecencyBonus returns the bonus for an article of the given age. Negative
// ages (clock skew, future timestamps) count as brand new.
func (d Decay) RecencyBonus(age time.Duration) float64 {
	if d.MaxBonus <= 0 {
		return 0
	}
	if age < 0 {
		age = 0
	}
	if age <= d.FullWindow {
		return d.MaxBonus
	}
	if age >= d.Horizon {
		return 0
	}

	past := float64(age - d.FullWindow)
	switch d.Curve {
	case CurveExponential:
		if d.HalfLife <= 0 {
			return 0
		}
		return d.MaxBonus * math.Pow(0.5, past/float64(d.HalfLife))
	case CurveStep:
		return d.MaxBonus / 2
	default:
		span := float64(d.Horizon - d.FullWindow)
		return d.MaxBonus * (1 - past/span)
	}
}

// Score returns keyword weight plus recency bonus, rounded to two decimals.
func (s *Scorer) Score(keywordWeight float64, published, now time.Time) float64 {
	if keywordWeight < 0 || math.IsNaN(keywordWeight) {
		keywordWeight = 0
	}
	var bonus float64
	if !published.IsZero() {
		bonus = s.decay.RecencyBonus(now.Sub(published))
	}
	return math.Round((keywordWeight+bonus)*100) / 100
}

// Stars maps a score onto a 1..5 rating.
func (s *Scorer) Stars(score float64) int {
	stars := int(math.Round(score / s.starDivisor))
	if stars < 1 {
		return 1
	}
	if stars > 5 {
		return 5
	}
	return stars
}

// Apply writes the scorer-owned fields of a. now is fixed per run so every
// article in a run ages against the same instant.
func (s *Scorer) Apply(a *news.Article, now time.Time) {
	a.Score = s.Score(a.KeywordWeight, a.Published, now)
	a.Stars = s.Stars(a.Score)
}
