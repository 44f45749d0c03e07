package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/pacwatch/internal/classify"
	"github.com/deusflow/pacwatch/internal/config"
	"github.com/deusflow/pacwatch/internal/news"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func decay(curve Curve) Decay {
	return Decay{
		Curve:      curve,
		MaxBonus:   20,
		FullWindow: 6 * time.Hour,
		Horizon:    72 * time.Hour,
		HalfLife:   12 * time.Hour,
	}
}

func TestRecencyBonus_Bounds(t *testing.T) {
	for _, curve := range []Curve{CurveLinear, CurveExponential, CurveStep} {
		t.Run(string(curve), func(t *testing.T) {
			d := decay(curve)
			assert.Equal(t, 20.0, d.RecencyBonus(-time.Hour))
			assert.Equal(t, 20.0, d.RecencyBonus(0))
			assert.Equal(t, 20.0, d.RecencyBonus(6*time.Hour))
			assert.Zero(t, d.RecencyBonus(72*time.Hour))
			assert.Zero(t, d.RecencyBonus(30*24*time.Hour))
		})
	}
}

func TestRecencyBonus_MonotoneNonIncreasing(t *testing.T) {
	for _, curve := range []Curve{CurveLinear, CurveExponential, CurveStep} {
		t.Run(string(curve), func(t *testing.T) {
			d := decay(curve)
			prev := d.RecencyBonus(0)
			for age := time.Duration(0); age <= 96*time.Hour; age += 17 * time.Minute {
				b := d.RecencyBonus(age)
				assert.GreaterOrEqual(t, b, 0.0)
				assert.LessOrEqual(t, b, prev, "age %s", age)
				prev = b
			}
		})
	}
}

func TestRecencyBonus_Linear(t *testing.T) {
	d := decay(CurveLinear)
	// halfway between 6h and 72h
	assert.InDelta(t, 10.0, d.RecencyBonus(39*time.Hour), 1e-9)
}

func TestRecencyBonus_Exponential(t *testing.T) {
	d := decay(CurveExponential)
	assert.InDelta(t, 10.0, d.RecencyBonus(18*time.Hour), 1e-9)
	assert.InDelta(t, 5.0, d.RecencyBonus(30*time.Hour), 1e-9)
}

func TestScore_NoKeywordsIsRecencyBaseline(t *testing.T) {
	s := New(decay(CurveLinear), 20)
	published := now.Add(-39 * time.Hour)

	assert.Equal(t, 10.0, s.Score(0, published, now))
	assert.Equal(t, 20.0, s.Score(0, now, now))
	assert.Zero(t, s.Score(0, now.Add(-100*time.Hour), now))
}

func TestScore_Deterministic(t *testing.T) {
	s := New(decay(CurveExponential), 20)
	published := now.Add(-20 * time.Hour)
	first := s.Score(13.5, published, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(13.5, published, now))
	}
}

func TestScore_MissileTestScenario(t *testing.T) {
	ref := &config.Reference{Categories: []config.Category{
		{Name: "Military & Defense", Multiplier: 1, Keywords: config.KeywordWeights{"destroyer": 5, "missile": 8}},
	}}
	c := classify.New(ref, nil)
	s := New(decay(CurveLinear), 20)

	a := news.FromRaw(news.Raw{Title: "Missile test", Published: now.Add(-2 * time.Hour), SourceName: "X"}, news.Options{})
	c.Apply(a)
	s.Apply(a, now)

	assert.Equal(t, 8.0+20.0, a.Score)
	assert.Equal(t, 1, a.Stars)
}

func TestStars(t *testing.T) {
	s := New(decay(CurveLinear), 20)
	assert.Equal(t, 1, s.Stars(0))
	assert.Equal(t, 1, s.Stars(25))
	assert.Equal(t, 2, s.Stars(30))
	assert.Equal(t, 4, s.Stars(80))
	assert.Equal(t, 5, s.Stars(500))
}
