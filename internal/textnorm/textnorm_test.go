package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Navy   deploys\n destroyer ", "Navy deploys destroyer"},
		{"tags and entities", "<p>Talks &amp; treaties</p><p>resume</p>", "Talks & treaties resume"},
		{"script dropped", "<div>Summit<script>alert(1)</script> ends</div>", "Summit ends"},
		{"unclosed markup", "<b>Typhoon <i>hits Luzon", "Typhoon hits Luzon"},
		{"double escaped", "Trade &amp;amp; tariffs", "Trade & tariffs"},
		{"invalid utf8", "Manila\xff\xfe talks", "Manila talks"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestClean_PreservesOriginal(t *testing.T) {
	raw := "<b>Navy</b> Deploys"
	_ = Normalize(raw)
	assert.Equal(t, "<b>Navy</b> Deploys", raw)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "navy deploys destroyer to spratly islands", Fold("Navy Deploys Destroyer To Spratly Islands!"))
	assert.Equal(t, "noumea s port", Fold("Nouméa's port"))
	assert.Equal(t, "u s china talks", Fold("U.S.-China talks"))
	assert.Equal(t, "", Fold("  --  "))
}

func TestNormalize(t *testing.T) {
	got := Normalize("<p>Missile <em>test</em> near Taiwan.</p>")
	assert.Equal(t, "Missile test near Taiwan.", got.Plain)
	assert.Equal(t, "missile test near taiwan", got.Match)
}

func TestSentencesAndSummarize(t *testing.T) {
	text := "China protested. Japan responded! Was it planned? Talks continue"
	assert.Equal(t, []string{"China protested.", "Japan responded!", "Was it planned?", "Talks continue"}, Sentences(text))
	assert.Equal(t, "China protested. Japan responded!", Summarize(text, 2))
	assert.Equal(t, text, Summarize(text, 10))
	assert.Equal(t, []string{"U.S.-China talks."}, Sentences("U.S.-China talks."))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 10))
	assert.Equal(t, "The navy deployed…", Excerpt("The navy deployed a destroyer", 19))
	assert.Equal(t, "plain", Excerpt("plain", 0))
}

func TestFirstImage(t *testing.T) {
	assert.Equal(t, "https://img.example/a.jpg", FirstImage(`<p>x</p><img src="https://img.example/a.jpg"><img src="b.jpg">`))
	assert.Equal(t, "", FirstImage("no markup"))
	assert.Equal(t, "", FirstImage("<p>no image</p>"))
}
