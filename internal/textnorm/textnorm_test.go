package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var communeAbbreviations = map[string]string{
	"st":   "saint",
	"ste":  "sainte",
	"cgne": "campagne",
}

func TestNormalizeStringAccents(t *testing.T) {
	in := "ÂÃÄÀÁÅÆÇÈÉÊËÌÍÎÏÑÒÓÔÕÖÙÚÛÜÝàáâãäæçèéêëìíîïðòóôöùûüýÿ"
	assert.Equal(t, "aaaaaaaeceeeeiiiinooooouuuuyaaaaaaeceeeeiiiioooouuuyy", NormalizeString(in))
}

func TestNormalizeStringStripsPunctuation(t *testing.T) {
	assert.Equal(t, "lhaylesroses", NormalizeString("L'Haÿ-les-Roses"))
	assert.Equal(t, "", NormalizeString("123 - ()"))
	assert.Equal(t, "oeuvre", NormalizeString("Œuvre"))
}

func TestRemoveDiacriticsKeepsCase(t *testing.T) {
	assert.Equal(t, "Eze", RemoveDiacritics("Èze"))
	assert.Equal(t, "Saint-Etienne", RemoveDiacritics("Saint-Étienne"))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Saint-Étienne  du  Rouvray")
	assert.Equal(t, []Token{
		{Term: "saint", Position: 0},
		{Term: "etienne", Position: 1},
		{Term: "du", Position: 2},
		{Term: "rouvray", Position: 3},
	}, tokens)
}

func TestTokenizeDropsEmptyParts(t *testing.T) {
	assert.Equal(t, []string{"lhay", "les", "roses"}, Terms("L'Haÿ - les - Roses !"))
	assert.Empty(t, Terms("' - ?"))
}

func TestReplaceAbbreviations(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"st louis", "saint louis"},
		{"marcilly la cgne", "marcilly la campagne"},
		{"st-louis", "saint louis"},
		{"ste marie", "sainte marie"},
		{`"St" Émilion`, "saint emilion"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReplaceAbbreviations(tt.in, communeAbbreviations), tt.in)
	}
}

func TestReplaceAbbreviationsSingleWordUnchanged(t *testing.T) {
	assert.Equal(t, "St", ReplaceAbbreviations("St", communeAbbreviations))
	assert.Equal(t, "Évry", ReplaceAbbreviations("Évry", communeAbbreviations))
}

func BenchmarkTokenize(b *testing.B) {
	name := "Saint-Rémy-en-Bouzemont-Saint-Genest-et-Isson"
	for b.Loop() {
		Tokenize(name)
	}
}
