package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var abbreviations = map[string]string{"st": "saint", "ste": "sainte", "cgne": "campagne"}

func loadText(records []Record) *TextIndex {
	idx := NewTextIndex("nom", TextOptions{
		Boosts:        map[string]BoostFunc{"population": PopulationBoost},
		Abbreviations: abbreviations,
	})
	idx.Load(records)
	return idx
}

func nantRecords() []Record {
	return []Record{
		{"code": "44190", "nom": "Nantes-en-Ratier", "population": float64(400)},
		{"code": "92050", "nom": "Nanterre", "population": float64(95000)},
		{"code": "44109", "nom": "Nantes", "population": float64(320000)},
		{"code": "38270", "nom": "Nantes-en-Ratier", "population": float64(450)},
		{"code": "01269", "nom": "Nantua", "population": float64(3500)},
		{"code": "75056", "nom": "Paris", "population": float64(2100000)},
	}
}

func TestTextIndexPrefixMatch(t *testing.T) {
	idx := loadText(nantRecords())
	res := idx.Find("nant", Query{})
	assert.ElementsMatch(t, []string{"44190", "92050", "44109", "38270", "01269"}, codes(res))
	for _, r := range res {
		score, ok := r.Score()
		require.True(t, ok)
		assert.GreaterOrEqual(t, score, 0.0)
	}
}

func TestTextIndexPopulationBoost(t *testing.T) {
	idx := loadText(nantRecords())
	res := idx.Find("nant", Query{"boost": "population"})
	require.NotEmpty(t, res)
	assert.Equal(t, "Nantes", res[0]["nom"])
	for i := 1; i < len(res); i++ {
		prev, _ := res[i-1].Score()
		cur, _ := res[i].Score()
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestTextIndexUnknownBoostIgnored(t *testing.T) {
	idx := loadText(nantRecords())
	plain := idx.Find("nantes", Query{})
	unknown := idx.Find("nantes", Query{"boost": "surface"})
	assert.Equal(t, codes(plain), codes(unknown))
}

func TestTextIndexExactNamePromoted(t *testing.T) {
	idx := loadText([]Record{
		{"code": "1", "nom": "Saint-Louis-de-Montferrand"},
		{"code": "2", "nom": "Saint-Louis-lès-Bitche"},
		{"code": "3", "nom": "Saint-Louis"},
	})
	res := idx.Find("st louis", Query{})
	require.Len(t, res, 3)
	assert.Equal(t, "3", res[0].Code())
}

func TestTextIndexAllWordsRequired(t *testing.T) {
	idx := loadText([]Record{
		{"code": "1", "nom": "Saint-Denis"},
		{"code": "2", "nom": "Saint-Malo"},
		{"code": "3", "nom": "Denis"},
	})
	assert.Equal(t, []string{"1"}, codes(idx.Find("saint denis", Query{})))
	assert.Empty(t, idx.Find("saint paris", Query{}))
}

func TestTextIndexAccentInsensitive(t *testing.T) {
	idx := loadText([]Record{{"code": "42218", "nom": "Saint-Étienne"}})
	assert.Len(t, idx.Find("ETIENNE", Query{}), 1)
	assert.Len(t, idx.Find("étienne", Query{}), 1)
}

func TestTextIndexReturnsClones(t *testing.T) {
	original := Record{"code": "1", "nom": "Lyon", "population": float64(500000)}
	idx := loadText([]Record{original})

	boosted := idx.Find("lyon", Query{"boost": "population"})
	require.Len(t, boosted, 1)
	plain := idx.Find("lyon", Query{})
	require.Len(t, plain, 1)

	boostedScore, _ := boosted[0].Score()
	plainScore, _ := plain[0].Score()
	assert.InDelta(t, plainScore*6, boostedScore, 1e-9)

	stored, ok := idx.refs["1"]
	require.True(t, ok)
	assert.NotContains(t, stored, ScoreField)
	assert.NotContains(t, original, ScoreField)
}

func TestTextIndexEmptyQueries(t *testing.T) {
	idx := loadText(nantRecords())
	assert.Empty(t, idx.Find("", Query{}))
	assert.Empty(t, idx.Find("' - !", Query{}))
	assert.Empty(t, idx.Find(42, Query{}))
	assert.Empty(t, NewTextIndex("nom", TextOptions{}).Find("nant", Query{}))
}

func TestTextIndexDuplicateRefLastWins(t *testing.T) {
	idx := loadText([]Record{
		{"code": "1", "nom": "Ancien"},
		{"code": "1", "nom": "Nouveau"},
	})
	res := idx.Find("ancien", Query{})
	require.Len(t, res, 1)
	assert.Equal(t, "Nouveau", res[0]["nom"])
}

func TestTextIndexFindBeforeLoadSorted(t *testing.T) {
	idx := NewTextIndex("nom", TextOptions{})
	idx.Index(Record{"code": "1", "nom": "Brest"})
	idx.Index(Record{"code": "2", "nom": "Bressuire"})
	assert.Len(t, idx.Find("bres", Query{}), 2)
}

func TestPopulationBoost(t *testing.T) {
	assert.InDelta(t, 2.0, PopulationBoost(Record{"population": float64(100000)}, 1), 1e-9)
	assert.InDelta(t, 1.5, PopulationBoost(Record{}, 1.5), 1e-9)
	assert.InDelta(t, 1.5, PopulationBoost(Record{"population": 0}, 1.5), 1e-9)
}
