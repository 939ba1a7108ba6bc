package collection

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/textnorm"
)

const (
	k1 = 1.2
	b  = 0.75
)

// TextOptions configures a TextIndex.
type TextOptions struct {
	Ref           string
	Boosts        map[string]BoostFunc
	Abbreviations map[string]string
}

type posting struct {
	doc  int
	freq int
}

type textDoc struct {
	ref    string
	length int
}

// TextIndex is a relevance-ranked full-text index over one name field.
// Query words match indexed words they are a prefix of; every query word
// must match for a record to be returned.
type TextIndex struct {
	field       string
	opts        TextOptions
	postings    map[string][]posting
	docs        []textDoc
	refs        map[string]Record
	totalLength int
	terms       []string
	dirty       bool
}

func NewTextIndex(field string, opts TextOptions) *TextIndex {
	if opts.Ref == "" {
		opts.Ref = CodeField
	}
	return &TextIndex{
		field:    field,
		opts:     opts,
		postings: make(map[string][]posting),
		refs:     make(map[string]Record),
	}
}

func (t *TextIndex) Field() string { return t.field }

// Index adds r. Records sharing a reference replace each other.
func (t *TextIndex) Index(r Record) {
	if _, ok := r[t.field]; !ok {
		return
	}
	ref, ok := stringValue(r[t.opts.Ref])
	if !ok {
		return
	}
	tokens := textnorm.Tokenize(r.String(t.field))
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok.Term]++
	}
	doc := len(t.docs)
	for term, freq := range freqs {
		t.postings[term] = append(t.postings[term], posting{doc: doc, freq: freq})
	}
	t.docs = append(t.docs, textDoc{ref: ref, length: len(tokens)})
	t.totalLength += len(tokens)
	t.refs[ref] = r
	t.dirty = true
}

func (t *TextIndex) Load(records []Record) {
	for _, r := range records {
		t.Index(r)
	}
	t.terms = t.sortedTerms()
	t.dirty = false
}

func (t *TextIndex) sortedTerms() []string {
	terms := make([]string, 0, len(t.postings))
	for term := range t.postings {
		terms = append(terms, term)
	}
	slices.Sort(terms)
	return terms
}

type textHit struct {
	doc     int
	score   float64
	matched int
}

// Find returns clones of the matching records carrying ScoreField, best
// first. When q names a configured boost the boosted score is used and the
// results are re-sorted; otherwise records whose name equals the search are
// moved to the front.
func (t *TextIndex) Find(value any, q Query) []Record {
	search, ok := value.(string)
	if !ok {
		return nil
	}
	if t.opts.Abbreviations != nil {
		search = textnorm.ReplaceAbbreviations(search, t.opts.Abbreviations)
	}
	words := textnorm.Terms(search)
	if len(words) == 0 || len(t.docs) == 0 {
		return nil
	}

	terms := t.terms
	if t.dirty {
		terms = t.sortedTerms()
	}
	avgLength := float64(t.totalLength) / float64(len(t.docs))

	hits := make(map[int]*textHit)
	for i, word := range words {
		seen := make(map[int]struct{})
		start := sort.SearchStrings(terms, word)
		for _, term := range terms[start:] {
			if !strings.HasPrefix(term, word) {
				break
			}
			weight := similarity(word, term)
			postings := t.postings[term]
			idf := computeIDF(len(t.docs), len(postings))
			for _, p := range postings {
				h, exists := hits[p.doc]
				if !exists {
					if i > 0 {
						continue
					}
					h = &textHit{doc: p.doc}
					hits[p.doc] = h
				}
				if h.matched < i {
					continue
				}
				h.score += weight * idf * computeTFNorm(float64(p.freq), float64(t.docs[p.doc].length), avgLength)
				seen[p.doc] = struct{}{}
			}
		}
		for doc := range seen {
			hits[doc].matched = i + 1
		}
	}

	ranked := make([]*textHit, 0, len(hits))
	for _, h := range hits {
		if h.matched == len(words) {
			ranked = append(ranked, h)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].doc < ranked[j].doc
	})

	boost := t.opts.Boosts[stringOf(q["boost"])]
	results := make([]Record, 0, len(ranked))
	emitted := make(map[string]struct{}, len(ranked))
	for _, h := range ranked {
		ref := t.docs[h.doc].ref
		if _, dup := emitted[ref]; dup {
			continue
		}
		emitted[ref] = struct{}{}
		r := t.refs[ref].Clone()
		if boost != nil {
			r[ScoreField] = boost(r, h.score)
		} else {
			r[ScoreField] = h.score
		}
		results = append(results, r)
	}

	if boost != nil {
		sort.SliceStable(results, func(i, j int) bool {
			si, _ := results[i].Score()
			sj, _ := results[j].Score()
			return si > sj
		})
		return results
	}
	return promoteExact(results, t.field, textnorm.NormalizeString(search))
}

// promoteExact moves records whose normalised field equals name to the
// front, keeping relative order on both sides.
func promoteExact(results []Record, field, name string) []Record {
	if name == "" {
		return results
	}
	exact := make([]Record, 0, 1)
	rest := make([]Record, 0, len(results))
	for _, r := range results {
		if textnorm.NormalizeString(r.String(field)) == name {
			exact = append(exact, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(exact, rest...)
}

// similarity weighs a prefix expansion down by the number of extra letters.
func similarity(word, term string) float64 {
	diff := len(term) - len(word)
	if diff == 0 {
		return 1
	}
	return 1 / math.Log(math.Max(3, float64(diff)))
}

func computeIDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// PopulationBoost scales score by 1 + population/100000 for populated
// records.
func PopulationBoost(r Record, score float64) float64 {
	population, ok := r.Number("population")
	if !ok || population == 0 {
		return score
	}
	return score * (1 + population/100000)
}
