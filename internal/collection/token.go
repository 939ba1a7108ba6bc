package collection

import "slices"

// TokenIndex is an exact-match index. In list mode every element of a list
// field is indexed separately.
type TokenIndex struct {
	field   string
	list    bool
	or      bool
	buckets map[string][]Record
}

func NewTokenIndex(field string, list, or bool) *TokenIndex {
	return &TokenIndex{
		field:   field,
		list:    list,
		or:      or,
		buckets: make(map[string][]Record),
	}
}

func (t *TokenIndex) Field() string { return t.field }

func (t *TokenIndex) Index(r Record) {
	v, ok := r[t.field]
	if !ok || v == nil {
		return
	}
	if t.list {
		for _, s := range stringValues(v) {
			t.buckets[s] = append(t.buckets[s], r)
		}
		return
	}
	if s, ok := stringValue(v); ok {
		t.buckets[s] = append(t.buckets[s], r)
	}
}

func (t *TokenIndex) Load(records []Record) {
	for _, r := range records {
		t.Index(r)
	}
}

// Find returns the records indexed under value. A list value returns the
// concatenation of every value's bucket when the index accepts several
// values, otherwise only the first value is looked up.
func (t *TokenIndex) Find(value any, _ Query) []Record {
	if s, ok := stringValue(value); ok {
		return slices.Clone(t.buckets[s])
	}
	values := stringValues(value)
	if len(values) == 0 {
		return nil
	}
	if !t.or {
		return slices.Clone(t.buckets[values[0]])
	}
	var out []Record
	for _, v := range values {
		out = append(out, t.buckets[v]...)
	}
	return out
}

// Len returns the number of distinct indexed values.
func (t *TokenIndex) Len() int {
	return len(t.buckets)
}
