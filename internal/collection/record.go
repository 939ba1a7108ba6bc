// Package collection implements schema-driven, in-memory searchable
// collections of reference records. A collection builds one index per
// schema field and answers compound queries by intersecting the per-field
// results on the record code.
package collection

import (
	"encoding/json"
	"maps"
	"strconv"
)

// ScoreField is the relevance attached to records returned by text lookups.
const ScoreField = "_score"

// CodeField is the unique identifier used to join results of several
// criteria.
const CodeField = "code"

// Record is one decoded reference entry. Records are shared between indexes
// and must not be mutated once loaded.
type Record map[string]any

// Code returns the record code, or "" when absent.
func (r Record) Code() string {
	return r.String(CodeField)
}

// String returns field as a string. Numbers are formatted without exponent.
func (r Record) String(field string) string {
	s, _ := stringValue(r[field])
	return s
}

// Number returns field as a float64.
func (r Record) Number(field string) (float64, bool) {
	switch v := r[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Score returns the relevance attached by a text lookup.
func (r Record) Score() (float64, bool) {
	s, ok := r[ScoreField].(float64)
	return s, ok
}

// Clone returns a shallow copy, safe to annotate.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

func stringValue(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func stringValues(v any) []string {
	switch v := v.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := stringValue(e); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := stringValue(v); ok {
			return []string{s}
		}
		return nil
	}
}
