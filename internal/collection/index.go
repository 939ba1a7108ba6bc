package collection

import "fmt"

// Query maps query keys to criterion values. Values are strings, string
// lists, or points for geo criteria. The "type" and "boost" keys are also
// read by the geo and text indexes as modifiers.
type Query map[string]any

// Strings returns the values of key as a list, or nil when absent.
func (q Query) Strings(key string) []string {
	v, ok := q[key]
	if !ok || v == nil {
		return nil
	}
	return stringValues(v)
}

// Index is a per-field lookup structure.
type Index interface {
	Field() string
	Index(r Record)
	Load(records []Record)
	Find(value any, q Query) []Record
}

func newIndex(spec FieldSpec) (Index, error) {
	switch spec.Type {
	case TypeToken:
		return NewTokenIndex(spec.Field, false, spec.Multiple == MultipleOR), nil
	case TypeTokenList:
		return NewTokenIndex(spec.Field, true, spec.Multiple == MultipleOR), nil
	case TypeText:
		return NewTextIndex(spec.Field, TextOptions{
			Ref:           spec.Ref,
			Boosts:        spec.Boosts,
			Abbreviations: spec.Abbreviations,
		}), nil
	case TypeGeo:
		return NewGeoIndex(spec.Field), nil
	default:
		return nil, fmt.Errorf("unknown index type %q", spec.Type)
	}
}
