package collection

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

// IndexType selects the index built for a schema field.
type IndexType string

const (
	TypeToken     IndexType = "token"
	TypeTokenList IndexType = "tokenList"
	TypeText      IndexType = "text"
	TypeGeo       IndexType = "geo"
)

// MultipleOR lets a token field match any of several query values.
const MultipleOR = "OR"

// BoostFunc rescales the relevance of a text match.
type BoostFunc func(r Record, score float64) float64

// FieldSpec describes one indexed field.
type FieldSpec struct {
	Field string
	Type  IndexType
	// QueryWith is the query key bound to the index. Defaults to Field.
	QueryWith string
	// Ref is the key identifying text-indexed records. Defaults to "code".
	Ref           string
	Boosts        map[string]BoostFunc
	Abbreviations map[string]string
	Multiple      string
}

// QueryKey returns the query key the field answers to.
func (f FieldSpec) QueryKey() string {
	if f.QueryWith != "" {
		return f.QueryWith
	}
	return f.Field
}

// Schema is the ordered list of indexed fields of a collection. Criteria of
// a query are evaluated in schema order.
type Schema []FieldSpec

// Validate reports the first configuration error of the schema.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no fields", apperrors.ErrInvalidSchema)
	}
	fields := make(map[string]struct{}, len(s))
	keys := make(map[string]struct{}, len(s))
	for i, f := range s {
		if f.Field == "" {
			return fmt.Errorf("%w: field %d has no name", apperrors.ErrInvalidSchema, i)
		}
		switch f.Type {
		case TypeToken, TypeTokenList, TypeText:
		case TypeGeo:
			if f.QueryWith == "" {
				return fmt.Errorf("%w: geo field %q requires a query key", apperrors.ErrInvalidSchema, f.Field)
			}
		default:
			return fmt.Errorf("%w: field %q has unknown type %q", apperrors.ErrInvalidSchema, f.Field, f.Type)
		}
		if f.Multiple != "" && f.Multiple != MultipleOR {
			return fmt.Errorf("%w: field %q has unknown multiple mode %q", apperrors.ErrInvalidSchema, f.Field, f.Multiple)
		}
		if _, dup := fields[f.Field]; dup {
			return fmt.Errorf("%w: field %q declared twice", apperrors.ErrInvalidSchema, f.Field)
		}
		fields[f.Field] = struct{}{}
		if _, dup := keys[f.QueryKey()]; dup {
			return fmt.Errorf("%w: query key %q bound twice", apperrors.ErrInvalidSchema, f.QueryKey())
		}
		keys[f.QueryKey()] = struct{}{}
	}
	return nil
}
