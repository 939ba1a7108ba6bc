package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
)

var errMalformed = errors.New("malformed snapshot")

// Decode streams a JSON array of objects into records. Fields listed in
// geometryFields are decoded as GeoJSON geometries; null geometries are
// dropped and geometries that cannot be decoded keep their plain JSON value.
func Decode(r io.Reader, geometryFields map[string]struct{}) ([]collection.Record, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array", errMalformed)
	}

	var records []collection.Record
	for dec.More() {
		var raw map[string]json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", errMalformed, len(records), err)
		}
		rec, err := decodeRecord(raw, geometryFields)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", errMalformed, len(records), err)
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return records, nil
}

func decodeRecord(raw map[string]json.RawMessage, geometryFields map[string]struct{}) (collection.Record, error) {
	rec := make(collection.Record, len(raw))
	for k, v := range raw {
		if _, geo := geometryFields[k]; geo {
			if string(v) == "null" {
				continue
			}
			var g collection.Geometry
			if err := json.Unmarshal(v, &g); err == nil {
				rec[k] = g
				continue
			}
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		rec[k] = val
	}
	return rec, nil
}
