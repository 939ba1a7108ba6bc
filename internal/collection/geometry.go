package collection

import (
	"encoding/json"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Geometry holds a decoded GeoJSON geometry and encodes back to GeoJSON.
type Geometry struct {
	geom.T
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.T == nil {
		return []byte("null"), nil
	}
	return geojson.Marshal(g.T)
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var t geom.T
	if err := geojson.Unmarshal(data, &t); err != nil {
		return err
	}
	g.T = t
	return nil
}

// AsGeometry extracts a geometry from a record value. Besides Geometry and
// geom.T it accepts a plain GeoJSON object, as produced by encoding/json.
func AsGeometry(v any) (geom.T, bool) {
	switch v := v.(type) {
	case Geometry:
		return v.T, v.T != nil
	case *Geometry:
		if v == nil || v.T == nil {
			return nil, false
		}
		return v.T, true
	case geom.T:
		return v, v != nil
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var t geom.T
		if err := geojson.Unmarshal(data, &t); err != nil {
			return nil, false
		}
		return t, true
	default:
		return nil, false
	}
}
