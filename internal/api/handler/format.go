package handler

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
)

// properties picks the requested fields of r and resolves the departement
// and region references.
func properties(snap *referentiel.Snapshot, out output, r collection.Record) map[string]any {
	props := make(map[string]any, len(out.fields.order))
	for _, f := range out.fields.order {
		if v, ok := r[f]; ok {
			props[f] = v
		}
	}
	if code := r.String("codeDepartement"); code != "" && out.fields.has("departement") {
		props["departement"] = reference(snap, referentiel.Departements, code)
	}
	if code := r.String("codeRegion"); code != "" && out.fields.has("region") {
		props["region"] = reference(snap, referentiel.Regions, code)
	}
	return props
}

// reference returns {code, nom} of a known record, or an empty object.
func reference(snap *referentiel.Snapshot, kind referentiel.Kind, code string) map[string]any {
	if ref := snap.Enrich(kind, code); ref != nil {
		return ref
	}
	return map[string]any{}
}

func feature(snap *referentiel.Snapshot, out output, r collection.Record) *geojson.Feature {
	g, _ := collection.AsGeometry(r[out.geometry])
	return &geojson.Feature{
		Geometry:   g,
		Properties: properties(snap, out, r),
	}
}

func renderOne(snap *referentiel.Snapshot, out output, r collection.Record) ([]byte, error) {
	if out.geoJSON() {
		return marshal(feature(snap, out, r))
	}
	return marshal(properties(snap, out, r))
}

func renderList(snap *referentiel.Snapshot, out output, records []collection.Record) ([]byte, error) {
	if out.geoJSON() {
		fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(records))}
		for _, r := range records {
			fc.Features = append(fc.Features, feature(snap, out, r))
		}
		return marshal(fc)
	}
	list := make([]map[string]any, 0, len(records))
	for _, r := range records {
		list = append(list, properties(snap, out, r))
	}
	return marshal(list)
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return data, nil
}
