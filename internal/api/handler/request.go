package handler

import (
	"maps"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

const (
	formatJSON    = "json"
	formatGeoJSON = "geojson"
)

// fieldSet is an insertion-ordered set of output fields.
type fieldSet struct {
	order []string
	index map[string]struct{}
}

func newFieldSet(fields ...string) *fieldSet {
	s := &fieldSet{index: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		s.add(f)
	}
	return s
}

func (s *fieldSet) add(field string) {
	if _, ok := s.index[field]; ok {
		return
	}
	s.index[field] = struct{}{}
	s.order = append(s.order, field)
}

func (s *fieldSet) remove(field string) {
	if _, ok := s.index[field]; !ok {
		return
	}
	delete(s.index, field)
	s.order = slices.DeleteFunc(s.order, func(f string) bool { return f == field })
}

func (s *fieldSet) has(field string) bool {
	_, ok := s.index[field]
	return ok
}

// output holds how records of one request are rendered.
type output struct {
	fields   *fieldSet
	format   string
	geometry string
	limit    int // negative means unlimited
}

func (o output) geoJSON() bool { return o.format == formatGeoJSON }

func (o output) applyLimit(records []collection.Record) []collection.Record {
	if o.limit < 0 || o.limit >= len(records) {
		return records
	}
	return records[:o.limit]
}

// parseOutput reads fields, format, geometry and, when withLimit is set,
// limit from the query string.
func parseOutput(def referentiel.Definition, values url.Values, withLimit bool) (output, error) {
	out := output{limit: -1, format: formatJSON}
	if withLimit {
		limit, err := parseLimit(values.Get("limit"))
		if err != nil {
			return output{}, err
		}
		out.limit = limit
	}

	if raw := values.Get("fields"); raw != "" {
		out.fields = newFieldSet(strings.Split(raw, ",")...)
	} else {
		out.fields = newFieldSet(def.Fields.Default...)
	}
	for _, f := range def.Fields.Base {
		out.fields.add(f)
	}

	if def.Format.AllowsGeoJSON() && values.Get("format") == formatGeoJSON {
		out.format = formatGeoJSON
		out.geometry = def.Format.DefaultGeometry
		if g := values.Get("geometry"); slices.Contains(def.Format.Geometries, g) {
			out.geometry = g
		}
		for _, g := range def.Format.Geometries {
			out.fields.remove(g)
		}
	}
	return out, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return -1, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.BadRequest("limit must be a non-negative integer")
	}
	return limit, nil
}

// buildQuery copies the whitelisted parameters of def into a query. List
// parameters are split on commas; valid lat/lon become a point criterion.
// Empty values are ignored.
func buildQuery(def referentiel.Definition, values url.Values) collection.Query {
	q := make(collection.Query)
	for _, param := range def.Params {
		v := values.Get(param)
		if v == "" {
			continue
		}
		if slices.Contains(def.ListParams, param) {
			q[param] = strings.Split(v, ",")
			continue
		}
		q[param] = v
	}
	if def.PointQuery != "" {
		if lon, lat, ok := parsePoint(values.Get("lon"), values.Get("lat")); ok {
			q[def.PointQuery] = []float64{lon, lat}
		}
	}
	return q
}

func parsePoint(rawLon, rawLat string) (lon, lat float64, ok bool) {
	if rawLon == "" || rawLat == "" {
		return 0, 0, false
	}
	lon, errLon := strconv.ParseFloat(rawLon, 64)
	lat, errLat := strconv.ParseFloat(rawLat, 64)
	if errLon != nil || errLat != nil {
		return 0, 0, false
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lon, lat, true
}

// withDefaults lays q over the default query of def.
func withDefaults(def referentiel.Definition, q collection.Query) collection.Query {
	merged := make(collection.Query, len(def.DefaultQuery)+len(q))
	maps.Copy(merged, def.DefaultQuery)
	maps.Copy(merged, q)
	return merged
}

// criteria summarises the search parameters of a request for analytics.
func criteria(def referentiel.Definition, values url.Values) map[string]string {
	c := make(map[string]string)
	for _, param := range def.Params {
		if v := values.Get(param); v != "" {
			c[param] = v
		}
	}
	if def.PointQuery != "" && values.Get("lat") != "" && values.Get("lon") != "" {
		c["lat"] = values.Get("lat")
		c["lon"] = values.Get("lon")
	}
	return c
}
