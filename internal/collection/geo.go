package collection

import (
	"slices"

	"github.com/twpayne/go-geom"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/spatial"
)

type geoEntry struct {
	record Record
	box    spatial.Box
	flat   []float64
	ends   []int
	stride int
}

// GeoIndex answers point-in-polygon lookups over a Polygon or MultiPolygon
// field. Each polygon of a record is indexed separately.
type GeoIndex struct {
	field   string
	entries []geoEntry
	tree    *spatial.Tree
}

func NewGeoIndex(field string) *GeoIndex {
	return &GeoIndex{field: field}
}

func (g *GeoIndex) Field() string { return g.field }

// Index adds the polygons of r. Records without a usable polygon geometry
// are skipped.
func (g *GeoIndex) Index(r Record) {
	t, ok := AsGeometry(r[g.field])
	if !ok {
		return
	}
	switch t := t.(type) {
	case *geom.Polygon:
		g.add(r, t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			g.add(r, t.Polygon(i))
		}
	}
	g.tree = nil
}

func (g *GeoIndex) add(r Record, p *geom.Polygon) {
	if p == nil || p.NumLinearRings() == 0 {
		return
	}
	bounds := geom.NewBounds(geom.XY).Extend(p.LinearRing(0))
	if bounds.IsEmpty() {
		return
	}
	g.entries = append(g.entries, geoEntry{
		record: r,
		box: spatial.Box{
			MinX: bounds.Min(0),
			MinY: bounds.Min(1),
			MaxX: bounds.Max(0),
			MaxY: bounds.Max(1),
		},
		flat:   p.FlatCoords(),
		ends:   p.Ends(),
		stride: p.Stride(),
	})
}

// Load indexes records and packs the bounding-box tree.
func (g *GeoIndex) Load(records []Record) {
	for _, r := range records {
		g.Index(r)
	}
	items := make([]spatial.Item, len(g.entries))
	for i, e := range g.entries {
		items[i] = spatial.Item{Box: e.box, ID: i}
	}
	g.tree = spatial.NewTree(items)
}

// Find returns the first record, in indexing order, whose polygon contains
// the point. When q carries a "type" criterion only records of one of
// those types are considered.
func (g *GeoIndex) Find(value any, q Query) []Record {
	p, ok := ToPoint(value)
	if !ok {
		return nil
	}
	types := q.Strings("type")
	for _, id := range g.candidates(p) {
		e := g.entries[id]
		if types != nil && !slices.Contains(types, e.record.String("type")) {
			continue
		}
		if spatial.InsidePolygon(e.flat, e.ends, e.stride, p) {
			return []Record{e.record}
		}
	}
	return nil
}

func (g *GeoIndex) candidates(p spatial.Point) []int {
	if g.tree != nil {
		return g.tree.Search(p)
	}
	var ids []int
	for i, e := range g.entries {
		if e.box.Contains(p) {
			ids = append(ids, i)
		}
	}
	return ids
}

// Len returns the number of indexed polygons.
func (g *GeoIndex) Len() int {
	return len(g.entries)
}

// ToPoint converts a [lon, lat] value into a point.
func ToPoint(v any) (spatial.Point, bool) {
	switch v := v.(type) {
	case spatial.Point:
		return v, true
	case [2]float64:
		return spatial.Point{X: v[0], Y: v[1]}, true
	case []float64:
		if len(v) < 2 {
			return spatial.Point{}, false
		}
		return spatial.Point{X: v[0], Y: v[1]}, true
	case []any:
		if len(v) < 2 {
			return spatial.Point{}, false
		}
		x, okx := v[0].(float64)
		y, oky := v[1].(float64)
		return spatial.Point{X: x, Y: y}, okx && oky
	default:
		return spatial.Point{}, false
	}
}
