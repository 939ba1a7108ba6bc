package collection

import (
	"github.com/twpayne/go-geom"
)

func polygon(coords ...[]geom.Coord) Geometry {
	return Geometry{T: geom.NewPolygon(geom.XY).MustSetCoords(coords)}
}

func square(minX, minY, maxX, maxY float64) []geom.Coord {
	return []geom.Coord{{minX, minY}, {minX, maxY}, {maxX, maxY}, {maxX, minY}, {minX, minY}}
}

func codes(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Code()
	}
	return out
}
