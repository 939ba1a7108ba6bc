// Package spatial holds the planar geometry primitives behind point-in-polygon
// lookups: an even-odd ray casting test and a packed bounding-box tree.
package spatial

// Point is a planar position, X being the longitude and Y the latitude.
type Point struct {
	X float64
	Y float64
}

// Box is an inclusive axis-aligned bounding box.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether p lies inside or on the edge of b.
func (b Box) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b Box) extend(o Box) Box {
	return Box{
		MinX: min(b.MinX, o.MinX),
		MinY: min(b.MinY, o.MinY),
		MaxX: max(b.MaxX, o.MaxX),
		MaxY: max(b.MaxY, o.MaxY),
	}
}

// InsidePolygon applies the even-odd rule to a polygon stored as flat
// coordinates. ends holds the end offset of every ring, the first ring being
// the exterior; stride is the number of values per vertex (X and Y come
// first). Every ring crossing toggles the result, so holes are excluded.
// Crossings compare y strictly and x with <, so a point on a left or bottom
// edge of an axis-aligned ring counts as inside and a point on a right or
// top edge counts as outside.
func InsidePolygon(flat []float64, ends []int, stride int, p Point) bool {
	if stride < 2 {
		return false
	}
	inside := false
	offset := 0
	for _, end := range ends {
		if crossings(flat[offset:end], stride, p)%2 == 1 {
			inside = !inside
		}
		offset = end
	}
	return inside
}

// InsideRing applies the even-odd rule to a single ring of [x, y] pairs.
func InsideRing(ring [][2]float64, p Point) bool {
	flat := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	return crossings(flat, 2, p)%2 == 1
}

func crossings(ring []float64, stride int, p Point) int {
	n := len(ring) / stride
	count := 0
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		x1, y1 := ring[j*stride], ring[j*stride+1]
		x2, y2 := ring[i*stride], ring[i*stride+1]
		if (y1 > p.Y) != (y2 > p.Y) && p.X < (x2-x1)*(p.Y-y1)/(y2-y1)+x1 {
			count++
		}
	}
	return count
}
