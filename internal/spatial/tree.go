package spatial

import (
	"math"
	"slices"
	"sort"
)

const nodeCapacity = 16

// Item is an entry of the tree: a bounding box and the caller's identifier.
type Item struct {
	Box Box
	ID  int
}

type node struct {
	box      Box
	children []*node
	items    []Item
}

// Tree is a static bounding-box tree bulk loaded with Sort-Tile-Recursive
// packing. It is immutable once built and safe for concurrent reads.
type Tree struct {
	root *node
	size int
}

// NewTree packs items into a tree. The items slice is reordered.
func NewTree(items []Item) *Tree {
	t := &Tree{size: len(items)}
	if len(items) == 0 {
		return t
	}
	leaves := packLeaves(items)
	for len(leaves) > 1 {
		leaves = packNodes(leaves)
	}
	t.root = leaves[0]
	return t
}

// Len returns the number of items in the tree.
func (t *Tree) Len() int {
	return t.size
}

// Search returns the identifiers of every item whose box contains p, in
// ascending order.
func (t *Tree) Search(p Point) []int {
	if t.root == nil || !t.root.box.Contains(p) {
		return nil
	}
	var ids []int
	stack := []*node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, it := range n.items {
			if it.Box.Contains(p) {
				ids = append(ids, it.ID)
			}
		}
		for _, c := range n.children {
			if c.box.Contains(p) {
				stack = append(stack, c)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

func packLeaves(items []Item) []*node {
	groups := tile(len(items), func(i int) Box { return items[i].Box }, func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	leaves := make([]*node, 0, len(groups))
	for _, g := range groups {
		n := &node{items: items[g[0]:g[1]:g[1]]}
		n.box = n.items[0].Box
		for _, it := range n.items[1:] {
			n.box = n.box.extend(it.Box)
		}
		leaves = append(leaves, n)
	}
	return leaves
}

func packNodes(nodes []*node) []*node {
	groups := tile(len(nodes), func(i int) Box { return nodes[i].box }, func(i, j int) {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	})
	parents := make([]*node, 0, len(groups))
	for _, g := range groups {
		n := &node{children: nodes[g[0]:g[1]:g[1]]}
		n.box = n.children[0].box
		for _, c := range n.children[1:] {
			n.box = n.box.extend(c.box)
		}
		parents = append(parents, n)
	}
	return parents
}

// tile sorts n entries into vertical slices by box centre X, sorts each
// slice by centre Y, and returns [start, end) ranges of at most
// nodeCapacity entries.
func tile(n int, boxAt func(int) Box, swap func(i, j int)) [][2]int {
	leafCount := int(math.Ceil(float64(n) / nodeCapacity))
	sliceCount := int(math.Ceil(math.Sqrt(float64(leafCount))))
	sliceSize := sliceCount * nodeCapacity

	sort.Sort(byCentre{n: n, boxAt: boxAt, swap: swap, x: true})

	var groups [][2]int
	for start := 0; start < n; start += sliceSize {
		end := min(start+sliceSize, n)
		sort.Sort(byCentre{n: end - start, boxAt: offset(boxAt, start), swap: func(i, j int) {
			swap(start+i, start+j)
		}})
		for g := start; g < end; g += nodeCapacity {
			groups = append(groups, [2]int{g, min(g+nodeCapacity, end)})
		}
	}
	return groups
}

func offset(boxAt func(int) Box, start int) func(int) Box {
	return func(i int) Box { return boxAt(start + i) }
}

type byCentre struct {
	n     int
	boxAt func(int) Box
	swap  func(i, j int)
	x     bool
}

func (s byCentre) Len() int      { return s.n }
func (s byCentre) Swap(i, j int) { s.swap(i, j) }
func (s byCentre) Less(i, j int) bool {
	a, b := s.boxAt(i), s.boxAt(j)
	if s.x {
		return a.MinX+a.MaxX < b.MinX+b.MaxX
	}
	return a.MinY+a.MaxY < b.MinY+b.MaxY
}
