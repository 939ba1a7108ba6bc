package collection

import (
	"fmt"
	"slices"
)

type binding struct {
	key   string
	index Index
}

// Collection is an indexed, read-only set of records built from a schema.
type Collection struct {
	schema   Schema
	indexes  map[string]Index
	bindings []binding
	data     []Record
}

// New validates schema and creates one index per field.
func New(schema Schema) (*Collection, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	c := &Collection{
		schema:  schema,
		indexes: make(map[string]Index, len(schema)),
	}
	for _, spec := range schema {
		idx, err := newIndex(spec)
		if err != nil {
			return nil, fmt.Errorf("building index %q: %w", spec.Field, err)
		}
		c.indexes[spec.Field] = idx
		c.bindings = append(c.bindings, binding{key: spec.QueryKey(), index: idx})
	}
	return c, nil
}

// Load stores records and feeds them to every index. It is meant to be
// called once, before the collection is shared.
func (c *Collection) Load(records []Record) {
	c.data = records
	for _, b := range c.bindings {
		b.index.Load(records)
	}
}

// Index returns the index built for field.
func (c *Collection) Index(field string) (Index, bool) {
	idx, ok := c.indexes[field]
	return idx, ok
}

// Fields returns the indexed fields in schema order.
func (c *Collection) Fields() []string {
	fields := make([]string, len(c.schema))
	for i, f := range c.schema {
		fields[i] = f.Field
	}
	return fields
}

// Schema returns the schema the collection was built from.
func (c *Collection) Schema() Schema {
	return c.schema
}

// All returns every loaded record in load order.
func (c *Collection) All() []Record {
	return slices.Clone(c.data)
}

// Len returns the number of loaded records.
func (c *Collection) Len() int {
	return len(c.data)
}

// Search runs every recognised criterion of q and intersects the results
// on the record code. Without any recognised criterion it returns the whole
// collection. When a text criterion takes part its relevance order wins.
func (c *Collection) Search(q Query) []Record {
	var lists [][]Record
	for _, b := range c.bindings {
		v, ok := q[b.key]
		if !ok || v == nil {
			continue
		}
		lists = append(lists, b.index.Find(v, q))
	}
	switch len(lists) {
	case 0:
		return c.All()
	case 1:
		return lists[0]
	}
	slices.SortStableFunc(lists, func(a, b []Record) int {
		sa, sb := scored(a), scored(b)
		switch {
		case sa && !sb:
			return -1
		case sb && !sa:
			return 1
		default:
			return 0
		}
	})
	return IntersectBy(lists, Record.Code)
}

// Get returns the first record with the given code.
func (c *Collection) Get(code string) (Record, bool) {
	if idx, ok := c.indexes[CodeField]; ok {
		found := idx.Find(code, nil)
		if len(found) > 0 {
			return found[0], true
		}
		return nil, false
	}
	for _, r := range c.data {
		if r.Code() == code {
			return r, true
		}
	}
	return nil, false
}

func scored(list []Record) bool {
	if len(list) == 0 {
		return false
	}
	_, ok := list[0].Score()
	return ok
}
