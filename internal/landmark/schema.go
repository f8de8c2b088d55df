package landmark

import (
	"fmt"
	"sort"
)

// Name is the stable, backend-independent identifier of a skeletal point
type Name string

// Edge connects two landmark indices of a schema for skeleton rendering
type Edge [2]int

// Schema is a fixed, ordered naming of skeletal keypoints.
// Numeric indices are only meaningful relative to a schema.
type Schema struct {
	id    string
	names []Name
	index map[Name]int
	edges []Edge
}

func newSchema(id string, names []Name, edges []Edge) *Schema {
	s := &Schema{
		id:    id,
		names: names,
		index: make(map[Name]int, len(names)),
		edges: edges,
	}
	for i, n := range names {
		s.index[n] = i
	}
	return s
}

// ID returns the schema identifier used in configuration
func (s *Schema) ID() string {
	return s.id
}

// Len returns the number of named points
func (s *Schema) Len() int {
	return len(s.names)
}

// NameFor returns the name of the point at index i.
// Indices outside the schema map to "unknown_<i>" so that a backend emitting
// extra points still produces addressable output.
func (s *Schema) NameFor(i int) Name {
	if i < 0 || i >= len(s.names) {
		return Name(fmt.Sprintf("unknown_%d", i))
	}
	return s.names[i]
}

// Index returns the index of a named point
func (s *Schema) Index(n Name) (int, bool) {
	i, ok := s.index[n]
	return i, ok
}

// Names returns a copy of the ordered names
func (s *Schema) Names() []Name {
	out := make([]Name, len(s.names))
	copy(out, s.names)
	return out
}

// Edges returns the skeleton connections used when drawing the schema
func (s *Schema) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

var registry = map[string]*Schema{}

func register(s *Schema) *Schema {
	registry[s.id] = s
	return s
}

// Lookup returns a registered schema by id
func Lookup(id string) (*Schema, error) {
	s, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("unknown landmark schema %q", id)
	}
	return s, nil
}

// IDs returns the ids of all registered schemas, sorted
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
