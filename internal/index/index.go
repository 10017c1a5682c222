// Package index flattens a schema declaration into the lookup sets used to
// validate populate paths and sort requests.
package index

import (
	"encoding/json"
	"strings"

	"github.com/hanpama/populate/internal/schema"
)

// Separator joins relation and field names into a path.
const Separator = "."

// DefaultMaxDepth bounds the number of segments in an indexed relation key.
const DefaultMaxDepth = 6

// Index is the flattened, read-only view of a declaration.
// It is never mutated after Build and is safe for concurrent readers.
type Index struct {
	Root      RootSets     `json:"root"`
	Relations RelationSets `json:"relations"`

	direct map[string]*Set
}

type RootSets struct {
	Selectable *Set `json:"selectable"`
	Sortable   *Set `json:"sortable"`
}

type RelationSets struct {
	Keys       *Set `json:"keys"`
	Selectable *Set `json:"selectable"`
	Sortable   *Set `json:"sortable"`
}

// Option configures Build.
type Option func(*options)

type options struct {
	maxDepth int
}

// WithMaxDepth sets how many relation segments deep the walk descends.
// Values below one fall back to DefaultMaxDepth.
func WithMaxDepth(n int) Option { return func(o *options) { o.maxDepth = n } }

// Build flattens decl. A nil declaration yields an empty index.
func Build(decl *schema.Declaration, opts ...Option) *Index {
	o := options{maxDepth: DefaultMaxDepth}
	for _, f := range opts {
		f(&o)
	}
	if o.maxDepth < 1 {
		o.maxDepth = DefaultMaxDepth
	}

	idx := &Index{
		Root: RootSets{Selectable: NewSet(), Sortable: NewSet()},
		Relations: RelationSets{
			Keys:       NewSet(),
			Selectable: NewSet(),
			Sortable:   NewSet(),
		},
		direct: make(map[string]*Set),
	}
	if decl == nil {
		return idx
	}

	for _, f := range decl.Fields {
		idx.Root.Selectable.Add(f)
	}
	for _, f := range decl.SortableFields() {
		idx.Root.Sortable.Add(f)
	}

	b := &builder{idx: idx, maxDepth: o.maxDepth}
	b.walk("", decl, 0)
	return idx
}

type builder struct {
	idx      *Index
	maxDepth int
}

// walk visits the relations of decl. depth counts the segments of prefix.
func (b *builder) walk(prefix string, decl *schema.Declaration, depth int) {
	if decl == nil || depth >= b.maxDepth {
		return
	}
	for _, rel := range decl.Relations {
		if rel == nil || rel.Name == "" {
			continue
		}
		path := Join(prefix, rel.Name)
		b.idx.Relations.Keys.Add(path)

		related := rel.Schema
		if related == nil {
			continue
		}
		direct, ok := b.idx.direct[path]
		if !ok {
			direct = NewSet()
			b.idx.direct[path] = direct
		}
		for _, f := range related.Fields {
			b.idx.Relations.Selectable.Add(Join(path, f))
			if !strings.Contains(f, Separator) {
				direct.Add(f)
			}
		}
		for _, f := range related.SortableFields() {
			b.idx.Relations.Sortable.Add(Join(path, f))
		}
		b.walk(path, related, depth+1)
	}
}

// IsRelation reports whether path is an indexed relation key.
func (idx *Index) IsRelation(path string) bool { return idx.Relations.Keys.Has(path) }

// IsRelationField reports whether path names a selectable field of a relation.
func (idx *Index) IsRelationField(path string) bool { return idx.Relations.Selectable.Has(path) }

// DirectFields returns the selectable fields declared directly on the
// relation at path, in declaration order.
func (idx *Index) DirectFields(path string) []string {
	return idx.direct[path].Values()
}

// Join appends name to prefix with the path separator.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + Separator + name
}

// Split breaks path into its relation prefix and trailing segment.
// ok is false when path has no separator.
func Split(path string) (prefix, last string, ok bool) {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return "", path, false
	}
	return path[:i], path[i+1:], true
}

// MarshalJSON encodes the set as a JSON array in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	v := s.Values()
	if v == nil {
		v = []string{}
	}
	return json.Marshal(v)
}
