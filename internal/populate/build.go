package populate

import (
	"strings"

	"github.com/hanpama/populate/internal/index"
)

// BuildTree constructs the relation tree for already validated paths.
//
// A relation requested bare gets all of its direct fields unless some path
// names one of its fields explicitly, in any position of the input.
func BuildTree(valid []string, idx *index.Index) *Tree {
	explicit := explicitFields(valid, idx)

	t := NewTree()
	for _, p := range valid {
		t.insert(p, idx)
	}

	requested := index.NewSet(valid...)
	t.Walk(func(n *Node) {
		if !requested.Has(n.Path) || explicit[n.Path] != nil || n.Fields.Len() > 0 {
			return
		}
		for _, f := range idx.DirectFields(n.Path) {
			n.Fields.Add(f)
		}
	})
	return t
}

// explicitFields records, per relation path, the field names requested
// directly on it.
func explicitFields(valid []string, idx *index.Index) map[string]*index.Set {
	out := make(map[string]*index.Set)
	for _, p := range valid {
		prefix, last, ok := index.Split(p)
		if !ok || !idx.IsRelationField(p) {
			continue
		}
		set, ok := out[prefix]
		if !ok {
			set = index.NewSet()
			out[prefix] = set
		}
		set.Add(last)
	}
	return out
}

// insert walks the segments of p, creating relation nodes as needed. A
// trailing segment that is a selectable field of the current relation is
// recorded as a field instead.
func (t *Tree) insert(p string, idx *index.Index) {
	segs := strings.Split(p, index.Separator)
	n := t.nodes.ensure("", segs[0])
	for i := 1; i < len(segs); i++ {
		path := index.Join(n.Path, segs[i])
		if i == len(segs)-1 && idx.IsRelationField(path) {
			n.Fields.Add(segs[i])
			return
		}
		n = n.nodes.ensure(n.Path, segs[i])
	}
}
