package populate

import (
	"github.com/hanpama/populate/internal/index"
	"github.com/hanpama/populate/internal/query"
)

// SerializeOptions configures Serialize.
type SerializeOptions struct {
	Keys      query.Keys
	EmptyRoot query.EmptyRoot
}

// Serialize renders the tree, the root field selection and the root sort into
// a fresh query object. The root selection and the top-level include entry
// are always present; the root sort entry only when non-empty.
func Serialize(tree *Tree, rootFields []string, rootSort *query.Object, idx *index.Index, opts SerializeOptions) *query.Object {
	keys := opts.Keys.WithDefaults()

	out := query.NewObject()
	out.Set(keys.Select, selectRoot(rootFields, idx, opts.EmptyRoot))

	include := query.NewObject()
	if tree != nil {
		for _, n := range tree.Roots() {
			include.Set(n.Name, serializeNode(n, keys))
		}
	}
	out.Set(keys.Include, include)

	if rootSort.Len() > 0 {
		out.Set(keys.Sort, rootSort)
	}
	return out
}

func selectRoot(fields []string, idx *index.Index, policy query.EmptyRoot) *query.Object {
	chosen := index.NewSet()
	for _, f := range fields {
		if idx.Root.Selectable.Has(f) {
			chosen.Add(f)
		}
	}
	if chosen.Len() == 0 && policy != query.LeaveEmpty {
		chosen = idx.Root.Selectable
	}
	sel := query.NewObject()
	for _, f := range chosen.Values() {
		sel.Set(f, true)
	}
	return sel
}

func serializeNode(n *Node, keys query.Keys) *query.Object {
	obj := query.NewObject()
	if n.Fields.Len() > 0 {
		sel := query.NewObject()
		for _, f := range n.Fields.Values() {
			sel.Set(f, true)
		}
		obj.Set(keys.Select, sel)
	}
	obj.Merge(n.Metadata)
	if n.HasChildren() {
		include := query.NewObject()
		for _, c := range n.Children() {
			include.Set(c.Name, serializeNode(c, keys))
		}
		obj.Set(keys.Include, include)
	}
	return obj
}
