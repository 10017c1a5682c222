// Package populate turns validated populate paths and sort requests into a
// relation tree and serializes it into a query.Object.
package populate

import (
	"strings"

	"github.com/hanpama/populate/internal/index"
	"github.com/hanpama/populate/internal/query"
)

// Tree maps root relation names to nodes in first-seen order.
type Tree struct {
	nodes children
}

// Node is one relation level of a Tree.
type Node struct {
	Name string
	// Path is the dot-joined path from the tree root. Never empty.
	Path string
	// Fields holds leaf field names selected on this relation.
	Fields *index.Set
	// Metadata carries sort directives under the configured sort key.
	Metadata *query.Object

	nodes children
}

type children struct {
	order  []*Node
	byName map[string]*Node
}

func (c *children) get(name string) *Node {
	return c.byName[name]
}

// ensure returns the child called name, creating it under parent path if absent.
func (c *children) ensure(parent, name string) *Node {
	if n, ok := c.byName[name]; ok {
		return n
	}
	if c.byName == nil {
		c.byName = make(map[string]*Node)
	}
	n := &Node{Name: name, Path: index.Join(parent, name), Fields: index.NewSet()}
	c.byName[name] = n
	c.order = append(c.order, n)
	return n
}

func (c *children) list() []*Node {
	out := make([]*Node, len(c.order))
	copy(out, c.order)
	return out
}

func NewTree() *Tree { return &Tree{} }

// Roots returns the root nodes in insertion order.
func (t *Tree) Roots() []*Node { return t.nodes.list() }

func (t *Tree) Root(name string) *Node { return t.nodes.get(name) }

func (t *Tree) Len() int { return len(t.nodes.order) }

// Lookup navigates the tree along a dot-joined relation path.
func (t *Tree) Lookup(path string) *Node {
	if path == "" {
		return nil
	}
	segs := strings.Split(path, index.Separator)
	n := t.nodes.get(segs[0])
	for _, seg := range segs[1:] {
		if n == nil {
			return nil
		}
		n = n.nodes.get(seg)
	}
	return n
}

// Walk visits every node once in pre-order.
func (t *Tree) Walk(fn func(*Node)) {
	for _, n := range t.nodes.order {
		n.walk(fn)
	}
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.nodes.order {
		c.walk(fn)
	}
}

// Children returns the child relations in insertion order.
func (n *Node) Children() []*Node { return n.nodes.list() }

func (n *Node) Child(name string) *Node { return n.nodes.get(name) }

// HasChildren reports whether any relation hangs under n.
func (n *Node) HasChildren() bool { return len(n.nodes.order) > 0 }
