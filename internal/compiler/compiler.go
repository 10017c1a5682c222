// Package compiler binds a schema declaration to its path index and compiles
// populate requests into query objects.
package compiler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/index"
	"github.com/hanpama/populate/internal/populate"
	"github.com/hanpama/populate/internal/query"
	"github.com/hanpama/populate/internal/schema"
)

// Request is one compile call.
type Request struct {
	Populate                []string          `json:"populate" yaml:"populate"`
	SelectableFields        []string          `json:"selectableFields,omitempty" yaml:"selectableFields,omitempty"`
	Sort                    populate.SortList `json:"sort,omitempty" yaml:"sort,omitempty"`
	IncludeKey              string            `json:"includeKey,omitempty" yaml:"includeKey,omitempty"`
	SelectKey               string            `json:"selectKey,omitempty" yaml:"selectKey,omitempty"`
	SortKey                 string            `json:"sortKey,omitempty" yaml:"sortKey,omitempty"`
	EmptyRootFieldsBehavior string            `json:"emptyRootFieldsBehavior,omitempty" yaml:"emptyRootFieldsBehavior,omitempty"`
}

// Result describes one compilation step by step.
type Result struct {
	Accepted     []string               `json:"accepted"`
	Dropped      []string               `json:"dropped"`
	DroppedSorts []populate.SortRequest `json:"droppedSorts"`
	RootSort     *query.Object          `json:"rootSort"`
	Output       *query.Object          `json:"output"`

	Tree *populate.Tree `json:"-"`
}

// Options are the instance defaults a Request may override.
type Options struct {
	MaxDepth  int
	Keys      query.Keys
	EmptyRoot query.EmptyRoot
}

type Option func(*Options)

// WithMaxDepth bounds how deep relation keys are indexed.
func WithMaxDepth(n int) Option { return func(o *Options) { o.MaxDepth = n } }

// WithKeys overrides the default output key names. Empty fields keep their default.
func WithKeys(k query.Keys) Option { return func(o *Options) { o.Keys = o.Keys.Override(k) } }

// WithEmptyRoot sets the default empty-root policy.
func WithEmptyRoot(p query.EmptyRoot) Option { return func(o *Options) { o.EmptyRoot = p } }

// Compiler holds the cached index for one declaration. It is immutable after
// New and safe for concurrent use.
type Compiler struct {
	decl *schema.Declaration
	idx  *index.Index
	opts Options
}

// New builds the index for decl once.
func New(decl *schema.Declaration, opts ...Option) *Compiler {
	o := Options{
		MaxDepth:  index.DefaultMaxDepth,
		Keys:      query.DefaultKeys(),
		EmptyRoot: query.DefaultEmptyRoot,
	}
	for _, f := range opts {
		f(&o)
	}
	if _, ok := query.ParseEmptyRoot(string(o.EmptyRoot)); !ok {
		o.EmptyRoot = query.DefaultEmptyRoot
	}
	if !o.Keys.Distinct() {
		o.Keys = query.DefaultKeys()
	}
	return &Compiler{
		decl: decl,
		idx:  index.Build(decl, index.WithMaxDepth(o.MaxDepth)),
		opts: o,
	}
}

func (c *Compiler) Index() *index.Index { return c.idx }

func (c *Compiler) Schema() *schema.Declaration { return c.decl }

func (c *Compiler) Options() Options { return c.opts }

// Name is the root declaration name, or empty.
func (c *Compiler) Name() string {
	if c.decl == nil {
		return ""
	}
	return c.decl.Name
}

// Load returns c, so a fixed compiler can serve as a Provider.
func (c *Compiler) Load() *Compiler { return c }

// Compile runs the pipeline for req. Unknown paths and sorts are dropped.
func (c *Compiler) Compile(ctx context.Context, req Request) *query.Object {
	return c.Explain(ctx, req).Output
}

// Explain is Compile that also reports the intermediate results.
func (c *Compiler) Explain(ctx context.Context, req Request) *Result {
	start := time.Now()
	eventbus.Publish(ctx, events.CompileStart{
		Schema:   c.Name(),
		Populate: len(req.Populate),
		Sort:     len(req.Sort),
	})

	keys, emptyRoot := c.resolve(req)
	res := &Result{
		Accepted:     populate.FilterValid(req.Populate, c.idx),
		Dropped:      []string{},
		DroppedSorts: []populate.SortRequest{},
	}
	for _, p := range req.Populate {
		if !populate.IsValid(p, c.idx) {
			res.Dropped = append(res.Dropped, p)
		}
	}

	res.Tree = populate.BuildTree(res.Accepted, c.idx)
	var dropped []populate.SortRequest
	res.RootSort, dropped = populate.AttachSortReport(req.Sort, c.idx, res.Tree, keys.Sort)
	res.DroppedSorts = append(res.DroppedSorts, dropped...)
	res.Output = populate.Serialize(res.Tree, req.SelectableFields, res.RootSort, c.idx, populate.SerializeOptions{
		Keys:      keys,
		EmptyRoot: emptyRoot,
	})

	droppedSorts := make([]string, len(res.DroppedSorts))
	for i, r := range res.DroppedSorts {
		droppedSorts[i] = r.Field
	}
	eventbus.Publish(ctx, events.CompileFinish{
		Schema:       c.Name(),
		Accepted:     len(res.Accepted),
		Dropped:      res.Dropped,
		DroppedSorts: droppedSorts,
		Duration:     time.Since(start),
	})
	return res
}

func (c *Compiler) resolve(req Request) (query.Keys, query.EmptyRoot) {
	keys := c.opts.Keys.Override(query.Keys{
		Select:  req.SelectKey,
		Include: req.IncludeKey,
		Sort:    req.SortKey,
	})
	// Colliding overrides are ignored as a set.
	if !keys.Distinct() {
		keys = c.opts.Keys
	}
	emptyRoot := c.opts.EmptyRoot
	if p, ok := query.ParseEmptyRoot(req.EmptyRootFieldsBehavior); ok {
		emptyRoot = p
	}
	return keys, emptyRoot
}

// Provider yields the compiler to use for the next request.
type Provider interface {
	Load() *Compiler
}

// Holder is a Provider whose compiler can be swapped while serving.
// In-flight compilations keep the compiler they loaded.
type Holder struct {
	p atomic.Pointer[Compiler]
}

func NewHolder(c *Compiler) *Holder {
	h := &Holder{}
	h.p.Store(c)
	return h
}

func (h *Holder) Load() *Compiler { return h.p.Load() }

// Swap installs c and returns the previous compiler.
func (h *Holder) Swap(c *Compiler) *Compiler { return h.p.Swap(c) }
