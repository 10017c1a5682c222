package compiler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/populate/internal/eventbus"
	"github.com/hanpama/populate/internal/events"
	"github.com/hanpama/populate/internal/populate"
	"github.com/hanpama/populate/internal/query"
	"github.com/hanpama/populate/internal/schema"
)

func profileSchema() *schema.Declaration {
	return schema.New("User").AddField("id", "name").
		AddRelation("profile", schema.New("Profile").AddField("id", "bio"))
}

func blogSchema() *schema.Declaration {
	comment := schema.New("Comment").AddField("id", "text", "createdAt").SetSortable("createdAt")
	comment.AddRelation("replies", comment)
	post := schema.New("Post").AddField("id", "title").AddRelation("comments", comment)
	return schema.New("User").AddField("id", "name", "email").
		AddRelation("posts", post).
		AddRelation("profile", schema.New("Profile").AddField("id", "bio"))
}

func compileJSON(t *testing.T, c *Compiler, req Request) string {
	t.Helper()
	b, err := json.Marshal(c.Compile(context.Background(), req))
	require.NoError(t, err)
	return string(b)
}

func TestCompileCases(t *testing.T) {
	c := New(profileSchema())
	for _, tc := range []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "bare relation expands",
			req:  Request{SelectableFields: []string{"id"}, Populate: []string{"profile"}},
			want: `{"select":{"id":true},"include":{"profile":{"select":{"id":true,"bio":true}}}}`,
		},
		{
			name: "explicit field suppresses expansion",
			req:  Request{SelectableFields: []string{"id"}, Populate: []string{"profile.bio"}},
			want: `{"select":{"id":true},"include":{"profile":{"select":{"bio":true}}}}`,
		},
		{
			name: "explicit field wins over bare in the same input",
			req:  Request{SelectableFields: []string{"id"}, Populate: []string{"profile", "profile.bio"}},
			want: `{"select":{"id":true},"include":{"profile":{"select":{"bio":true}}}}`,
		},
		{
			name: "returnAll",
			req:  Request{Populate: []string{}, EmptyRootFieldsBehavior: "returnAll"},
			want: `{"select":{"id":true,"name":true},"include":{}}`,
		},
		{
			name: "leaveEmpty",
			req:  Request{Populate: []string{}, EmptyRootFieldsBehavior: "leaveEmpty"},
			want: `{"select":{},"include":{}}`,
		},
		{
			name: "unknown policy falls back to returnAll",
			req:  Request{EmptyRootFieldsBehavior: "nothing"},
			want: `{"select":{"id":true,"name":true},"include":{}}`,
		},
		{
			name: "invalid paths are dropped",
			req:  Request{SelectableFields: []string{"name"}, Populate: []string{"", "friends", "profile.age", "profile.id"}},
			want: `{"select":{"name":true},"include":{"profile":{"select":{"id":true}}}}`,
		},
		{
			name: "custom keys",
			req: Request{
				SelectableFields: []string{"id"},
				Populate:         []string{"profile"},
				Sort:             populate.SortList{{Field: "name", Direction: "DESC"}},
				SelectKey:        "columns",
				IncludeKey:       "with",
				SortKey:          "sortBy",
			},
			want: `{"columns":{"id":true},"with":{"profile":{"columns":{"id":true,"bio":true}}},"sortBy":{"name":"desc"}}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.JSONEq(t, tc.want, compileJSON(t, c, tc.req))
			require.Equal(t, tc.want, compileJSON(t, c, tc.req))
		})
	}
}

func TestSortOnUnpopulatedRelationIsDropped(t *testing.T) {
	c := New(blogSchema())
	res := c.Explain(context.Background(), Request{
		Populate: []string{},
		Sort:     populate.SortList{{Field: "posts.title"}},
	})
	require.Equal(t, 0, res.Output.Object("include").Len())
	require.False(t, res.Output.Has("orderBy"))
	require.Equal(t, []populate.SortRequest{{Field: "posts.title"}}, res.DroppedSorts)
}

func TestNestedSort(t *testing.T) {
	c := New(blogSchema())
	got := compileJSON(t, c, Request{
		SelectableFields: []string{"id"},
		Populate:         []string{"posts.title", "posts.comments"},
		Sort: populate.SortList{
			{Field: "posts.comments.createdAt", Direction: "desc"},
			{Field: "posts.comments.text"},
			{Field: "posts.title"},
			{Field: "email", Direction: "desc"},
		},
	})
	want := `{"select":{"id":true},` +
		`"include":{"posts":{"select":{"title":true},"orderBy":{"title":"asc"},` +
		`"include":{"comments":{"select":{"id":true,"text":true,"createdAt":true},"orderBy":{"createdAt":"desc"}}}}},` +
		`"orderBy":{"email":"desc"}}`
	require.Equal(t, want, got)
}

func TestSelfReferenceRespectsMaxDepth(t *testing.T) {
	deep := "posts.comments.replies.replies.replies"
	require.True(t, New(blogSchema()).Index().IsRelation(deep))
	require.False(t, New(blogSchema(), WithMaxDepth(3)).Index().IsRelation(deep))

	c := New(blogSchema(), WithMaxDepth(3))
	res := c.Explain(context.Background(), Request{Populate: []string{"posts.comments.replies", deep}})
	require.Equal(t, []string{"posts.comments.replies"}, res.Accepted)
	require.Equal(t, []string{deep}, res.Dropped)
}

func TestExplain(t *testing.T) {
	c := New(blogSchema())
	res := c.Explain(context.Background(), Request{
		Populate: []string{"posts", "nope", "posts.title"},
		Sort:     populate.SortList{{Field: "id"}, {Field: "bogus"}},
	})
	require.Equal(t, []string{"posts", "posts.title"}, res.Accepted)
	require.Equal(t, []string{"nope"}, res.Dropped)
	require.Equal(t, []populate.SortRequest{{Field: "bogus"}}, res.DroppedSorts)
	require.Equal(t, []string{"id"}, res.RootSort.Keys())
	require.Equal(t, []string{"title"}, res.Tree.Root("posts").Fields.Values())

	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.Contains(t, string(b), `"dropped":["nope"]`)
}

func TestCompileIsIdempotent(t *testing.T) {
	c := New(blogSchema())
	req := Request{
		Populate: []string{"posts.comments", "profile"},
		Sort:     populate.SortList{{Field: "posts.comments.createdAt", Direction: "desc"}},
	}
	first := c.Compile(context.Background(), req).Map()
	second := c.Compile(context.Background(), req).Map()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second compile differs (-first +second):\n%s", diff)
	}
	require.Equal(t, []string{"posts.comments", "profile"}, req.Populate)
}

func TestCompileConcurrent(t *testing.T) {
	c := New(blogSchema())
	req := Request{Populate: []string{"posts.title", "posts.comments.replies", "profile"}}
	want := compileJSON(t, c, req)

	var wg sync.WaitGroup
	errs := make(chan string, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(c.Compile(context.Background(), req))
			if string(b) != want {
				errs <- string(b)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Fatalf("concurrent compile mismatch: %s", got)
	}
}

func TestOptions(t *testing.T) {
	c := New(profileSchema(),
		WithKeys(query.Keys{Include: "with"}),
		WithEmptyRoot(query.LeaveEmpty),
	)
	require.Equal(t, `{"select":{},"with":{}}`, compileJSON(t, c, Request{}))
	require.Equal(t, `{"select":{"id":true,"name":true},"include":{}}`,
		compileJSON(t, c, Request{IncludeKey: "include", EmptyRootFieldsBehavior: "returnAll"}))

	require.Equal(t, query.ReturnAll, New(nil, WithEmptyRoot("bogus")).Options().EmptyRoot)
}

func TestCollidingKeys(t *testing.T) {
	c := New(profileSchema())
	got := compileJSON(t, c, Request{
		Populate:  []string{"profile"},
		Sort:      populate.SortList{{Field: "profile.id"}},
		SelectKey: "x",
		SortKey:   "x",
	})
	want := `{"select":{"id":true,"name":true},"include":{"profile":{"select":{"id":true,"bio":true},"orderBy":{"id":"asc"}}}}`
	require.Equal(t, want, got)

	require.Equal(t, query.DefaultKeys(), New(nil, WithKeys(query.Keys{Include: "select"})).Options().Keys)
	require.True(t, query.DefaultKeys().Distinct())
}

func TestNilSchema(t *testing.T) {
	c := New(nil)
	require.Equal(t, "", c.Name())
	require.Equal(t, `{"select":{},"include":{}}`, compileJSON(t, c, Request{Populate: []string{"x"}}))
}

func TestCompilePublishesEvents(t *testing.T) {
	prev := eventbus.Global()
	eventbus.Use(eventbus.New())
	defer eventbus.Use(prev)

	var starts []events.CompileStart
	var finishes []events.CompileFinish
	eventbus.Subscribe(func(_ context.Context, e events.CompileStart) { starts = append(starts, e) })
	eventbus.Subscribe(func(_ context.Context, e events.CompileFinish) { finishes = append(finishes, e) })

	New(profileSchema()).Compile(context.Background(), Request{
		Populate: []string{"profile", "bogus"},
		Sort:     populate.SortList{{Field: "profile.bio"}},
	})
	require.Len(t, starts, 1)
	require.Equal(t, events.CompileStart{Schema: "User", Populate: 2, Sort: 1}, starts[0])
	require.Len(t, finishes, 1)
	require.Equal(t, 1, finishes[0].Accepted)
	require.Equal(t, []string{"bogus"}, finishes[0].Dropped)
	require.Empty(t, finishes[0].DroppedSorts)
}

func TestHolder(t *testing.T) {
	a, b := New(profileSchema()), New(blogSchema())
	h := NewHolder(a)
	require.Same(t, a, h.Load())
	require.Same(t, a, h.Swap(b))
	require.Same(t, b, h.Load())

	var p Provider = a
	require.Same(t, a, p.Load())
}
