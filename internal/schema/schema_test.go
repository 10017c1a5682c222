package schema

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/populate/internal/language"
)

// describe flattens decl into one line per type reachable within depth
// relation hops, so cyclic declarations compare without recursion.
func describe(decl *Declaration, depth int) []string {
	var out []string
	var walk func(path string, d *Declaration, depth int)
	walk = func(path string, d *Declaration, depth int) {
		sortable := "default"
		if d.HasExplicitSortable() {
			sortable = "[" + strings.Join(d.Sortable, ",") + "]"
		}
		var rels []string
		for _, r := range d.Relations {
			rels = append(rels, r.Name)
		}
		out = append(out, path+" fields="+strings.Join(d.Fields, ",")+" sortable="+sortable+" relations="+strings.Join(rels, ","))
		if depth == 0 {
			return
		}
		for _, r := range d.Relations {
			walk(path+"."+r.Name, r.Schema, depth-1)
		}
	}
	walk("$", decl, depth)
	sort.Strings(out)
	return out
}

func TestDeclarationBuilder(t *testing.T) {
	d := New("User").AddField("id").SetSortable()
	require.True(t, d.HasExplicitSortable())
	require.Empty(t, d.SortableFields())
	require.NotNil(t, d.SortableFields())

	d = New("User").AddField("id", "name")
	require.False(t, d.HasExplicitSortable())
	require.Equal(t, []string{"id", "name"}, d.SortableFields())

	a, b := New("A"), New("B")
	d.AddRelation("rel", a).AddRelation("rel", b)
	require.Len(t, d.Relations, 1)
	got, ok := d.Relation("rel")
	require.True(t, ok)
	require.Same(t, b, got)
	_, ok = d.Relation("missing")
	require.False(t, ok)
}

func TestLoadFormatsAgree(t *testing.T) {
	want := []string{
		"$ fields=id,name,role,createdAt sortable=[name,createdAt] relations=posts,profile",
		"$.posts fields=id,title sortable=default relations=author,comments",
		"$.posts.author fields=id,name,role,createdAt sortable=[name,createdAt] relations=posts,profile",
		"$.posts.comments fields=id,text,createdAt sortable=[createdAt] relations=replies",
		"$.profile fields=id,bio sortable=default relations=",
	}
	for _, file := range []string{"blog.graphql", "blog.yaml", "blog.json"} {
		t.Run(file, func(t *testing.T) {
			decl, err := Load(filepath.Join("testdata", file), LoadOptions{RootType: "User"})
			require.NoError(t, err)
			require.Equal(t, "User", decl.Name)
			if diff := cmp.Diff(want, describe(decl, 2)[:5]); diff != "" {
				t.Fatalf("declaration mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFromSDLSharesRecursiveTypes(t *testing.T) {
	decl, err := LoadFile(filepath.Join("testdata", "blog.graphql"), LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "User", decl.Name, "first object type is the default root")

	posts, _ := decl.Relation("posts")
	author, _ := posts.Relation("author")
	require.Same(t, decl, author)

	comments, _ := posts.Relation("comments")
	replies, _ := comments.Relation("replies")
	require.Same(t, comments, replies)
}

func TestFromSDLViolations(t *testing.T) {
	_, err := FromSDL("bad.graphql", `
type User @sortable(fields: ["missing"]) {
  id: ID
  tags: [Tag]
  search: SearchResult
}
union SearchResult = User
input Filter { id: ID }
extend type Nope { id: ID }
`, "")
	require.Error(t, err)

	var le LoadError
	require.True(t, errors.As(err, &le))
	var msgs []string
	for _, v := range le {
		msgs = append(msgs, v.Message)
		require.Equal(t, "bad.graphql", v.File)
	}
	want := []string{
		`Cannot extend unknown type "Nope"`,
		`Unknown type "Tag" for field User.tags`,
		`Field User.search has unsupported union type "SearchResult"`,
		`Sortable field "missing" is not a selectable field of User`,
	}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
	require.True(t, IsLoadError(err))
	require.Contains(t, err.Error(), "violations found:")
}

func TestFromSDLRootType(t *testing.T) {
	src := "type A { id: ID }\nenum E { X }\n"
	_, err := FromSDL("a.graphql", src, "Missing")
	require.ErrorContains(t, err, `Root type "Missing" not found`)

	_, err = FromSDL("a.graphql", src, "E")
	require.ErrorContains(t, err, `Root type "E" must be an object type`)

	_, err = FromSDL("a.graphql", "enum E { X }", "")
	require.ErrorContains(t, err, "No object type found")

	_, err = FromSDL("a.graphql", "type {", "")
	var se *language.SyntaxError
	require.True(t, errors.As(err, &se))
}

func TestParseYAMLInline(t *testing.T) {
	decl, err := ParseYAML("inline.yaml", []byte(`
name: User
fields: id
sortable: []
relations:
  profile:
    fields: [id, bio]
    sortable:
`), "")
	require.NoError(t, err)
	require.Equal(t, "User", decl.Name)
	require.Equal(t, []string{"id"}, decl.Fields)
	require.True(t, decl.HasExplicitSortable())
	require.Empty(t, decl.SortableFields())

	profile, ok := decl.Relation("profile")
	require.True(t, ok)
	require.False(t, profile.HasExplicitSortable())
	require.Equal(t, []string{"id", "bio"}, profile.SortableFields())
}

func TestParseYAMLViolations(t *testing.T) {
	_, err := ParseYAML("bad.yaml", []byte(`
fields: [id]
colour: red
relations:
  posts: Post
  tags:
    $ref: Tag
    fields: [id]
  nested:
    types: {}
`), "")
	var le LoadError
	require.True(t, errors.As(err, &le))

	var got []string
	for _, v := range le {
		got = append(got, v.Message)
	}
	want := []string{
		`Unknown key "colour"`,
		`Unknown type "Post"`,
		`$ref must be the only key of relation "tags"`,
		`Unknown type "Tag"`,
		`types is only allowed at the top level`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 3, le[0].Line)
	require.Equal(t, "bad.yaml", le[0].File)

	_, err = ParseYAML("bad.yaml", []byte("- a\n- b\n"), "")
	require.ErrorContains(t, err, "Document must be a mapping")

	_, err = ParseYAML("bad.yaml", []byte("fields: [id\n"), "")
	require.Error(t, err)
	require.False(t, IsLoadError(err))

	_, err = ParseYAML("bad.yaml", []byte("types: {A: {fields: [id]}}\n"), "B")
	require.ErrorContains(t, err, `Root type "B" not found in types`)
}

func TestLoadDir(t *testing.T) {
	decl, err := Load(filepath.Join("testdata", "dir"), LoadOptions{RootType: "User"})
	require.NoError(t, err)
	want := []string{
		"$ fields=id,name sortable=[name] relations=posts",
		"$.posts fields=id,title sortable=default relations=author",
		"$.posts.author fields=id,name sortable=[name] relations=posts",
	}
	if diff := cmp.Diff(want, describe(decl, 2)); diff != "" {
		t.Fatalf("declaration mismatch (-want +got):\n%s", diff)
	}

	_, err = LoadDir(t.TempDir(), "")
	require.ErrorContains(t, err, "no SDL files")
}

func TestFormats(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "SDL": FormatSDL, "graphql": FormatSDL, "yml": FormatYAML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
	_, err := ParseFormat("toml")
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = DetectFormat("schema.toml")
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Load(filepath.Join("testdata", "missing.yaml"), LoadOptions{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderSnapshot(t *testing.T) {
	decl, err := LoadFile(filepath.Join("testdata", "blog.yaml"), LoadOptions{})
	require.NoError(t, err)
	actual := Render(decl)

	snapshotPath := filepath.Join("testdata", "blog.rendered.graphql")
	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err)
	if diff := cmp.Diff(string(expected), actual); diff != "" {
		t.Errorf("render snapshot mismatch (-want +got):\n%s", diff)
	}

	back, err := FromSDL("rendered.graphql", actual, "User")
	require.NoError(t, err)
	if diff := cmp.Diff(describe(decl, 3), describe(back, 3)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderNamesAnonymousTypes(t *testing.T) {
	shared := New("").AddField("id")
	decl := New("").AddField("id").
		AddRelation("posts", New("").AddField("title").AddRelation("tags", shared)).
		AddRelation("tags", shared).
		AddRelation("other", New("Tags").AddField("x"))
	got := Render(decl)
	want := `type Root {
  id: String
  posts: Posts
  tags: Tags
  other: Tags2
}

type Posts {
  title: String
  tags: Tags
}

type Tags {
  id: String
}

type Tags2 {
  x: String
}
`
	require.Equal(t, want, got)
	require.Equal(t, "", Render(nil))
}
