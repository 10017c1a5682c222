package schema

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Render produces SDL that FromSDL reads back into an equivalent declaration.
// Types appear in the order they are reached from decl. Unnamed declarations
// are named after the relation that leads to them; clashing names get a
// numeric suffix.
func Render(decl *Declaration) string {
	if decl == nil {
		return ""
	}
	r := &renderer{
		names: make(map[*Declaration]string),
		used:  make(map[string]int),
		title: cases.Title(language.Und, cases.NoLower),
	}
	r.collect(decl, "Root")

	var b strings.Builder
	for _, d := range r.order {
		r.renderType(&b, d)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

type renderer struct {
	names map[*Declaration]string
	used  map[string]int
	order []*Declaration
	title cases.Caser
}

func (r *renderer) collect(d *Declaration, fallback string) {
	if _, ok := r.names[d]; ok {
		return
	}
	name := d.Name
	if name == "" {
		name = r.title.String(fallback)
	}
	r.used[name]++
	if n := r.used[name]; n > 1 {
		name += strconv.Itoa(n)
	}
	r.names[d] = name
	r.order = append(r.order, d)

	for _, rel := range d.Relations {
		if rel.Schema != nil {
			r.collect(rel.Schema, rel.Name)
		}
	}
}

func (r *renderer) renderType(b *strings.Builder, d *Declaration) {
	b.WriteString("type ")
	b.WriteString(r.names[d])
	if d.HasExplicitSortable() {
		b.WriteString(" @")
		b.WriteString(DirectiveSortable)
		b.WriteString("(fields: [")
		for i, f := range d.Sortable {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(f))
		}
		b.WriteString("])")
	}
	b.WriteString(" {\n")
	for _, f := range d.Fields {
		b.WriteString("  ")
		b.WriteString(f)
		b.WriteString(": String\n")
	}
	for _, rel := range d.Relations {
		if rel.Schema == nil {
			continue
		}
		b.WriteString("  ")
		b.WriteString(rel.Name)
		b.WriteString(": ")
		b.WriteString(r.names[rel.Schema])
		b.WriteString("\n")
	}
	b.WriteString("}\n\n")
}
