package query

import (
	"strings"

	"golang.org/x/text/cases"
)

// Direction is a canonical ordering direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection folds s to a canonical direction. Anything that is not a
// descending spelling, including the empty string, is ascending.
func ParseDirection(s string) Direction {
	switch cases.Fold().String(strings.TrimSpace(s)) {
	case "desc", "descending":
		return Desc
	default:
		return Asc
	}
}

const (
	DefaultSelectKey  = "select"
	DefaultIncludeKey = "include"
	DefaultSortKey    = "orderBy"
)

// Keys names the output entries for selection, inclusion and ordering.
type Keys struct {
	Select  string `json:"select,omitempty" yaml:"select,omitempty"`
	Include string `json:"include,omitempty" yaml:"include,omitempty"`
	Sort    string `json:"sort,omitempty" yaml:"sort,omitempty"`
}

func DefaultKeys() Keys {
	return Keys{Select: DefaultSelectKey, Include: DefaultIncludeKey, Sort: DefaultSortKey}
}

// WithDefaults fills every empty key with its default.
func (k Keys) WithDefaults() Keys {
	if k.Select == "" {
		k.Select = DefaultSelectKey
	}
	if k.Include == "" {
		k.Include = DefaultIncludeKey
	}
	if k.Sort == "" {
		k.Sort = DefaultSortKey
	}
	return k
}

// Override returns k with every non-empty key of o applied.
func (k Keys) Override(o Keys) Keys {
	if o.Select != "" {
		k.Select = o.Select
	}
	if o.Include != "" {
		k.Include = o.Include
	}
	if o.Sort != "" {
		k.Sort = o.Sort
	}
	return k
}

// Distinct reports whether the three keys differ, so no metadata entry
// can overwrite another on a node.
func (k Keys) Distinct() bool {
	return k.Select != k.Include && k.Select != k.Sort && k.Include != k.Sort
}

// EmptyRoot selects what the root selection holds when the caller names no
// valid root fields.
type EmptyRoot string

const (
	LeaveEmpty EmptyRoot = "leaveEmpty"
	ReturnAll  EmptyRoot = "returnAll"

	DefaultEmptyRoot = ReturnAll
)

// ParseEmptyRoot recognizes the two policy names.
func ParseEmptyRoot(s string) (EmptyRoot, bool) {
	switch EmptyRoot(s) {
	case LeaveEmpty:
		return LeaveEmpty, true
	case ReturnAll:
		return ReturnAll, true
	}
	return "", false
}
