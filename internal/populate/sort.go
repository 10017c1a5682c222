package populate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/populate/internal/index"
	"github.com/hanpama/populate/internal/query"
)

// SortRequest asks for ordering on a root field or a dotted relation field.
type SortRequest struct {
	Field     string `json:"field" yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// ParseSort reads the "field" or "field:direction" shorthand.
func ParseSort(s string) SortRequest {
	field, dir, _ := strings.Cut(strings.TrimSpace(s), ":")
	return SortRequest{Field: field, Direction: dir}
}

func (r SortRequest) String() string {
	return r.Field + ":" + string(query.ParseDirection(r.Direction))
}

// SortList is an ordered list of sort requests. Decoders accept a single
// request object as well as an array.
type SortList []SortRequest

func (l *SortList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = nil
		return nil
	case len(b) > 0 && b[0] == '{':
		var one SortRequest
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*l = SortList{one}
		return nil
	}
	var many []SortRequest
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

func (l *SortList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.MappingNode:
		var one SortRequest
		if err := value.Decode(&one); err != nil {
			return err
		}
		*l = SortList{one}
	case yaml.SequenceNode:
		var many []SortRequest
		if err := value.Decode(&many); err != nil {
			return err
		}
		*l = many
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = SortList{ParseSort(value.Value)}
	default:
		return fmt.Errorf("populate: sort must be a mapping or a sequence, got line %d", value.Line)
	}
	return nil
}

func (l *SortList) DecodeMsgpack(dec *msgpack.Decoder) error {
	c, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch {
	case c == msgpcode.Nil:
		*l = nil
		return dec.DecodeNil()
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		var one SortRequest
		if err := dec.Decode(&one); err != nil {
			return err
		}
		*l = SortList{one}
	case msgpcode.IsString(c):
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*l = SortList{ParseSort(s)}
	default:
		var many []SortRequest
		if err := dec.Decode(&many); err != nil {
			return err
		}
		*l = many
	}
	return nil
}

// AttachSort validates reqs against idx and tree. Nested directives are merged
// into the metadata of their relation node under sortKey; root directives are
// returned in first-seen order.
func AttachSort(reqs []SortRequest, idx *index.Index, tree *Tree, sortKey string) *query.Object {
	root, _ := AttachSortReport(reqs, idx, tree, sortKey)
	return root
}

// AttachSortReport is AttachSort that also returns the requests it dropped.
func AttachSortReport(reqs []SortRequest, idx *index.Index, tree *Tree, sortKey string) (*query.Object, []SortRequest) {
	root := query.NewObject()
	var dropped []SortRequest
	for _, r := range reqs {
		dir := query.ParseDirection(r.Direction)
		prefix, field, nested := index.Split(r.Field)
		if !nested {
			if !idx.Root.Sortable.Has(r.Field) {
				dropped = append(dropped, r)
				continue
			}
			root.Set(r.Field, dir)
			continue
		}
		if prefix == "" || field == "" {
			dropped = append(dropped, r)
			continue
		}
		n := tree.Lookup(prefix)
		if n == nil || !idx.Relations.Sortable.Has(r.Field) {
			dropped = append(dropped, r)
			continue
		}
		if n.Metadata == nil {
			n.Metadata = query.NewObject()
		}
		sort := n.Metadata.Object(sortKey)
		if sort == nil {
			sort = query.NewObject()
			n.Metadata.Set(sortKey, sort)
		}
		sort.Set(field, dir)
	}
	return root, dropped
}
