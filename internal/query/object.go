// Package query holds the structured query descriptor produced by a
// compilation: an ordered object tree of selection, inclusion and ordering
// entries, plus its JSON, msgpack and protobuf Struct encodings.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

// Object is a string-keyed mapping that remembers insertion order.
// Values are true (selection), *Object (nested objects) or Direction.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores v under key. An existing key keeps its position.
func (o *Object) Set(key string, v any) *Object {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	return o
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Object returns the nested object stored under key, or nil.
func (o *Object) Object(key string) *Object {
	v, _ := o.Get(key)
	obj, _ := v.(*Object)
	return obj
}

func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Merge copies every entry of other into o, in other's order.
func (o *Object) Merge(other *Object) *Object {
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		o.Set(k, v)
	}
	return o
}

// Map converts the object into plain nested maps. Directions become strings.
func (o *Object) Map() map[string]any {
	out := make(map[string]any, o.Len())
	for _, k := range o.Keys() {
		out[k] = plain(o.values[k])
	}
	return out
}

func plain(v any) any {
	switch v := v.(type) {
	case *Object:
		return v.Map()
	case Direction:
		return string(v)
	default:
		return v
	}
}

// ToStruct converts the object into a protobuf Struct.
func (o *Object) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(o.Map())
}

// MarshalJSON writes the entries in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping the document's key order.
// Nested objects decode as *Object and strings as Direction.
func (o *Object) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("query: expected object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("query: expected key, got %v", tok)
		}
		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		switch v := tok.(type) {
		case json.Delim:
			if v != '{' {
				return nil, fmt.Errorf("query: unexpected %v under %q", v, key)
			}
			nested, err := decodeObject(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, nested)
		case string:
			obj.Set(key, Direction(v))
		case bool:
			obj.Set(key, v)
		default:
			return nil, fmt.Errorf("query: unexpected value %v under %q", v, key)
		}
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

var _ msgpack.CustomEncoder = (*Object)(nil)

// EncodeMsgpack writes the object as a msgpack map in insertion order.
func (o *Object) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(o.Len()); err != nil {
		return err
	}
	for _, k := range o.Keys() {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		var err error
		switch v := o.values[k].(type) {
		case *Object:
			err = v.EncodeMsgpack(enc)
		case Direction:
			err = enc.EncodeString(string(v))
		case bool:
			err = enc.EncodeBool(v)
		default:
			err = enc.Encode(v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
