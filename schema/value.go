package schema

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Decoded pickles are trees of these values: uint8, bool, uint32, uint64
// (usize), Bytes (fixed arrays and byte sequences), []any (other
// sequences), *Record and *Variant.

// Bytes is raw pickle data. It renders as a hex string in YAML and JSON
// and as a byte string in CBOR.
type Bytes []byte

func (b Bytes) String() string { return hex.EncodeToString(b) }

func (b Bytes) MarshalYAML() (any, error) { return b.String(), nil }

func (b Bytes) MarshalJSON() ([]byte, error) { return json.Marshal(b.String()) }

// Record is a decoded record. Fields keep their wire order.
type Record struct {
	Type   string
	Fields []NamedValue
}

type NamedValue struct {
	Name  string
	Value any
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (any, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalYAML renders the record as a mapping in field order.
func (r *Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range r.Fields {
		var value yaml.Node
		if err := value.Encode(f.Value); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name},
			&value,
		)
	}
	return node, nil
}

// MarshalJSON renders the record as an object in field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalCBOR renders the record as an array of its field values, the
// positional layout the pickle itself has.
func (r *Record) MarshalCBOR() ([]byte, error) {
	values := make([]any, len(r.Fields))
	for i, f := range r.Fields {
		values[i] = f.Value
	}
	return encMode.Marshal(values)
}

// Variant is a decoded union value.
type Variant struct {
	Union string
	Name  string
	Index int
	Value any
}

// MarshalYAML renders the variant as a single-entry mapping.
func (v *Variant) MarshalYAML() (any, error) {
	return map[string]any{v.Name: v.Value}, nil
}

// MarshalJSON renders the variant as a single-entry object.
func (v *Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{v.Name: v.Value})
}

// MarshalCBOR renders the variant as [discriminant, value].
func (v *Variant) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal([]any{v.Index, v.Value})
}

// encMode encodes with Core Deterministic Encoding, so the same pickle
// always gives the same CBOR bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("schema: CBOR encoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes a decoded value tree as CBOR.
func MarshalCBOR(v any) ([]byte, error) {
	return encMode.Marshal(v)
}
