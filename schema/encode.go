package schema

import (
	"encoding/hex"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/oy3o/pickle"
)

// ErrValueMismatch is wrapped by Encode errors caused by a YAML value that
// does not have the shape of its type.
var ErrValueMismatch = errors.New("schema: value does not match type")

// Encode writes the pickle of a YAML value of the named type to w and
// returns the number of bytes written.
//
// Records are mappings with every field present, unions are single-entry
// mappings from variant name to value, fixed arrays and byte sequences are
// hex strings, other sequences are YAML sequences. This is the form Decode
// results marshal to.
func (s *Schema) Encode(w *pickle.Writer, name string, node *yaml.Node) (int, error) {
	t, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return EncodeType(w, t, node)
}

// EncodeType writes the pickle of a YAML value of type t to w.
func EncodeType(w *pickle.Writer, t *Type, node *yaml.Node) (int, error) {
	start := w.Count()
	if err := encode(w, t, node, "$"); err != nil {
		w.SetError(err)
	}
	return int(w.Count() - start), w.Err()
}

func mismatch(path string, t *Type, node *yaml.Node, detail string) error {
	return fmt.Errorf("%w: %s (line %d): expected %s: %s", ErrValueMismatch, path, node.Line, t, detail)
}

func encode(w *pickle.Writer, t *Type, node *yaml.Node, path string) error {
	for node.Kind == yaml.DocumentNode || node.Kind == yaml.AliasNode {
		if node.Kind == yaml.AliasNode {
			node = node.Alias
		} else if len(node.Content) == 1 {
			node = node.Content[0]
		} else {
			return mismatch(path, t, node, "empty document")
		}
	}

	switch t.Kind {
	case KindU8:
		var v uint8
		if err := node.Decode(&v); err != nil {
			return mismatch(path, t, node, err.Error())
		}
		w.WriteUint8(v)
	case KindBool:
		var v bool
		if err := node.Decode(&v); err != nil {
			return mismatch(path, t, node, err.Error())
		}
		w.WriteBool(v)
	case KindU32:
		var v uint32
		if err := node.Decode(&v); err != nil {
			return mismatch(path, t, node, err.Error())
		}
		w.WriteUint32(v)
	case KindUsize:
		var v uint64
		if err := node.Decode(&v); err != nil {
			return mismatch(path, t, node, err.Error())
		}
		w.WriteSize(v)
	case KindArray:
		b, err := hexValue(node)
		if err != nil {
			return mismatch(path, t, node, err.Error())
		}
		if len(b) != t.Len {
			return mismatch(path, t, node, fmt.Sprintf("got %d bytes", len(b)))
		}
		w.WriteBytes(b)
		pickle.Zero(b)
	case KindSequence:
		return encodeSequence(w, t, node, path)
	case KindRecord:
		return encodeRecord(w, t, node, path)
	case KindUnion:
		if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
			return mismatch(path, t, node, "a mapping with exactly one variant")
		}
		key := node.Content[0].Value
		for i, variant := range t.Fields {
			if variant.Name == key {
				w.WriteVariant(uint8(i))
				return encode(w, variant.Type, node.Content[1], path+"."+key)
			}
		}
		return mismatch(path, t, node, fmt.Sprintf("unknown variant %q", key))
	}
	return w.Err()
}

func encodeSequence(w *pickle.Writer, t *Type, node *yaml.Node, path string) error {
	if t.Elem.Kind == KindU8 {
		b, err := hexValue(node)
		if err != nil {
			return mismatch(path, t, node, err.Error())
		}
		w.WriteLength(len(b))
		w.WriteBytes(b)
		return w.Err()
	}

	if node.Kind != yaml.SequenceNode {
		return mismatch(path, t, node, "a sequence")
	}
	w.WriteLength(len(node.Content))
	for i, item := range node.Content {
		if w.Err() != nil {
			break
		}
		if err := encode(w, t.Elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return w.Err()
}

func encodeRecord(w *pickle.Writer, t *Type, node *yaml.Node, path string) error {
	if node.Kind != yaml.MappingNode {
		return mismatch(path, t, node, "a mapping")
	}
	values := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		values[node.Content[i].Value] = node.Content[i+1]
	}
	for key := range values {
		if !hasField(t, key) {
			return mismatch(path, t, node, fmt.Sprintf("unknown field %q", key))
		}
	}

	for _, f := range t.Fields {
		value, ok := values[f.Name]
		if !ok {
			return mismatch(path, t, node, fmt.Sprintf("missing field %q", f.Name))
		}
		if err := encode(w, f.Type, value, path+"."+f.Name); err != nil {
			return err
		}
	}
	return w.Err()
}

func hasField(t *Type, name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// hexValue reads a hex string scalar. A null value is an empty byte string.
func hexValue(node *yaml.Node) ([]byte, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, errors.New("a hex string")
	}
	if node.Tag == "!!null" {
		return nil, nil
	}
	return hex.DecodeString(node.Value)
}
