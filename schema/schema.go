// Package schema describes pickle layouts as data instead of Go types.
//
// A schema is a YAML document naming records, unions and aliases:
//
//	types:
//	  Account:
//	    record:
//	      - {name: version, type: u32}
//	      - {name: identity_key, type: "[32]", secret: true}
//	      - {name: sessions, type: "[]Session"}
//	  Session:
//	    union:
//	      - {name: olm, type: OlmSession}
//	      - {name: none, type: Empty}
//	  Empty:
//	    record: []
//	  Key:
//	    type: "[32]"
//
// Type expressions are u8, bool, u32, usize, [N] (N raw bytes, also written
// [N]u8), []T (a bounded sequence of T) or the name of a definition. A
// schema decodes and encodes pickles with exactly the bytes the reflective
// codec produces for the equivalent Go types.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oy3o/pickle"
)

// ErrInvalidSchema is wrapped by every error Parse and Load report about
// the content of a schema.
var ErrInvalidSchema = errors.New("schema: invalid schema")

// Kind is the wire shape of a Type.
type Kind uint8

const (
	KindU8 Kind = iota
	KindBool
	KindU32
	KindUsize
	KindArray
	KindSequence
	KindRecord
	KindUnion
)

var kindNames = [...]string{
	KindU8:       "u8",
	KindBool:     "bool",
	KindU32:      "u32",
	KindUsize:    "usize",
	KindArray:    "array",
	KindSequence: "sequence",
	KindRecord:   "record",
	KindUnion:    "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Type is a resolved pickle layout.
type Type struct {
	Kind Kind
	// Name is set on records and unions.
	Name string
	// Len is the byte count of a fixed array.
	Len int
	// Elem is the element type of a sequence.
	Elem *Type
	// Fields are the fields of a record or the variants of a union, in
	// wire order.
	Fields []Field
}

// Field is a record field or a union variant.
type Field struct {
	Name string
	Type *Type
	// Secret marks key material. Only fixed arrays can be secret; decoded
	// secret bytes are wiped when the enclosing record fails to decode.
	Secret bool
}

// String returns the type expression of t.
func (t *Type) String() string {
	switch t.Kind {
	case KindArray:
		return "[" + strconv.Itoa(t.Len) + "]"
	case KindSequence:
		return "[]" + t.Elem.String()
	case KindRecord, KindUnion:
		return t.Name
	default:
		return t.Kind.String()
	}
}

var primitives = map[string]*Type{
	"u8":    {Kind: KindU8},
	"bool":  {Kind: KindBool},
	"u32":   {Kind: KindU32},
	"usize": {Kind: KindUsize},
}

// Schema is a set of named, fully resolved types.
// A Schema is immutable after Parse and safe for concurrent use.
type Schema struct {
	types map[string]*Type
}

type document struct {
	Types map[string]definition `yaml:"types"`
}

type definition struct {
	Record *[]fieldDefinition `yaml:"record"`
	Union  *[]fieldDefinition `yaml:"union"`
	Type   string             `yaml:"type"`
}

type fieldDefinition struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Secret bool   `yaml:"secret"`
}

// Load reads and parses the schema file at path.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse parses and validates a YAML schema. Unknown keys, unknown type
// names, malformed expressions, misplaced secret markers, duplicate names,
// unions without variants or with more than pickle.MaxVariants of them, and
// types that contain themselves without a sequence in between are errors.
func Parse(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	if len(doc.Types) == 0 {
		return nil, fmt.Errorf("%w: no types defined", ErrInvalidSchema)
	}

	r := &resolver{
		defs:  doc.Types,
		types: make(map[string]*Type, len(doc.Types)),
		state: make(map[string]int, len(doc.Types)),
	}
	for _, name := range sortedNames(doc.Types) {
		if _, err := r.named(name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
		}
	}

	s := &Schema{types: r.types}
	if err := checkFinite(s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return s, nil
}

// Lookup returns the type defined under name.
func (s *Schema) Lookup(name string) (*Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Names lists the defined names in sorted order.
func (s *Schema) Names() []string {
	return sortedNames(s.types)
}

func (s *Schema) lookup(name string) (*Type, error) {
	t, ok := s.types[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown type %q", name)
	}
	return t, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

const (
	unresolved = iota
	resolving
	resolved
)

// resolver turns definitions into Types. Records and unions are created
// before their fields are resolved, so they can refer to each other.
// Aliases are followed eagerly; an alias chain that loops is an error.
type resolver struct {
	defs  map[string]definition
	types map[string]*Type
	state map[string]int
}

func (r *resolver) named(name string) (*Type, error) {
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	if _, ok := primitives[name]; ok {
		return nil, fmt.Errorf("type %q shadows a primitive", name)
	}

	set := 0
	for _, present := range []bool{def.Record != nil, def.Union != nil, def.Type != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("type %q: exactly one of record, union or type must be given", name)
	}

	if def.Type != "" {
		if r.state[name] == resolving {
			return nil, fmt.Errorf("type %q: alias refers to itself", name)
		}
		r.state[name] = resolving
		t, err := r.expr(def.Type)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}
		r.state[name] = resolved
		r.types[name] = t
		return t, nil
	}

	t := &Type{Kind: KindRecord, Name: name}
	defs := def.Record
	if def.Union != nil {
		t.Kind = KindUnion
		defs = def.Union
	}
	r.types[name] = t
	r.state[name] = resolved

	if t.Kind == KindUnion && (len(*defs) == 0 || len(*defs) > pickle.MaxVariants) {
		return nil, fmt.Errorf("union %q has %d variants, it needs between 1 and %d", name, len(*defs), pickle.MaxVariants)
	}

	seen := make(map[string]bool, len(*defs))
	for _, fd := range *defs {
		if fd.Name == "" {
			return nil, fmt.Errorf("%s %q: a field has no name", t.Kind, name)
		}
		if seen[fd.Name] {
			return nil, fmt.Errorf("%s %q: %q is defined twice", t.Kind, name, fd.Name)
		}
		seen[fd.Name] = true

		ft, err := r.expr(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("%s %q: field %q: %w", t.Kind, name, fd.Name, err)
		}
		if fd.Secret {
			if t.Kind == KindUnion {
				return nil, fmt.Errorf("union %q: variant %q: variants cannot be secret", name, fd.Name)
			}
			if ft.Kind != KindArray {
				return nil, fmt.Errorf("record %q: field %q: type %s does not support being decoded as a secret value", name, fd.Name, ft)
			}
		}
		t.Fields = append(t.Fields, Field{Name: fd.Name, Type: ft, Secret: fd.Secret})
	}
	return t, nil
}

// expr resolves a type expression.
func (r *resolver) expr(expr string) (*Type, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty type expression")
	}
	if t, ok := primitives[expr]; ok {
		return t, nil
	}

	if rest, ok := strings.CutPrefix(expr, "[]"); ok {
		elem, err := r.expr(rest)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindSequence, Elem: elem}, nil
	}

	if rest, ok := strings.CutPrefix(expr, "["); ok {
		size, elem, ok := strings.Cut(rest, "]")
		if !ok {
			return nil, fmt.Errorf("malformed array type %q", expr)
		}
		if elem != "" && elem != "u8" {
			return nil, fmt.Errorf("array type %q: only byte arrays have a fixed-size layout", expr)
		}
		n, err := strconv.Atoi(size)
		if err != nil || n < 0 || n > math.MaxInt32 {
			return nil, fmt.Errorf("array type %q: invalid length", expr)
		}
		return &Type{Kind: KindArray, Len: n}, nil
	}

	return r.named(expr)
}

// checkFinite rejects records and unions that have no value with a finite
// encoding. A record needs one for every field, a union for at least one
// variant; sequences can always be empty. The set of finite types is grown
// to a fixed point, so shared subtypes are only ever settled once.
func checkFinite(s *Schema) error {
	finite := make(map[*Type]bool, len(s.types))
	settled := func(t *Type) bool {
		return (t.Kind != KindRecord && t.Kind != KindUnion) || finite[t]
	}

	for grown := true; grown; {
		grown = false
		for _, t := range s.types {
			if settled(t) {
				continue
			}
			ok := t.Kind == KindRecord
			for _, f := range t.Fields {
				if t.Kind == KindUnion && settled(f.Type) {
					ok = true
					break
				}
				if t.Kind == KindRecord && !settled(f.Type) {
					ok = false
					break
				}
			}
			if ok {
				finite[t] = true
				grown = true
			}
		}
	}

	for _, name := range s.Names() {
		if !settled(s.types[name]) {
			return fmt.Errorf("type %q contains itself without a sequence or another variant in between", name)
		}
	}
	return nil
}
