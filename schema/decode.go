package schema

import (
	"github.com/oy3o/pickle"
)

// Decode reads one pickled value of the named type from r.
func (s *Schema) Decode(r *pickle.Reader, name string) (any, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return DecodeType(r, t)
}

// DecodeType reads one pickled value of type t from r.
func DecodeType(r *pickle.Reader, t *Type) (any, error) {
	v := decode(r, t)
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

func decode(r *pickle.Reader, t *Type) any {
	switch t.Kind {
	case KindU8:
		var v uint8
		r.ReadUint8(&v)
		return v
	case KindBool:
		var v bool
		r.ReadBool(&v)
		return v
	case KindU32:
		var v uint32
		r.ReadUint32(&v)
		return v
	case KindUsize:
		var v uint
		r.ReadUsize(&v)
		return uint64(v)
	case KindArray:
		return readBytes(r, t.Len)
	case KindSequence:
		if t.Elem.Kind == KindU8 {
			return readBytes(r, r.ReadLength())
		}
		items, _ := pickle.ReadSequence(r, func(r *pickle.Reader) any {
			return decode(r, t.Elem)
		})
		return items
	case KindRecord:
		return decodeRecord(r, t)
	case KindUnion:
		i := r.ReadVariant(len(t.Fields))
		if r.Err() != nil {
			return nil
		}
		variant := t.Fields[i]
		return &Variant{Union: t.Name, Name: variant.Name, Index: i, Value: decode(r, variant.Type)}
	}
	return nil
}

func decodeRecord(r *pickle.Reader, t *Type) *Record {
	rec := &Record{Type: t.Name, Fields: make([]NamedValue, 0, len(t.Fields))}
	for _, f := range t.Fields {
		v := decode(r, f.Type)
		if r.Err() != nil {
			for i, g := range rec.Fields {
				if t.Fields[i].Secret {
					pickle.Zero(g.Value.(Bytes))
				}
			}
			return nil
		}
		rec.Fields = append(rec.Fields, NamedValue{Name: f.Name, Value: v})
	}
	return rec
}

func readBytes(r *pickle.Reader, n int) Bytes {
	if r.Err() != nil {
		return nil
	}
	if n == 0 {
		return Bytes{}
	}
	return r.ReadBytes(n)
}
