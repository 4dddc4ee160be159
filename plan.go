package pickle

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	marshalerType   = reflect.TypeFor[Marshaler]()
	unmarshalerType = reflect.TypeFor[Unmarshaler]()
)

// plans caches the compiled layout of every type seen so far.
// Compiling walks the type with reflection once; later calls only load.
var plans = xsync.NewMap[reflect.Type, *plan]()

type (
	encodeFunc func(w *Writer, v reflect.Value)
	// decodeFunc decodes into v, which is always settable.
	decodeFunc func(r *Reader, v reflect.Value)
)

// plan is the compiled pickle layout of one Go type.
type plan struct {
	typ    reflect.Type
	encode encodeFunc
	decode decodeFunc
	// size is the wire length shared by every value of the type, or -1
	// when it depends on the value or some values cannot be encoded.
	size int
	// custom is set when either direction is handled by the type itself.
	custom bool
	// wipe zeroes the secret boxes reachable from a decoded value.
	// It is nil for primitives, byte arrays and custom codecs.
	wipe func(v reflect.Value)
}

// planFor returns the cached plan for t, compiling it on first use.
func planFor(t reflect.Type) (*plan, error) {
	if t == nil {
		return nil, &TypeError{Reason: "no type information (nil interface value)"}
	}
	if p, ok := plans.Load(t); ok {
		return p, nil
	}

	c := &compiler{building: make(map[reflect.Type]*plan)}
	p, err := c.compile(t)
	if err != nil {
		return nil, err
	}
	// Every plan built on the way is complete now.
	for typ, built := range c.building {
		plans.LoadOrStore(typ, built)
	}
	p, _ = plans.LoadOrStore(t, p)
	return p, nil
}

// compiler builds the plans of one type graph. Types referring back to
// themselves (through a slice, pointer or union) get the plan that is
// still being built; encoders always call through the *plan so the
// reference is resolved by the time it runs.
type compiler struct {
	building map[reflect.Type]*plan
}

func (c *compiler) compile(t reflect.Type) (*plan, error) {
	if p, ok := plans.Load(t); ok {
		return p, nil
	}
	if p, ok := c.building[t]; ok {
		return p, nil
	}

	p := &plan{typ: t, size: -1}
	c.building[t] = p

	var err error
	switch {
	case t.Kind() == reflect.Interface:
		err = c.union(p)
	case hasMarshaler(t) && hasUnmarshaler(t):
		customPlan(p)
	default:
		err = c.layout(p)
		if err == nil && (hasMarshaler(t) || hasUnmarshaler(t)) {
			customPlan(p)
		}
	}
	if err != nil {
		delete(c.building, t)
		return nil, err
	}
	return p, nil
}

// layout derives the plan of t from its kind.
func (c *compiler) layout(p *plan) error {
	t := p.typ
	switch t.Kind() {
	case reflect.Bool:
		p.size, p.encode, p.decode = 1, encodeBool, decodeBool
	case reflect.Uint8:
		p.size, p.encode, p.decode = 1, encodeUint8, decodeUint8
	case reflect.Uint32:
		p.size, p.encode, p.decode = 4, encodeUint32, decodeUint32
	// Size values are always 4 bytes, but not every int or uint fits.
	case reflect.Uint:
		p.encode, p.decode = encodeUint, decodeUint
	case reflect.Int:
		p.encode, p.decode = encodeInt, decodeInt
	case reflect.Array:
		if !isByteArray(t) {
			return &TypeError{Type: t, Reason: "only byte arrays have a fixed-size layout"}
		}
		p.size, p.encode, p.decode = t.Len(), encodeByteArray, decodeByteArray
	case reflect.Pointer:
		if isByteArray(t.Elem()) {
			boxedPlan(p)
			return nil
		}
		return c.pointer(p)
	case reflect.Slice:
		return c.sequence(p)
	case reflect.Struct:
		return c.record(p)
	default:
		return &TypeError{Type: t, Reason: "kind " + t.Kind().String() + " has no pickle layout"}
	}
	return nil
}

func isByteArray(t reflect.Type) bool {
	return t.Kind() == reflect.Array && t.Elem().Kind() == reflect.Uint8
}

func hasMarshaler(t reflect.Type) bool {
	return t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType)
}

func hasUnmarshaler(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(unmarshalerType) ||
		(t.Kind() == reflect.Pointer && t.Implements(unmarshalerType))
}

// customPlan hands the directions the type implements itself over to
// MarshalPickle and UnmarshalPickle.
func customPlan(p *plan) {
	t := p.typ
	p.custom = true
	p.size = -1
	p.wipe = nil

	if hasMarshaler(t) {
		byValue := t.Implements(marshalerType)
		p.encode = func(w *Writer, v reflect.Value) {
			if t.Kind() == reflect.Pointer && v.IsNil() {
				w.SetError(&TypeError{Type: t, Reason: "nil pointer has no pickle encoding"})
				return
			}
			if !byValue {
				v = addressable(v).Addr()
			}
			if _, err := v.Interface().(Marshaler).MarshalPickle(w); err != nil {
				w.SetError(err)
			}
		}
	}

	if hasUnmarshaler(t) {
		if reflect.PointerTo(t).Implements(unmarshalerType) {
			p.decode = func(r *Reader, v reflect.Value) {
				if err := v.Addr().Interface().(Unmarshaler).UnmarshalPickle(r); err != nil {
					r.SetError(err)
				}
			}
		} else {
			p.decode = func(r *Reader, v reflect.Value) {
				box := reflect.New(t.Elem())
				if err := box.Interface().(Unmarshaler).UnmarshalPickle(r); err != nil {
					r.SetError(err)
				}
				if r.err == nil {
					v.Set(box)
				}
			}
		}
	}
}

// addressable returns v itself when it can be addressed, otherwise a copy
// that can.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// --- Primitives ---

func encodeBool(w *Writer, v reflect.Value) { w.WriteBool(v.Bool()) }

func decodeBool(r *Reader, v reflect.Value) {
	var b bool
	r.ReadBool(&b)
	if r.err == nil {
		v.SetBool(b)
	}
}

func encodeUint8(w *Writer, v reflect.Value) { w.WriteUint8(uint8(v.Uint())) }

func decodeUint8(r *Reader, v reflect.Value) {
	var b uint8
	r.ReadUint8(&b)
	if r.err == nil {
		v.SetUint(uint64(b))
	}
}

func encodeUint32(w *Writer, v reflect.Value) { w.WriteUint32(uint32(v.Uint())) }

func decodeUint32(r *Reader, v reflect.Value) {
	var n uint32
	r.ReadUint32(&n)
	if r.err == nil {
		v.SetUint(uint64(n))
	}
}

func encodeUint(w *Writer, v reflect.Value) { w.WriteSize(v.Uint()) }

func decodeUint(r *Reader, v reflect.Value) {
	var n uint
	r.ReadUsize(&n)
	if r.err == nil {
		v.SetUint(uint64(n))
	}
}

func encodeInt(w *Writer, v reflect.Value) {
	n, ok := toSize(v.Int())
	if !ok {
		// Reported as the two's complement bit pattern.
		w.Fail(ErrOutsideU32Range, uint64(v.Int()))
		return
	}
	w.WriteSize(n)
}

func decodeInt(r *Reader, v reflect.Value) {
	var n int
	r.ReadSize(&n)
	if r.err == nil {
		v.SetInt(int64(n))
	}
}

// --- Fixed-size byte arrays ---

func encodeByteArray(w *Writer, v reflect.Value) {
	if v.CanAddr() {
		w.WriteBytes(v.Bytes())
		return
	}
	buf := make([]byte, v.Len())
	for i := range buf {
		buf[i] = byte(v.Index(i).Uint())
	}
	w.WriteBytes(buf)
}

func decodeByteArray(r *Reader, v reflect.Value) {
	buf := v.Bytes()
	r.ReadArrayTo(buf)
	if r.err != nil {
		Zero(buf)
	}
}

// boxedPlan handles *[N]byte: same wire bytes as [N]byte, but decoding
// allocates the array once and reads straight into it.
func boxedPlan(p *plan) {
	t := p.typ
	n := t.Elem().Len()
	p.size = n

	p.encode = func(w *Writer, v reflect.Value) {
		if v.IsNil() {
			w.WriteZeros(int64(n))
			return
		}
		w.WriteBytes(v.Elem().Bytes())
	}
	p.decode = func(r *Reader, v reflect.Value) {
		if !r.ensure(n) {
			return
		}
		box := reflect.New(t.Elem())
		buf := box.Elem().Bytes()
		r.ReadArrayTo(buf)
		if r.err != nil {
			Zero(buf)
			return
		}
		v.Set(box)
	}
}

// wipeBox zeroes the array behind a boxed secret field.
func wipeBox(v reflect.Value) {
	if !v.IsNil() {
		Zero(v.Elem().Bytes())
	}
}

// pointer makes pointers to anything but byte arrays transparent.
func (c *compiler) pointer(p *plan) error {
	t := p.typ
	elem, err := c.compile(t.Elem())
	if err != nil {
		return err
	}

	p.encode = func(w *Writer, v reflect.Value) {
		if v.IsNil() {
			w.SetError(&TypeError{Type: t, Reason: "nil pointer has no pickle encoding"})
			return
		}
		elem.encode(w, v.Elem())
	}
	p.decode = func(r *Reader, v reflect.Value) {
		box := reflect.New(t.Elem())
		elem.decode(r, box.Elem())
		if r.err == nil {
			v.Set(box)
		}
	}
	p.wipe = func(v reflect.Value) {
		if !v.IsNil() && elem.wipe != nil {
			elem.wipe(v.Elem())
		}
	}
	return nil
}

// --- Bounded sequences ---

func (c *compiler) sequence(p *plan) error {
	t := p.typ
	elem, err := c.compile(t.Elem())
	if err != nil {
		return err
	}

	if t.Elem().Kind() == reflect.Uint8 && !elem.custom {
		p.encode = encodeByteSlice
		p.decode = decodeByteSlice
		return nil
	}

	p.encode = func(w *Writer, v reflect.Value) {
		n := v.Len()
		w.WriteLength(n)
		for i := 0; i < n && w.err == nil; i++ {
			elem.encode(w, v.Index(i))
		}
	}
	p.decode = func(r *Reader, v reflect.Value) {
		n := r.ReadLength()
		if r.err != nil {
			return
		}
		if n == 0 {
			v.SetZero()
			return
		}
		s := reflect.MakeSlice(t, n, n)
		for i := range n {
			elem.decode(r, s.Index(i))
			if r.err != nil {
				// The failed element cleaned up after itself.
				p.wipe(s.Slice(0, i))
				return
			}
		}
		v.Set(s)
	}
	p.wipe = func(v reflect.Value) {
		if elem.wipe == nil {
			return
		}
		for i := range v.Len() {
			elem.wipe(v.Index(i))
		}
	}
	return nil
}

func encodeByteSlice(w *Writer, v reflect.Value) {
	w.WriteLength(v.Len())
	w.WriteBytes(v.Bytes())
}

func decodeByteSlice(r *Reader, v reflect.Value) {
	n := r.ReadLength()
	if !r.ensure(n) {
		return
	}
	if n == 0 {
		v.SetZero()
		return
	}
	s := reflect.MakeSlice(v.Type(), n, n)
	r.ReadArrayTo(s.Bytes())
	if r.err == nil {
		v.Set(s)
	}
}

// --- Records ---

type field struct {
	index  int
	name   string
	secret bool
	plan   *plan
}

// record lays out the exported fields of a struct in declaration order.
// The order is the wire format.
func (c *compiler) record(p *plan) error {
	t := p.typ
	var fields []field

	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get("pickle")
		switch tag {
		case "-":
			continue
		case "", "secret":
		default:
			return &TypeError{Type: t, Reason: fmt.Sprintf("field %s: unknown pickle tag %q", sf.Name, tag)}
		}
		if !sf.IsExported() {
			return &TypeError{Type: t, Reason: fmt.Sprintf("unexported field %s must be tagged `pickle:\"-\"`", sf.Name)}
		}
		secret := tag == "secret"
		if secret {
			if err := checkSecret(t, sf); err != nil {
				return err
			}
		}

		fp, err := c.compile(sf.Type)
		if err != nil {
			return err
		}
		fields = append(fields, field{index: i, name: sf.Name, secret: secret, plan: fp})
	}

	p.size = 0
	for _, f := range fields {
		if f.plan.size < 0 {
			p.size = -1
			break
		}
		p.size += f.plan.size
	}

	p.encode = func(w *Writer, v reflect.Value) {
		for _, f := range fields {
			f.plan.encode(w, v.Field(f.index))
			if w.err != nil {
				return
			}
		}
	}
	p.decode = func(r *Reader, v reflect.Value) {
		for i, f := range fields {
			f.plan.decode(r, v.Field(f.index))
			if r.err != nil {
				// No partially decoded record survives a failure.
				wipeFields(fields[:i], v)
				v.SetZero()
				return
			}
		}
	}
	p.wipe = func(v reflect.Value) { wipeFields(fields, v) }
	return nil
}

// wipeFields zeroes the secret boxes held by the given fields of v,
// including those of nested records, sequences and unions.
func wipeFields(fields []field, v reflect.Value) {
	for _, f := range fields {
		switch {
		case f.secret:
			wipeBox(v.Field(f.index))
		case f.plan.wipe != nil:
			f.plan.wipe(v.Field(f.index))
		}
	}
}

// checkSecret accepts the secret marker on boxed byte arrays only.
func checkSecret(t reflect.Type, sf reflect.StructField) error {
	ft := sf.Type
	switch {
	case ft.Kind() == reflect.Pointer && isByteArray(ft.Elem()):
		return nil
	case isByteArray(ft):
		return &TypeError{Type: t, Reason: fmt.Sprintf("field %s: arrays need to be boxed (*%s) to avoid unintended copies of the secret", sf.Name, ft)}
	default:
		return &TypeError{Type: t, Reason: fmt.Sprintf("field %s: type %s does not support being decoded as a secret value", sf.Name, ft)}
	}
}
