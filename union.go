package pickle

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// MaxVariants is the largest number of variants a union can declare;
// the discriminant is a single byte.
const MaxVariants = 256

// union is the registered variant list of an interface type.
type union struct {
	iface    reflect.Type
	variants []reflect.Type
	index    map[reflect.Type]int
}

var unions = xsync.NewMap[reflect.Type, *union]()

// RegisterUnion declares the interface type U as a tagged union whose
// variants are the dynamic types of the given values, in order. A variant's
// discriminant on the wire is its position in the list, so the list must
// never be reordered once pickles exist.
//
//	type Session interface{ isSession() }
//
//	func init() {
//		pickle.RegisterUnion[Session](OlmSession{}, &MegolmSession{})
//	}
//
// A stored value matches a variant only when its dynamic type is exactly
// the registered one (OlmSession and *OlmSession are different variants).
//
// RegisterUnion panics if U is not an interface type, if U is already
// registered, if there are no variants or more than MaxVariants, or if a
// variant is nil or listed twice. Like gob.Register it is meant to run
// during initialization.
func RegisterUnion[U any](variants ...U) {
	iface := reflect.TypeFor[U]()
	if iface.Kind() != reflect.Interface {
		panic(fmt.Sprintf("pickle: RegisterUnion: %s is not an interface type", iface))
	}
	if len(variants) == 0 {
		panic(fmt.Sprintf("pickle: RegisterUnion: union %s has no variants", iface))
	}
	if len(variants) > MaxVariants {
		panic(fmt.Sprintf("pickle: RegisterUnion: union %s has %d variants, only unions with up to %d variants are supported",
			iface, len(variants), MaxVariants))
	}

	u := &union{
		iface:    iface,
		variants: make([]reflect.Type, 0, len(variants)),
		index:    make(map[reflect.Type]int, len(variants)),
	}
	for i, v := range variants {
		vt := reflect.TypeOf(v)
		if vt == nil {
			panic(fmt.Sprintf("pickle: RegisterUnion: variant %d of %s is nil", i, iface))
		}
		if prev, dup := u.index[vt]; dup {
			panic(fmt.Sprintf("pickle: RegisterUnion: %s is listed twice in %s (variants %d and %d)", vt, iface, prev, i))
		}
		u.index[vt] = i
		u.variants = append(u.variants, vt)
	}

	if _, loaded := unions.LoadOrStore(iface, u); loaded {
		panic(fmt.Sprintf("pickle: RegisterUnion: %s is already registered", iface))
	}
}

// UnionVariants returns the registered variant types of U in discriminant
// order, or nil if U is not a registered union.
func UnionVariants[U any]() []reflect.Type {
	u, ok := unions.Load(reflect.TypeFor[U]())
	if !ok {
		return nil
	}
	return append([]reflect.Type(nil), u.variants...)
}

// union compiles the plan of a registered interface type.
func (c *compiler) union(p *plan) error {
	t := p.typ
	u, ok := unions.Load(t)
	if !ok {
		return &TypeError{Type: t, Reason: "interface type is not a registered union"}
	}

	payloads := make([]*plan, len(u.variants))
	for i, vt := range u.variants {
		vp, err := c.compile(vt)
		if err != nil {
			return err
		}
		payloads[i] = vp
	}

	p.encode = func(w *Writer, v reflect.Value) {
		if v.IsNil() {
			w.SetError(&TypeError{Type: t, Reason: "nil union value has no variant"})
			return
		}
		dyn := v.Elem()
		i, ok := u.index[dyn.Type()]
		if !ok {
			w.SetError(&TypeError{Type: dyn.Type(), Reason: "not a registered variant of " + t.String()})
			return
		}
		w.WriteVariant(uint8(i))
		payloads[i].encode(w, addressable(dyn))
	}
	p.decode = func(r *Reader, v reflect.Value) {
		i := r.ReadVariant(len(payloads))
		if r.err != nil {
			return
		}
		payload := reflect.New(u.variants[i]).Elem()
		payloads[i].decode(r, payload)
		if r.err == nil {
			v.Set(payload)
		}
	}
	p.wipe = func(v reflect.Value) {
		if v.IsNil() {
			return
		}
		dyn := v.Elem()
		if i, ok := u.index[dyn.Type()]; ok && payloads[i].wipe != nil {
			payloads[i].wipe(dyn)
		}
	}
	return nil
}
