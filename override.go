package skein

import "reflect"

// Serializable lets a type bypass reflection entirely.
// Its payload is written under the Custom tag exactly as MarshalSkein
// returns it, and UnmarshalSkein receives those bytes on read.
//
// Implement UnmarshalSkein on the pointer receiver; the reader calls it on a
// freshly constructed instance.
type Serializable interface {
	MarshalSkein() ([]byte, error)
	UnmarshalSkein(data []byte) error
}

var serializableType = reflect.TypeFor[Serializable]()

// isSerializable reports whether values of t (or *t) implement Serializable.
func isSerializable(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return false
	}
	return t.Implements(serializableType) || reflect.PointerTo(t).Implements(serializableType)
}

// asSerializable returns v as a Serializable, taking its address when the
// methods are declared on the pointer receiver.
func asSerializable(v reflect.Value) (Serializable, bool) {
	if v.CanInterface() {
		if s, ok := v.Interface().(Serializable); ok {
			return s, true
		}
	}
	if !v.CanAddr() {
		c := reflect.New(v.Type())
		c.Elem().Set(v)
		v = c.Elem()
	}
	p := accessible(v).Addr()
	s, ok := p.Interface().(Serializable)
	return s, ok
}
