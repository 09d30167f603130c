package skein

import (
	"reflect"
)

// identity is the opaque token a reference-typed value is tracked under.
// Two values share an identity only when they are the same allocation seen
// through the same type; slices also carry their length.
type identity struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// identityOf returns the tracking token for v, or false for value-typed data.
func identityOf(v reflect.Value) (identity, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.Len() == 0 {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}, true
	}
	return identity{}, false
}

// refTracker assigns dense reference ids during one write pass.
type refTracker struct {
	ids map[identity]uint16
}

func newRefTracker() *refTracker {
	return &refTracker{ids: make(map[identity]uint16)}
}

// identify returns the id for key, assigning the next id on first visit.
func (t *refTracker) identify(key identity) (id uint16, isNew bool, err error) {
	if id, ok := t.ids[key]; ok {
		return id, false, nil
	}
	if len(t.ids) >= int(NoReference) {
		return 0, false, ErrTooManyReferences
	}
	id = uint16(len(t.ids))
	t.ids[key] = id
	return id, true, nil
}

func (t *refTracker) count() int { return len(t.ids) }

// refArena holds instances by reference id during one read pass.
type refArena struct {
	values []reflect.Value
}

func newRefArena() *refArena {
	return &refArena{}
}

// register records v under id. Registration happens before the instance is
// populated so that back-references inside its payload resolve to it.
func (a *refArena) register(id uint16, v reflect.Value) {
	if id == NoReference {
		return
	}
	for int(id) >= len(a.values) {
		a.values = append(a.values, reflect.Value{})
	}
	a.values[id] = v
}

// resolve returns the instance registered under id.
func (a *refArena) resolve(id uint16) (reflect.Value, bool) {
	if id == NoReference || int(id) >= len(a.values) {
		return reflect.Value{}, false
	}
	v := a.values[id]
	return v, v.IsValid()
}

func (a *refArena) count() int {
	n := 0
	for _, v := range a.values {
		if v.IsValid() {
			n++
		}
	}
	return n
}
