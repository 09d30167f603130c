package skein

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"slices"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
)

// writer walks one object graph into frames. It is not safe for concurrent use.
type writer struct {
	ctx       context.Context
	opts      *Options
	settings  Settings
	buf       *bytebufferpool.ByteBuffer
	refs      *refTracker
	types     *descriptorTable
	frames    int
	truncated int
}

func newWriter(ctx context.Context, o *Options) *writer {
	return &writer{
		ctx:      ctx,
		opts:     o,
		settings: o.settings(),
		buf:      bytebufferpool.Get(),
		refs:     newRefTracker(),
		types:    newDescriptorTable(),
	}
}

func (w *writer) release() {
	bytebufferpool.Put(w.buf)
	w.buf = nil
}

// writeFrame emits the frame for v, whose static type at this position is declared.
func (w *writer) writeFrame(v reflect.Value, declared reflect.Type, path string, depth int) error {
	if declared == nil {
		return w.writeNull(TagObject, path)
	}

	concrete := declared
	mapped := false
	if declared.Kind() == reflect.Interface {
		for v.IsValid() && v.Kind() == reflect.Interface {
			if v.IsNil() {
				return w.writeNull(TagObject, path)
			}
			v = v.Elem()
		}
		if !v.IsValid() {
			return w.writeNull(TagObject, path)
		}
		concrete = v.Type()
		mapped = true
	}

	tag, plugin, err := resolveTag(concrete, w.opts.Registry, path)
	if err != nil {
		return err
	}
	if !mapped {
		mapped = isAnonymousStruct(concrete) ||
			(w.opts.EmbedTypes && (tag == TagObject || tag == TagStruct))
	}

	if depth > w.opts.MaxDepth {
		if w.opts.DepthPolicy == DepthFail {
			return errors.Wrapf(ErrDepthExceeded, "depth %d at %s", depth, displayPath(path))
		}
		w.truncated++
		emitDepthTruncated(w.ctx, path, depth)
		return w.writeNull(tag, path)
	}
	if isNilValue(v) {
		return w.writeNull(tag, path)
	}

	flags := tag
	var typeID uint16
	if mapped {
		flags |= FlagTypeMapped
		w.opts.Registry.Register(concrete)
		if typeID, err = w.types.addKnownType(concrete); err != nil {
			return err
		}
	}

	w.buf.B = append(w.buf.B, byte(flags))
	lenPos := len(w.buf.B)
	w.buf.B = appendLength(w.buf.B, w.settings, 0)
	refPos := len(w.buf.B)
	w.buf.B = binary.LittleEndian.AppendUint16(w.buf.B, NoReference)
	if mapped {
		w.buf.B = binary.LittleEndian.AppendUint16(w.buf.B, typeID)
	}
	payloadStart := len(w.buf.B)
	w.frames++

	ref := NoReference
	if key, ok := identityOf(v); ok {
		id, isNew, err := w.refs.identify(key)
		if err != nil {
			return errors.Wrapf(err, "at %s", displayPath(path))
		}
		ref = id
		binary.LittleEndian.PutUint16(w.buf.B[refPos:], id)
		if !isNew {
			w.trace(path, flags, ref, 0)
			return nil
		}
	}

	if err := w.writePayload(v, concrete, tag, plugin, path, depth); err != nil {
		return err
	}

	n := len(w.buf.B) - payloadStart
	if uint64(n) > w.settings.lengthLimit() {
		return &SizeLimitError{Path: path, Size: n, Limit: w.settings.lengthLimit()}
	}
	if w.settings.Has(SettingCompact) {
		binary.LittleEndian.PutUint16(w.buf.B[lenPos:], uint16(n))
	} else {
		binary.LittleEndian.PutUint32(w.buf.B[lenPos:], uint32(n))
	}
	w.trace(path, flags, ref, n)
	return nil
}

// writeNull emits a zero-length frame with the NullValue flag.
func (w *writer) writeNull(tag Tag, path string) error {
	flags := tag.Base() | FlagNullValue
	w.buf.B = append(w.buf.B, byte(flags))
	w.buf.B = appendLength(w.buf.B, w.settings, 0)
	w.buf.B = binary.LittleEndian.AppendUint16(w.buf.B, NoReference)
	w.frames++
	w.trace(path, flags, NoReference, 0)
	return nil
}

func (w *writer) writePayload(v reflect.Value, t reflect.Type, tag Tag, plugin Plugin, path string, depth int) error {
	if t.Kind() == reflect.Pointer && !isCollection(t) {
		v, t = v.Elem(), t.Elem()
	}

	if plugin != nil {
		hint := plugin.SizeHint()
		if hint > 0 {
			w.buf.B = slices.Grow(w.buf.B, hint)
		}
		data, err := plugin.Marshal(accessible(v).Interface())
		if err != nil {
			return errors.Wrapf(err, "plugin for %s at %s", t, displayPath(path))
		}
		if hint > 0 && len(data) != hint {
			return newFormatError(path, len(w.buf.B), "plugin for %s wrote %d bytes, size hint is %d", t, len(data), hint)
		}
		w.buf.B = append(w.buf.B, data...)
		return nil
	}

	switch tag.Base() {
	case TagCustom:
		s, ok := asSerializable(v)
		if !ok {
			return newUnsupportedTypeError(t, path)
		}
		data, err := s.MarshalSkein()
		if err != nil {
			return errors.Wrapf(err, "marshal %s at %s", t, displayPath(path))
		}
		w.buf.B = append(w.buf.B, data...)
		return nil
	case TagObject, TagStruct, TagTuple, TagKeyValuePair:
		return w.writeFields(v, t, path, depth)
	case TagArray:
		return w.writeArray(v, t, path, depth)
	case TagDictionary:
		return w.writeMap(v, t, path, depth)
	case TagEnumerable:
		return w.writeCollection(v, path, depth)
	}

	b, err := appendScalar(w.buf.B, tag, accessible(v))
	if err != nil {
		return errors.Wrapf(err, "at %s", displayPath(path))
	}
	w.buf.B = b
	return nil
}

func (w *writer) writeFields(v reflect.Value, t reflect.Type, path string, depth int) error {
	if !v.CanAddr() {
		c := reflect.New(t).Elem()
		c.Set(v)
		v = c
	}
	plan := planFor(t)
	for i := range plan.fields {
		fp := &plan.fields[i]
		fpath := childPath(path, fp.meta.Name)
		if !fp.included(fpath, w.opts) {
			continue
		}
		f := accessible(v.FieldByIndex(fp.meta.Index))
		if err := w.writeFrame(f, fp.meta.ReflectType, fpath, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeArray emits rank, extents and then every element in row-major order.
// Nested fixed-size arrays add dimensions; slices of slices stay jagged.
func (w *writer) writeArray(v reflect.Value, t reflect.Type, path string, depth int) error {
	extents := []int{v.Len()}
	leaf := t.Elem()
	for leaf.Kind() == reflect.Array {
		extents = append(extents, leaf.Len())
		leaf = leaf.Elem()
	}
	if len(extents) > 0xFF {
		return newUnsupportedTypeError(t, path)
	}
	w.buf.B = append(w.buf.B, byte(len(extents)))
	for _, e := range extents {
		if uint64(e) > 0xFFFFFFFF {
			return &SizeLimitError{Path: path, Size: e, Limit: 0xFFFFFFFF}
		}
		w.buf.B = binary.LittleEndian.AppendUint32(w.buf.B, uint32(e))
	}
	return w.writeElems(v, leaf, len(extents), 0, path, depth)
}

func (w *writer) writeElems(v reflect.Value, leaf reflect.Type, rank, level int, path string, depth int) error {
	for i := 0; i < v.Len(); i++ {
		p := indexPath(path, i)
		e := v.Index(i)
		if level+1 < rank {
			if err := w.writeElems(e, leaf, rank, level+1, p, depth); err != nil {
				return err
			}
			continue
		}
		if err := w.writeFrame(accessible(e), leaf, p, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeMap emits alternating key and value frames in key order.
func (w *writer) writeMap(v reflect.Value, t reflect.Type, path string, depth int) error {
	keys := v.MapKeys()
	slices.SortFunc(keys, compareKeys)
	for i, k := range keys {
		p := indexPath(path, i)
		if err := w.writeFrame(k, t.Key(), p, depth+1); err != nil {
			return err
		}
		if err := w.writeFrame(v.MapIndex(k), t.Elem(), p, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeCollection emits elements in enumeration order, reversed for LIFO
// collections.
func (w *writer) writeCollection(v reflect.Value, path string, depth int) error {
	c, ok := accessible(v).Interface().(Collection)
	if !ok {
		return newUnsupportedTypeError(v.Type(), path)
	}
	elem := c.ElemType()
	items := make([]any, 0, c.Len())
	c.Range(func(x any) bool {
		items = append(items, x)
		return true
	})
	if isLIFO(v.Type()) {
		slices.Reverse(items)
	}
	for i, it := range items {
		ev := reflect.New(elem).Elem()
		if it != nil {
			ev.Set(reflect.ValueOf(it))
		}
		if err := w.writeFrame(ev, elem, indexPath(path, i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) trace(path string, tag Tag, ref uint16, n int) {
	if !w.opts.Diagnostic {
		return
	}
	w.opts.Logger.Debug("frame written",
		zap.String("path", displayPath(path)),
		zap.Stringer("tag", tag),
		zap.Uint16("ref", ref),
		zap.Int("length", n),
	)
}

// compareKeys orders map keys so that output is deterministic.
func compareKeys(a, b reflect.Value) int {
	for a.Kind() == reflect.Interface && !a.IsNil() {
		a = a.Elem()
	}
	for b.Kind() == reflect.Interface && !b.IsNil() {
		b = b.Elem()
	}
	if a.Kind() != b.Kind() {
		return cmp.Compare(a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Bool:
		switch {
		case a.Bool() == b.Bool():
			return 0
		case a.Bool():
			return 1
		}
		return -1
	}
	return cmp.Compare(fmt.Sprint(accessible(a)), fmt.Sprint(accessible(b)))
}

// accessible unlocks unexported fields reached through an addressable value.
func accessible(v reflect.Value) reflect.Value {
	if !v.IsValid() || v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func isAnonymousStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.Name() == ""
}
