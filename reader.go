package skein

import (
	"context"
	"encoding/binary"
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// reader rebuilds an object graph from frames. It is not safe for concurrent use.
type reader struct {
	ctx       context.Context
	opts      *Options
	settings  Settings
	data      []byte
	pos       int
	refs      *refArena
	types     *descriptorTable
	frames    int
	truncated int
}

// header is a decoded frame header. The reader's position sits at the
// payload once it is returned.
type header struct {
	tag    Tag
	offset int
	length int
	ref    uint16
	typeID uint16
}

func newReader(ctx context.Context, o *Options, s Settings, data []byte) *reader {
	return &reader{
		ctx:      ctx,
		opts:     o,
		settings: s,
		data:     data,
		refs:     newRefArena(),
		types:    newDescriptorTable(),
	}
}

// readHeader decodes the next data frame header, loading any type
// descriptor table frames that precede it.
func (r *reader) readHeader(end int, path string) (header, error) {
	for {
		if r.pos >= end {
			return header{}, newFormatError(path, r.pos, "unexpected end of payload")
		}
		h := header{tag: Tag(r.data[r.pos]), offset: r.pos}
		if !h.tag.Valid() {
			return header{}, newFormatError(path, r.pos, "unknown tag 0x%02x", byte(h.tag))
		}
		if end-r.pos < r.settings.headerSize(h.tag) {
			return header{}, newFormatError(path, r.pos, "truncated %s frame header", h.tag.Base())
		}
		p := r.pos + 1
		if r.settings.Has(SettingCompact) {
			h.length = int(binary.LittleEndian.Uint16(r.data[p:]))
			p += 2
		} else {
			h.length = int(binary.LittleEndian.Uint32(r.data[p:]))
			p += 4
		}

		if h.tag.Base() == TagTypeDescriptorMap {
			if h.length > end-p {
				return header{}, newFormatError(path, h.offset, "type descriptor table overruns payload")
			}
			table, err := parseDescriptors(r.data[p:p+h.length], p)
			if err != nil {
				return header{}, err
			}
			for _, id := range table.order {
				r.types.set(id, table.names[id])
			}
			r.pos = p + h.length
			continue
		}

		h.ref = binary.LittleEndian.Uint16(r.data[p:])
		p += 2
		if h.tag.IsTypeMapped() {
			h.typeID = binary.LittleEndian.Uint16(r.data[p:])
			p += 2
		}
		if h.length > end-p {
			return header{}, newFormatError(path, h.offset, "%s frame length %d overruns enclosing payload", h.tag.Base(), h.length)
		}
		r.pos = p
		r.frames++
		return h, nil
	}
}

// readFrame decodes the next frame into a value assignable to declared.
func (r *reader) readFrame(declared reflect.Type, path string, depth, end int) (reflect.Value, error) {
	if declared == nil {
		declared = anyType
	}
	h, err := r.readHeader(end, path)
	if err != nil {
		return reflect.Value{}, err
	}
	payloadEnd := r.pos + h.length

	if h.tag.IsNull() {
		if h.length != 0 {
			return reflect.Value{}, newFormatError(path, h.offset, "null frame carries %d payload bytes", h.length)
		}
		r.trace(path, h)
		return reflect.Zero(declared), nil
	}

	target, err := r.targetType(h, declared, path)
	if err != nil {
		return reflect.Value{}, err
	}

	if depth > r.opts.MaxDepth {
		if r.opts.DepthPolicy == DepthFail {
			return reflect.Value{}, errors.Wrapf(ErrDepthExceeded, "depth %d at %s", depth, displayPath(path))
		}
		r.truncated++
		emitDepthTruncated(r.ctx, path, depth)
		r.pos = payloadEnd
		return reflect.Zero(declared), nil
	}

	if existing, ok := r.refs.resolve(h.ref); ok {
		if h.length != 0 {
			return reflect.Value{}, newFormatError(path, h.offset, "back-reference %d carries payload", h.ref)
		}
		if !existing.Type().AssignableTo(declared) {
			return reflect.Value{}, newFormatError(path, h.offset, "reference %d holds %s, want %s", h.ref, existing.Type(), declared)
		}
		r.trace(path, h)
		return existing, nil
	}

	v, err := r.decodeFrame(h, target, path, depth, payloadEnd)
	if err != nil {
		return reflect.Value{}, err
	}
	if r.pos != payloadEnd {
		return reflect.Value{}, newFormatError(path, r.pos, "%s payload ends at %d, frame declares %d", h.tag.Base(), r.pos, payloadEnd)
	}
	r.trace(path, h)
	return v, nil
}

// targetType selects the type to construct for a frame.
func (r *reader) targetType(h header, declared reflect.Type, path string) (reflect.Type, error) {
	if h.tag.IsTypeMapped() {
		name, ok := r.types.resolve(h.typeID)
		if !ok {
			return nil, newFormatError(path, h.offset, "type descriptor %d not in table", h.typeID)
		}
		rt, ok := r.opts.Registry.Lookup(name)
		if !ok {
			if declared.Kind() != reflect.Interface {
				return declared, nil
			}
			return nil, errors.Wrapf(ErrUnknownType, "%s at %s", name, displayPath(path))
		}
		rt = r.mapType(rt)
		if declared.Kind() != reflect.Interface {
			if rt.AssignableTo(declared) {
				return rt, nil
			}
			return declared, nil
		}
		if !rt.AssignableTo(declared) {
			return nil, newFormatError(path, h.offset, "%s is not assignable to %s", rt, declared)
		}
		return rt, nil
	}
	if declared.Kind() == reflect.Interface {
		nt, ok := naturalType(h.tag)
		if !ok || !nt.AssignableTo(declared) {
			return nil, newFormatError(path, h.offset, "%s frame without type descriptor cannot fill %s", h.tag.Base(), declared)
		}
		return nt, nil
	}
	return declared, nil
}

// mapType applies the TypeMap option. A mapping for T also redirects *T.
func (r *reader) mapType(t reflect.Type) reflect.Type {
	if to, ok := r.opts.TypeMap[t]; ok {
		return to
	}
	if t.Kind() == reflect.Pointer {
		if to, ok := r.opts.TypeMap[t.Elem()]; ok {
			if to.Kind() == reflect.Pointer {
				return to
			}
			return reflect.PointerTo(to)
		}
	}
	return t
}

func (r *reader) decodeFrame(h header, t reflect.Type, path string, depth, end int) (reflect.Value, error) {
	if isCollection(t) {
		return r.readCollection(h, t, path, depth, end)
	}
	if t.Kind() == reflect.Pointer {
		p, err := r.construct(t)
		if err != nil {
			return reflect.Value{}, err
		}
		r.refs.register(h.ref, p)
		if err := r.fill(p.Elem(), h, path, depth, end, true); err != nil {
			return reflect.Value{}, err
		}
		return p, nil
	}
	dst, err := r.construct(t)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := r.fill(dst, h, path, depth, end, false); err != nil {
		return reflect.Value{}, err
	}
	return dst, nil
}

// construct returns an empty instance of t: a non-nil pointer for pointer
// types, an addressable value otherwise.
func (r *reader) construct(t reflect.Type) (reflect.Value, error) {
	if fn, ok := r.opts.Factories[t]; ok {
		out := reflect.ValueOf(fn())
		switch {
		case !out.IsValid():
		case out.Type() == t && t.Kind() == reflect.Pointer && !out.IsNil():
			return out, nil
		case out.Type() == t && t.Kind() != reflect.Pointer:
			c := reflect.New(t).Elem()
			c.Set(out)
			return c, nil
		case out.Type() == reflect.PointerTo(t) && !out.IsNil():
			return out.Elem(), nil
		default:
			return reflect.Value{}, errors.Wrapf(ErrInvalidConfig, "factory for %s returned %s", t, out.Type())
		}
	}
	if t.Kind() == reflect.Pointer {
		if fn, ok := r.opts.Factories[t.Elem()]; ok {
			if out := reflect.ValueOf(fn()); out.IsValid() && out.Type() == t.Elem() {
				p := reflect.New(t.Elem())
				p.Elem().Set(out)
				return p, nil
			}
		}
		return reflect.New(t.Elem()), nil
	}
	return reflect.New(t).Elem(), nil
}

// fill decodes the frame payload into dst, which must be settable.
// registered reports whether an enclosing pointer already holds the frame's
// reference id.
func (r *reader) fill(dst reflect.Value, h header, path string, depth, end int, registered bool) error {
	t := dst.Type()
	tag := h.tag.Base()

	if p, ok := r.opts.Registry.Plugin(t); ok {
		if p.Tag() != tag {
			return r.mismatch(h, t, path)
		}
		payload := r.take(end)
		if hint := p.SizeHint(); hint > 0 && len(payload) != hint {
			return newFormatError(path, h.offset, "plugin payload is %d bytes, size hint is %d", len(payload), hint)
		}
		out, err := p.Unmarshal(payload)
		if err != nil {
			return newFormatError(path, h.offset, "plugin: %v", err)
		}
		ov := reflect.ValueOf(out)
		switch {
		case !ov.IsValid():
		case ov.Type().AssignableTo(t):
			dst.Set(ov)
		case ov.Type().ConvertibleTo(t):
			dst.Set(ov.Convert(t))
		default:
			return newFormatError(path, h.offset, "plugin returned %s for %s", ov.Type(), t)
		}
		return nil
	}

	switch tag {
	case TagCustom:
		if !isSerializable(t) {
			return r.mismatch(h, t, path)
		}
		s := dst.Addr().Interface().(Serializable)
		if err := s.UnmarshalSkein(r.take(end)); err != nil {
			return newFormatError(path, h.offset, "unmarshal %s: %v", t, err)
		}
		return nil
	case TagObject, TagStruct, TagTuple, TagKeyValuePair:
		if t.Kind() != reflect.Struct {
			return r.mismatch(h, t, path)
		}
		return r.fillFields(dst, t, path, depth, end)
	case TagArray:
		return r.fillArray(dst, h, path, depth, end, registered)
	case TagDictionary:
		return r.fillMap(dst, h, path, depth, end, registered)
	case TagEnumerable:
		if t.Kind() != reflect.Slice {
			return r.mismatch(h, t, path)
		}
		return r.fillSequence(dst, h, path, depth, end, registered)
	}

	if err := decodeScalar(dst, h.tag, r.take(end)); err != nil {
		return newFormatError(path, h.offset, "%v", err)
	}
	return nil
}

// fillFields reads field frames positionally. Trailing frames the type no
// longer declares are skipped; fields the stream lacks keep their zero value.
// A field inserted mid-order is not detected.
func (r *reader) fillFields(dst reflect.Value, t reflect.Type, path string, depth, end int) error {
	plan := planFor(t)
	for i := range plan.fields {
		fp := &plan.fields[i]
		fpath := childPath(path, fp.meta.Name)
		if !fp.included(fpath, r.opts) {
			continue
		}
		if r.pos >= end {
			break
		}
		v, err := r.readFrame(fp.meta.ReflectType, fpath, depth+1, end)
		if err != nil {
			return err
		}
		accessible(dst.FieldByIndex(fp.meta.Index)).Set(v)
	}
	for r.pos < end {
		if err := r.skipFrame(end, path); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) fillArray(dst reflect.Value, h header, path string, depth, end int, registered bool) error {
	t := dst.Type()
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return r.mismatch(h, t, path)
	}
	if end-r.pos < 1 {
		return newFormatError(path, r.pos, "array payload lacks rank")
	}
	rank := int(r.data[r.pos])
	r.pos++
	if rank == 0 || end-r.pos < 4*rank {
		return newFormatError(path, r.pos, "array rank %d with truncated extents", rank)
	}

	typeRank := 1
	leaf := t.Elem()
	for leaf.Kind() == reflect.Array {
		typeRank++
		leaf = leaf.Elem()
	}
	if rank != typeRank {
		return newFormatError(path, h.offset, "array rank %d cannot fill %s", rank, t)
	}

	extents := make([]int, rank)
	for i := range extents {
		extents[i] = int(binary.LittleEndian.Uint32(r.data[r.pos:]))
		r.pos += 4
	}
	budget := end - r.pos
	total := 1
	for _, e := range extents {
		if e == 0 {
			total = 0
			break
		}
		if total > budget/e {
			return newFormatError(path, h.offset, "array extents %v overrun payload", extents)
		}
		total *= e
	}
	shape := t
	for i, e := range extents {
		if shape.Kind() == reflect.Array && shape.Len() != e {
			return newFormatError(path, h.offset, "array extent %d is %d, %s holds %d", i, e, shape, shape.Len())
		}
		shape = shape.Elem()
	}

	if t.Kind() == reflect.Slice {
		s := reflect.MakeSlice(t, extents[0], extents[0])
		dst.Set(s)
		if !registered {
			r.refs.register(h.ref, s)
		}
	}
	return r.fillElems(dst, leaf, rank, 0, path, depth, end)
}

func (r *reader) fillElems(v reflect.Value, leaf reflect.Type, rank, level int, path string, depth, end int) error {
	for i := 0; i < v.Len(); i++ {
		p := indexPath(path, i)
		if level+1 < rank {
			if err := r.fillElems(v.Index(i), leaf, rank, level+1, p, depth, end); err != nil {
				return err
			}
			continue
		}
		e, err := r.readFrame(leaf, p, depth+1, end)
		if err != nil {
			return err
		}
		v.Index(i).Set(e)
	}
	return nil
}

// fillSequence reads an enumerable payload into a slice.
func (r *reader) fillSequence(dst reflect.Value, h header, path string, depth, end int, registered bool) error {
	t := dst.Type()
	s := reflect.MakeSlice(t, 0, 0)
	for i := 0; r.pos < end; i++ {
		e, err := r.readFrame(t.Elem(), indexPath(path, i), depth+1, end)
		if err != nil {
			return err
		}
		s = reflect.Append(s, e)
	}
	dst.Set(s)
	if !registered {
		r.refs.register(h.ref, s)
	}
	return nil
}

func (r *reader) fillMap(dst reflect.Value, h header, path string, depth, end int, registered bool) error {
	t := dst.Type()
	if t.Kind() != reflect.Map {
		return r.mismatch(h, t, path)
	}
	m := reflect.MakeMap(t)
	dst.Set(m)
	if !registered {
		r.refs.register(h.ref, m)
	}
	for i := 0; r.pos < end; i++ {
		p := indexPath(path, i)
		k, err := r.readFrame(t.Key(), p, depth+1, end)
		if err != nil {
			return err
		}
		if r.pos >= end {
			return newFormatError(p, r.pos, "dictionary key without value")
		}
		v, err := r.readFrame(t.Elem(), p, depth+1, end)
		if err != nil {
			return err
		}
		if !k.Type().Comparable() {
			return newFormatError(p, r.pos, "dictionary key of type %s is not comparable", k.Type())
		}
		m.SetMapIndex(k, v)
	}
	return nil
}

func (r *reader) readCollection(h header, t reflect.Type, path string, depth, end int) (reflect.Value, error) {
	if h.tag.Base() != TagEnumerable {
		return reflect.Value{}, r.mismatch(h, t, path)
	}
	cv, err := r.construct(t)
	if err != nil {
		return reflect.Value{}, err
	}
	r.refs.register(h.ref, cv)
	c := cv.Interface().(Collection)
	elem := c.ElemType()
	for i := 0; r.pos < end; i++ {
		p := indexPath(path, i)
		v, err := r.readFrame(elem, p, depth+1, end)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := c.Insert(v.Interface()); err != nil {
			return reflect.Value{}, newFormatError(p, r.pos, "%v", err)
		}
	}
	return cv, nil
}

// skipFrame steps over one frame without decoding it.
func (r *reader) skipFrame(end int, path string) error {
	h, err := r.readHeader(end, path)
	if err != nil {
		return err
	}
	r.pos += h.length
	return nil
}

// take consumes the rest of the current payload.
func (r *reader) take(end int) []byte {
	p := r.data[r.pos:end]
	r.pos = end
	return p
}

func (r *reader) mismatch(h header, t reflect.Type, path string) error {
	return newFormatError(path, h.offset, "%s frame cannot fill %s", h.tag.Base(), t)
}

func (r *reader) trace(path string, h header) {
	if !r.opts.Diagnostic {
		return
	}
	r.opts.Logger.Debug("frame read",
		zap.String("path", displayPath(path)),
		zap.Stringer("tag", h.tag),
		zap.Uint16("ref", h.ref),
		zap.Int("length", h.length),
		zap.Int("offset", h.offset),
	)
}
