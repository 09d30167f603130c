// Package skein serializes arbitrary Go object graphs to a compact,
// self-describing binary stream and reconstructs them.
//
// The stream is a single settings byte followed by nested frames. Every
// frame carries a tag naming its kind, the length of its payload, a
// reference id and, for interface-typed positions, a type descriptor id.
// Shared and cyclic references are written once and referred to by id
// afterwards, so object identity survives a round trip.
//
// # Basic Usage
//
//	type Widget struct {
//	    Id          int32
//	    IsEnabled   bool
//	    Description string
//	}
//
//	data, err := skein.Serialize(&Widget{Id: 1, IsEnabled: true, Description: "Test"})
//
//	var w *Widget
//	err = skein.Deserialize(data, &w)
//
// # Field Selection
//
// Every field is serialized, exported or not, except:
//
//   - func, chan and unsafe.Pointer fields
//   - fields tagged `skein:"-"` (unless DisableIgnoreAttributes is set)
//   - fields carrying a tag key listed in IgnoreTags
//   - fields tagged `skein:"since=N"` when Version is set below N
//   - fields named in Ignore, by bare name or by dotted path from the root
//
// Fields are written in name order and read back positionally, so both
// sides must use the same options. Frames for fields a reader no longer
// declares are skipped and missing trailing fields keep their zero value.
// Only drift at the end of the name order is tolerated: adding, removing or
// renaming a field that sorts before others shifts every later frame onto
// the wrong field, and no error is reported unless the tags disagree.
//
// # Interfaces
//
// Values held in interface-typed positions are written with a type
// descriptor naming their dynamic type. Readers resolve names through a
// Registry; types are registered automatically when written, and Register
// makes them known to processes that only read.
//
// # Extension
//
// Types may take over their own encoding by implementing Serializable, or
// by installing a Plugin on the registry. The msgpack subpackage provides
// a plugin that embeds values as MessagePack.
package skein

import (
	"context"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
)

// Serialize encodes v and everything reachable from it.
func Serialize(v any, opts ...Option) ([]byte, error) {
	return serialize(context.Background(), v, buildOptions(opts))
}

// Deserialize decodes data into the value target points to.
// target must be a non-nil pointer.
func Deserialize(data []byte, target any, opts ...Option) error {
	return deserialize(context.Background(), data, target, buildOptions(opts))
}

// Validate reports whether data is a structurally well-formed stream.
// It never panics and never constructs values.
func Validate(data []byte, opts ...Option) bool {
	return validate(context.Background(), data, buildOptions(opts))
}

// Inspect decodes the frame structure of data without constructing values.
func Inspect(data []byte, opts ...Option) (*Document, error) {
	doc, _, err := walk(data, buildOptions(opts), true)
	return doc, err
}

func serialize(ctx context.Context, v any, o *Options) (out []byte, err error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	rv := reflect.ValueOf(v)
	var declared reflect.Type
	if rv.IsValid() {
		declared = rv.Type()
		if !rv.CanAddr() && (rv.Kind() == reflect.Struct || rv.Kind() == reflect.Array) {
			c := reflect.New(declared).Elem()
			c.Set(rv)
			rv = c
		}
	}
	typeName := TypeName(declared)
	emitSerializeStart(ctx, typeName)

	w := newWriter(ctx, o)
	defer w.release()
	defer func() {
		stats := passStats{size: len(out), frames: w.frames, references: w.refs.count(), truncated: w.truncated}
		emitSerializeComplete(ctx, typeName, stats, time.Since(start), err)
	}()

	if err := w.writeFrame(rv, declared, "", 0); err != nil {
		return nil, err
	}

	s := w.settings
	body := make([]byte, 0, len(w.buf.B)+64)
	if w.types.len() > 0 {
		s |= SettingTypeMap
		if body, err = w.types.appendFrame(body, s); err != nil {
			return nil, err
		}
	}
	body = append(body, w.buf.B...)
	if s.Has(SettingCompress) {
		if body, err = o.Compressor.Compress(nil, body); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "compress"), ErrCompression)
		}
	}

	out = make([]byte, 0, len(body)+1)
	out = append(out, byte(s))
	out = append(out, body...)
	return out, nil
}

func deserialize(ctx context.Context, data []byte, target any, o *Options) (err error) {
	if err := o.validate(); err != nil {
		return err
	}
	start := time.Now()
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Wrapf(ErrInvalidTarget, "%T", target)
	}
	typeName := TypeName(rv.Type().Elem())
	emitDeserializeStart(ctx, typeName, len(data))

	var r *reader
	defer func() {
		stats := passStats{size: len(data)}
		if r != nil {
			stats.frames, stats.references, stats.truncated = r.frames, r.refs.count(), r.truncated
		}
		emitDeserializeComplete(ctx, typeName, stats, time.Since(start), err)
	}()

	if len(data) == 0 {
		return newFormatError("", 0, "empty stream")
	}
	s := Settings(data[0])
	if s&^settingsMask != 0 {
		return newFormatError("", 0, "unknown settings bits 0x%02x", byte(s&^settingsMask))
	}
	body := data[1:]
	if s.Has(SettingCompress) {
		if body, err = decompressor(o).Decompress(nil, body); err != nil {
			return errors.Mark(errors.Wrap(err, "decompress"), ErrCompression)
		}
	}

	r = newReader(ctx, o, s, body)
	v, err := r.readFrame(rv.Elem().Type(), "", 0, len(body))
	if err != nil {
		return err
	}
	if r.pos != len(body) {
		return newFormatError("", r.pos, "%d trailing bytes after root frame", len(body)-r.pos)
	}
	rv.Elem().Set(v)
	return nil
}
