package skein

import (
	"context"
	"maps"
	"reflect"
	"slices"
)

// Codec serializes values of one root type with a fixed set of options.
// Codecs are safe for concurrent use; each call runs its own pass.
type Codec[T any] struct {
	opts     Options
	typeName string
}

// NewCodec creates a codec for *T. It fails when the options are invalid or
// when T cannot be mapped to a frame tag.
func NewCodec[T any](opts ...Option) (*Codec[T], error) {
	o := buildOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}
	typ := reflect.TypeFor[*T]()
	if _, _, err := resolveTag(typ, o.Registry, ""); err != nil {
		return nil, err
	}
	if typ.Elem().Kind() == reflect.Struct {
		scanType[T]()
		planFor(typ.Elem())
	}
	o.Registry.Register(typ)

	c := &Codec[T]{
		opts:     *o,
		typeName: TypeName(typ.Elem()),
	}
	emitCodecCreated(context.Background(), c.typeName)
	return c, nil
}

// Options returns a copy of the codec's options. Slices and maps are cloned
// so callers cannot mutate the codec.
func (c *Codec[T]) Options() Options {
	o := c.opts
	o.Ignore = slices.Clone(o.Ignore)
	o.IgnoreTags = slices.Clone(o.IgnoreTags)
	o.TypeMap = maps.Clone(o.TypeMap)
	o.Factories = maps.Clone(o.Factories)
	return o
}

func (c *Codec[T]) options() *Options {
	o := c.opts
	return &o
}

// Marshal encodes v. A nil v encodes as a null root frame.
func (c *Codec[T]) Marshal(ctx context.Context, v *T) ([]byte, error) {
	return serialize(ctx, v, c.options())
}

// Unmarshal decodes data produced by Marshal. A null root yields nil.
func (c *Codec[T]) Unmarshal(ctx context.Context, data []byte) (*T, error) {
	var out *T
	if err := deserialize(ctx, data, &out, c.options()); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate reports whether data is a structurally well-formed stream.
func (c *Codec[T]) Validate(ctx context.Context, data []byte) bool {
	return validate(ctx, data, c.options())
}

// Inspect decodes the frame structure of data.
func (c *Codec[T]) Inspect(data []byte) (*Document, error) {
	doc, _, err := walk(data, c.options(), true)
	return doc, err
}
