// Package msgpack provides a skein plugin that embeds values as MessagePack.
package msgpack

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/skein"
)

// plugin encodes T as an opaque MessagePack payload under the Custom tag.
type plugin[T any] struct{}

// New returns a plugin for T.
func New[T any]() skein.Plugin {
	return plugin[T]{}
}

// Register installs the plugin for T on r, or on the default registry when r is nil.
func Register[T any](r *skein.Registry) error {
	if r == nil {
		r = skein.DefaultRegistry()
	}
	return r.SetPlugin(reflect.TypeFor[T](), New[T]())
}

// Tag returns skein.TagCustom.
func (plugin[T]) Tag() skein.Tag { return skein.TagCustom }

// SizeHint returns zero; MessagePack payloads vary in size.
func (plugin[T]) SizeHint() int { return 0 }

// Marshal encodes v as MessagePack.
func (plugin[T]) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "msgpack marshal")
	}
	return data, nil
}

// Unmarshal decodes MessagePack data into a T.
func (plugin[T]) Unmarshal(data []byte) (any, error) {
	var out T
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "msgpack unmarshal")
	}
	return out, nil
}
