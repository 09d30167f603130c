// Package bson provides a skein plugin that embeds document values as BSON.
package bson

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/zoobzio/skein"
	"go.mongodb.org/mongo-driver/bson"
)

// plugin encodes T as a BSON document under the Custom tag.
// T must be a struct or map type.
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

// SizeHint returns zero; BSON documents vary in size.
func (plugin[T]) SizeHint() int { return 0 }

// Marshal encodes v as a BSON document.
func (plugin[T]) Marshal(v any) ([]byte, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "bson marshal")
	}
	return data, nil
}

// Unmarshal decodes a BSON document into a T.
func (plugin[T]) Unmarshal(data []byte) (any, error) {
	var out T
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "bson unmarshal")
	}
	return out, nil
}
