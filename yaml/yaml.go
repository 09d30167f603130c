// Package yaml provides a skein plugin that embeds values as YAML text.
package yaml

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/zoobzio/skein"
	"gopkg.in/yaml.v3"
)

// plugin encodes T as a YAML document under the Custom tag.
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

// SizeHint returns zero; YAML documents vary in size.
func (plugin[T]) SizeHint() int { return 0 }

// Marshal encodes v as YAML.
func (plugin[T]) Marshal(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "yaml marshal")
	}
	return data, nil
}

// Unmarshal decodes a YAML document into a T.
func (plugin[T]) Unmarshal(data []byte) (any, error) {
	var out T
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "yaml unmarshal")
	}
	return out, nil
}
