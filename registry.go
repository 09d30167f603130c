package skein

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Registry resolves type descriptor names to types and holds per-type plugins.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]reflect.Type
	plugins map[reflect.Type]Plugin
}

// builtinTypes are resolvable by name in every registry.
var builtinTypes = []reflect.Type{
	reflect.TypeFor[bool](),
	reflect.TypeFor[int](),
	reflect.TypeFor[int8](),
	reflect.TypeFor[int16](),
	reflect.TypeFor[int32](),
	reflect.TypeFor[int64](),
	reflect.TypeFor[uint](),
	reflect.TypeFor[uint8](),
	reflect.TypeFor[uint16](),
	reflect.TypeFor[uint32](),
	reflect.TypeFor[uint64](),
	reflect.TypeFor[float32](),
	reflect.TypeFor[float64](),
	reflect.TypeFor[string](),
	reflect.TypeFor[[]byte](),
	reflect.TypeFor[[]string](),
	reflect.TypeFor[[]any](),
	reflect.TypeFor[map[string]any](),
	reflect.TypeFor[map[any]any](),
	reflect.TypeFor[*List[any]](),
	charType,
	pointType,
	timeType,
	durationType,
	uuidType,
	decimalType,
}

// NewRegistry creates a registry holding the built-in types and the Point plugin.
func NewRegistry() *Registry {
	r := &Registry{
		types:   make(map[string]reflect.Type, len(builtinTypes)),
		plugins: map[reflect.Type]Plugin{pointType: PointPlugin{}},
	}
	for _, t := range builtinTypes {
		r.types[TypeName(t)] = t
	}
	return r
}

var (
	defaultRegistry   = NewRegistry()
	defaultRegistryMu sync.RWMutex
)

// DefaultRegistry returns the process-wide registry used when Options.Registry is nil.
func DefaultRegistry() *Registry {
	defaultRegistryMu.RLock()
	defer defaultRegistryMu.RUnlock()
	return defaultRegistry
}

// Register adds T and *T to the default registry and returns T's name.
func Register[T any]() string {
	scanType[T]()
	return DefaultRegistry().Register(reflect.TypeFor[T]())
}

// RegisterPlugin installs p for T in the default registry.
func RegisterPlugin[T any](p Plugin) error {
	return DefaultRegistry().SetPlugin(reflect.TypeFor[T](), p)
}

// Register adds t under its fully-qualified name and returns that name.
// Pointer and element forms are registered alongside.
func (r *Registry) Register(t reflect.Type) string {
	name := TypeName(t)

	// Fast path: read-lock check
	r.mu.RLock()
	_, ok := r.types[name]
	r.mu.RUnlock()
	if ok {
		return name
	}

	related := []reflect.Type{t}
	if t.Kind() == reflect.Pointer {
		related = append(related, t.Elem())
	} else {
		related = append(related, reflect.PointerTo(t))
	}

	var added []string
	r.mu.Lock()
	for _, rt := range related {
		n := TypeName(rt)
		// Double-check pattern
		if _, exists := r.types[n]; exists {
			continue
		}
		r.types[n] = rt
		added = append(added, n)
	}
	r.mu.Unlock()

	for _, n := range added {
		emitTypeRegistered(context.Background(), n)
	}
	return name
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns every registered type name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := lo.Keys(r.types)
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// SetPlugin installs p for t, replacing any previous plugin.
func (r *Registry) SetPlugin(t reflect.Type, p Plugin) error {
	if p == nil {
		return errors.Wrapf(ErrInvalidConfig, "nil plugin for %s", t)
	}
	if !IsValidPluginTag(p.Tag()) {
		return errors.Wrapf(ErrInvalidConfig, "plugin for %s claims tag %s", t, p.Tag())
	}
	r.Register(t)
	r.mu.Lock()
	r.plugins[t] = p
	r.mu.Unlock()
	return nil
}

// Plugin returns the plugin installed for t.
func (r *Registry) Plugin(t reflect.Type) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[t]
	return p, ok
}

// TypeName returns the fully-qualified name written into type descriptors.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		return "[]" + TypeName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), TypeName(t.Elem()))
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + "]" + TypeName(t.Elem())
	}
	return t.String()
}

var (
	codecs   = make(map[reflect.Type]any)
	codecsMu sync.RWMutex
)

// Use returns a cached codec for T built with default options.
func Use[T any]() (*Codec[T], error) {
	typ := reflect.TypeFor[T]()

	// Fast path: read-lock cache check
	codecsMu.RLock()
	if cached, ok := codecs[typ]; ok {
		codecsMu.RUnlock()
		return cached.(*Codec[T]), nil
	}
	codecsMu.RUnlock()

	// Slow path: build and cache with write-lock
	codecsMu.Lock()
	defer codecsMu.Unlock()

	// Double-check pattern
	if cached, ok := codecs[typ]; ok {
		return cached.(*Codec[T]), nil
	}

	c, err := NewCodec[T]()
	if err != nil {
		return nil, err
	}
	codecs[typ] = c
	return c, nil
}

// Reset clears the codec cache and replaces the default registry.
// This is primarily useful for test isolation.
func Reset() {
	codecsMu.Lock()
	codecs = make(map[reflect.Type]any)
	codecsMu.Unlock()

	defaultRegistryMu.Lock()
	defaultRegistry = NewRegistry()
	defaultRegistryMu.Unlock()
}
