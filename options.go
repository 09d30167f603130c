package skein

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds recursion when Options.MaxDepth is zero.
const DefaultMaxDepth = 32

// DepthPolicy selects what happens when a frame lies deeper than MaxDepth.
type DepthPolicy string

const (
	// DepthTruncate replaces the subtree with its zero value.
	DepthTruncate DepthPolicy = "truncate"

	// DepthFail aborts the call with ErrDepthExceeded.
	DepthFail DepthPolicy = "fail"
)

var validDepthPolicies = map[DepthPolicy]bool{
	DepthTruncate: true,
	DepthFail:     true,
}

// IsValidDepthPolicy returns true if p is a known depth policy.
func IsValidDepthPolicy(p DepthPolicy) bool {
	return validDepthPolicies[p]
}

// Options configures a single serialize, deserialize or validate call.
// Nothing here is global: every call builds its own Options.
type Options struct {
	// Compact uses 2-byte length fields, capping each frame payload at 65535 bytes.
	Compact bool

	// Compress applies Compressor to everything after the settings byte.
	Compress bool

	// EmbedTypes writes a type descriptor for every object and struct frame,
	// not only for interface-typed and anonymous positions.
	EmbedTypes bool

	// DisableIgnoreAttributes serializes fields tagged for exclusion.
	DisableIgnoreAttributes bool

	// Diagnostic logs every frame at debug level through Logger.
	Diagnostic bool

	MaxDepth    int
	DepthPolicy DepthPolicy

	// Ignore lists field names (matched at any depth) or dotted paths
	// (matched from the root) excluded from the stream.
	Ignore []string

	// IgnoreTags lists struct tag keys whose presence excludes a field.
	IgnoreTags []string

	// Version enables `skein:"since=N"` filtering when greater than zero.
	Version int

	// TypeMap redirects construction of a source type to a destination type.
	TypeMap map[reflect.Type]reflect.Type

	// Factories construct empty instances for a type during reads.
	Factories map[reflect.Type]func() any

	Registry   *Registry
	Compressor Compressor
	Logger     *zap.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithCompact enables 2-byte length fields.
func WithCompact() Option {
	return func(o *Options) { o.Compact = true }
}

// WithCompression enables the compression transform.
// A nil compressor selects the default zstd transform.
func WithCompression(c Compressor) Option {
	return func(o *Options) {
		o.Compress = true
		if c != nil {
			o.Compressor = c
		}
	}
}

// WithEmbedTypes writes type descriptors for every object and struct frame.
func WithEmbedTypes() Option {
	return func(o *Options) { o.EmbedTypes = true }
}

// WithDisableIgnoreAttributes serializes fields tagged for exclusion.
func WithDisableIgnoreAttributes() Option {
	return func(o *Options) { o.DisableIgnoreAttributes = true }
}

// WithDiagnostics logs every frame to logger at debug level.
func WithDiagnostics(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Diagnostic = true
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMaxDepth bounds recursion depth.
func WithMaxDepth(n int) Option {
	return func(o *Options) { o.MaxDepth = n }
}

// WithDepthPolicy selects truncation or failure past MaxDepth.
func WithDepthPolicy(p DepthPolicy) Option {
	return func(o *Options) { o.DepthPolicy = p }
}

// WithIgnore excludes fields by name or dotted path.
func WithIgnore(names ...string) Option {
	return func(o *Options) { o.Ignore = append(o.Ignore, names...) }
}

// WithIgnoreTags excludes fields carrying any of the given struct tag keys.
func WithIgnoreTags(keys ...string) Option {
	return func(o *Options) { o.IgnoreTags = append(o.IgnoreTags, keys...) }
}

// WithVersion skips fields introduced after version v.
func WithVersion(v int) Option {
	return func(o *Options) { o.Version = v }
}

// WithTypeMap constructs instances of to wherever data names from.
func WithTypeMap(from, to reflect.Type) Option {
	return func(o *Options) {
		if o.TypeMap == nil {
			o.TypeMap = make(map[reflect.Type]reflect.Type)
		}
		o.TypeMap[from] = to
	}
}

// WithFactory constructs instances of t with fn during reads.
func WithFactory(t reflect.Type, fn func() any) Option {
	return func(o *Options) {
		if o.Factories == nil {
			o.Factories = make(map[reflect.Type]func() any)
		}
		o.Factories[t] = fn
	}
}

// WithRegistry resolves type descriptors and plugins through r.
func WithRegistry(r *Registry) Option {
	return func(o *Options) { o.Registry = r }
}

// WithOptions copies every field of src.
func WithOptions(src Options) Option {
	return func(o *Options) { *o = src }
}

// buildOptions applies opts over the defaults.
func buildOptions(opts []Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.DepthPolicy == "" {
		o.DepthPolicy = DepthTruncate
	}
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}
	if o.Compress && o.Compressor == nil {
		o.Compressor = defaultCompressor()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// validate rejects option values no pass can honor.
func (o *Options) validate() error {
	if !IsValidDepthPolicy(o.DepthPolicy) {
		return errors.Wrapf(ErrInvalidConfig, "depth policy %q", o.DepthPolicy)
	}
	if o.Version < 0 {
		return errors.Wrapf(ErrInvalidConfig, "version %d", o.Version)
	}
	for from, to := range o.TypeMap {
		if from == nil || to == nil {
			return errors.Wrap(ErrInvalidConfig, "nil type in type map")
		}
	}
	return nil
}

// settings derives the header byte for a write pass.
func (o *Options) settings() Settings {
	var s Settings
	if o.Compact {
		s |= SettingCompact
	}
	if o.Compress {
		s |= SettingCompress
	}
	return s
}
