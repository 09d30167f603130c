package skein

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the file form of Options, loadable from TOML or YAML.
type Config struct {
	Compact                 bool     `toml:"compact" yaml:"compact"`
	Compress                bool     `toml:"compress" yaml:"compress"`
	CompressionLevel        string   `toml:"compression_level" yaml:"compression_level"`
	EmbedTypes              bool     `toml:"embed_types" yaml:"embed_types"`
	DisableIgnoreAttributes bool     `toml:"disable_ignore_attributes" yaml:"disable_ignore_attributes"`
	Diagnostic              bool     `toml:"diagnostic" yaml:"diagnostic"`
	MaxDepth                int      `toml:"max_depth" yaml:"max_depth"`
	DepthPolicy             string   `toml:"depth_policy" yaml:"depth_policy"`
	Ignore                  []string `toml:"ignore" yaml:"ignore"`
	IgnoreTags              []string `toml:"ignore_tags" yaml:"ignore_tags"`
	Version                 int      `toml:"version" yaml:"version"`
}

// DefaultConfig returns the configuration equivalent to calling with no options.
func DefaultConfig() Config {
	return Config{
		CompressionLevel: "default",
		MaxDepth:         DefaultMaxDepth,
		DepthPolicy:      string(DepthTruncate),
	}
}

// LoadConfig reads a .toml, .yaml or .yml file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config load failed (%s)", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return Config{}, errors.Wrapf(ErrInvalidConfig, "unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "config parse failed (%s)", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_depth %d is negative", c.MaxDepth)
	}
	if c.Version < 0 {
		return errors.Wrapf(ErrInvalidConfig, "version %d is negative", c.Version)
	}
	if c.DepthPolicy != "" && !IsValidDepthPolicy(DepthPolicy(c.DepthPolicy)) {
		return errors.Wrapf(ErrInvalidConfig, "unknown depth_policy %q", c.DepthPolicy)
	}
	if c.CompressionLevel != "" {
		if ok, _ := zstd.EncoderLevelFromString(c.CompressionLevel); !ok {
			return errors.Wrapf(ErrInvalidConfig, "unknown compression_level %q", c.CompressionLevel)
		}
	}
	for _, name := range c.Ignore {
		if strings.TrimSpace(name) == "" {
			return errors.Wrap(ErrInvalidConfig, "empty ignore entry")
		}
	}
	return nil
}

// Options converts the configuration to call options. logger receives
// diagnostic frame logs when Diagnostic is set. Compression uses one shared
// zstd transform per level, so repeated calls allocate no new encoders.
func (c Config) Options(logger *zap.Logger) ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts := []Option{
		WithMaxDepth(c.MaxDepth),
		WithVersion(c.Version),
	}
	if c.DepthPolicy != "" {
		opts = append(opts, WithDepthPolicy(DepthPolicy(c.DepthPolicy)))
	}
	if c.Compact {
		opts = append(opts, WithCompact())
	}
	if c.Compress {
		level := zstd.SpeedDefault
		if c.CompressionLevel != "" {
			_, level = zstd.EncoderLevelFromString(c.CompressionLevel)
		}
		comp, err := sharedCompressor(level)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "zstd"), ErrCompression)
		}
		opts = append(opts, WithCompression(comp))
	}
	if c.EmbedTypes {
		opts = append(opts, WithEmbedTypes())
	}
	if c.DisableIgnoreAttributes {
		opts = append(opts, WithDisableIgnoreAttributes())
	}
	if c.Diagnostic {
		opts = append(opts, WithDiagnostics(logger))
	}
	if len(c.Ignore) > 0 {
		opts = append(opts, WithIgnore(c.Ignore...))
	}
	if len(c.IgnoreTags) > 0 {
		opts = append(opts, WithIgnoreTags(c.IgnoreTags...))
	}
	return opts, nil
}
