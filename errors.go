package skein

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrFormat indicates malformed, truncated, or inconsistent bytes.
	ErrFormat = errors.New("format error")

	// ErrSizeLimitExceeded indicates a frame payload overflowed the length field.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrUnsupportedType indicates a type that maps to no tag and has no plugin.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrDepthExceeded indicates the depth limit was reached under DepthFail.
	ErrDepthExceeded = errors.New("depth limit exceeded")

	// ErrTooManyReferences indicates a pass visited more reference-typed values
	// than a reference id can address.
	ErrTooManyReferences = errors.New("too many references")

	// ErrUnknownType indicates a type descriptor names a type missing from the registry.
	ErrUnknownType = errors.New("unknown type")

	// ErrInvalidTarget indicates a deserialize target that is not a non-nil pointer.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrCompression indicates the compression transform failed.
	ErrCompression = errors.New("compression failed")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config")
)

// FormatError reports a structural problem found while reading a stream.
type FormatError struct {
	Path   string // Field path of the failing frame
	Offset int    // Byte offset within the decoded payload
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at offset %d (path %s): %s", ErrFormat.Error(), e.Offset, e.Path, e.Reason)
	}
	return fmt.Sprintf("%s at offset %d: %s", ErrFormat.Error(), e.Offset, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// SizeLimitError reports a frame whose payload does not fit the length field.
type SizeLimitError struct {
	Path  string
	Size  int
	Limit uint64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s: frame payload of %d bytes exceeds %d (path %s)", ErrSizeLimitExceeded.Error(), e.Size, e.Limit, displayPath(e.Path))
}

func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimitExceeded
}

// UnsupportedTypeError reports a type the codec cannot map to a tag.
type UnsupportedTypeError struct {
	Type reflect.Type
	Path string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s %s (path %s)", ErrUnsupportedType.Error(), e.Type, displayPath(e.Path))
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// newFormatError creates a FormatError at the given offset.
func newFormatError(path string, offset int, format string, args ...any) error {
	return &FormatError{
		Path:   path,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
	}
}

// newUnsupportedTypeError creates an UnsupportedTypeError.
func newUnsupportedTypeError(t reflect.Type, path string) error {
	return &UnsupportedTypeError{Type: t, Path: path}
}

func displayPath(p string) string {
	if p == "" {
		return "<root>"
	}
	return p
}
