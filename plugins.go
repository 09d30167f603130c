package skein

import (
	"encoding/binary"
	"encoding/xml"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding/unicode"
)

// PointPlugin encodes Point as two little-endian int32 values.
type PointPlugin struct{}

var _ Plugin = PointPlugin{}

// Tag returns TagPoint.
func (PointPlugin) Tag() Tag { return TagPoint }

// SizeHint returns 8: two little-endian int32 values.
func (PointPlugin) SizeHint() int { return 8 }

// Marshal encodes a Point as X then Y.
func (PointPlugin) Marshal(v any) ([]byte, error) {
	p, ok := v.(Point)
	if !ok {
		return nil, errors.Newf("point plugin: unexpected %T", v)
	}
	b := make([]byte, 0, 8)
	b = binary.LittleEndian.AppendUint32(b, uint32(p.X))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.Y))
	return b, nil
}

// Unmarshal decodes an 8-byte payload into a Point.
func (PointPlugin) Unmarshal(data []byte) (any, error) {
	if len(data) != 8 {
		return nil, errors.Newf("point plugin: payload is %d bytes, want 8", len(data))
	}
	return Point{
		X: int32(binary.LittleEndian.Uint32(data)),
		Y: int32(binary.LittleEndian.Uint32(data[4:])),
	}, nil
}

// XMLPlugin encodes T as an XML document carried as UTF-16LE text under the
// Custom tag.
type XMLPlugin[T any] struct{}

var _ Plugin = XMLPlugin[struct{}]{}

// Tag returns TagCustom.
func (XMLPlugin[T]) Tag() Tag { return TagCustom }

// SizeHint returns zero; documents vary in size.
func (XMLPlugin[T]) SizeHint() int { return 0 }

// Marshal encodes v as an XML document in UTF-16LE.
func (XMLPlugin[T]) Marshal(v any) ([]byte, error) {
	doc, err := xml.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "xml plugin")
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes(doc)
	if err != nil {
		return nil, errors.Wrap(err, "xml plugin: utf-16 encode")
	}
	return out, nil
}

// Unmarshal decodes a UTF-16LE XML document into a T.
func (XMLPlugin[T]) Unmarshal(data []byte) (any, error) {
	doc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "xml plugin: utf-16 decode")
	}
	var out T
	if err := xml.Unmarshal(doc, &out); err != nil {
		return nil, errors.Wrap(err, "xml plugin")
	}
	return out, nil
}
