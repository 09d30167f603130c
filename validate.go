package skein

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// maxWalkDepth bounds validator recursion independently of MaxDepth.
const maxWalkDepth = 4096

// Document is the structural view of a stream produced by Inspect.
type Document struct {
	Settings []string          `yaml:"settings" json:"settings"`
	Size     int               `yaml:"size" json:"size"`
	Types    map[uint16]string `yaml:"types,omitempty" json:"types,omitempty"`
	Frames   int               `yaml:"frames" json:"frames"`
	Root     *FrameInfo        `yaml:"root" json:"root"`
}

// FrameInfo describes one frame and its nested frames.
type FrameInfo struct {
	Offset   int          `yaml:"offset" json:"offset"`
	Tag      string       `yaml:"tag" json:"tag"`
	Type     string       `yaml:"type,omitempty" json:"type,omitempty"`
	Ref      *uint16      `yaml:"ref,omitempty" json:"ref,omitempty"`
	BackRef  bool         `yaml:"backref,omitempty" json:"backref,omitempty"`
	Length   int          `yaml:"length" json:"length"`
	Value    string       `yaml:"value,omitempty" json:"value,omitempty"`
	Extents  []int        `yaml:"extents,omitempty" json:"extents,omitempty"`
	Children []*FrameInfo `yaml:"children,omitempty" json:"children,omitempty"`
}

// walker checks stream structure without constructing values.
type walker struct {
	s       Settings
	data    []byte
	pos     int
	types   *descriptorTable
	nextRef int
	frames  int
	build   bool
}

// walk checks data and, when build is set, returns its frame tree.
func walk(data []byte, o *Options, build bool) (*Document, int, error) {
	if err := o.validate(); err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, newFormatError("", 0, "empty stream")
	}
	s := Settings(data[0])
	if s&^settingsMask != 0 {
		return nil, 0, newFormatError("", 0, "unknown settings bits 0x%02x", byte(s&^settingsMask))
	}
	body := data[1:]
	if s.Has(SettingCompress) {
		var err error
		if body, err = decompressor(o).Decompress(nil, body); err != nil {
			return nil, 0, errors.Mark(errors.Wrap(err, "decompress"), ErrCompression)
		}
	}

	w := &walker{s: s, data: body, types: newDescriptorTable(), build: build}
	if s.Has(SettingTypeMap) {
		if err := w.descriptors(); err != nil {
			return nil, 0, err
		}
	}
	root, err := w.frame(len(body), 0)
	if err != nil {
		return nil, w.frames, err
	}
	if w.pos != len(body) {
		return nil, w.frames, newFormatError("", w.pos, "%d trailing bytes after root frame", len(body)-w.pos)
	}
	if !build {
		return nil, w.frames, nil
	}

	doc := &Document{Size: len(data), Frames: w.frames, Root: root}
	for _, flag := range []struct {
		bit  Settings
		name string
	}{{SettingCompact, "compact"}, {SettingCompress, "compress"}, {SettingTypeMap, "typemap"}} {
		if s.Has(flag.bit) {
			doc.Settings = append(doc.Settings, flag.name)
		}
	}
	if w.types.len() > 0 {
		doc.Types = make(map[uint16]string, w.types.len())
		for _, id := range w.types.order {
			doc.Types[id] = w.types.names[id]
		}
	}
	return doc, w.frames, nil
}

// descriptors reads the leading TypeDescriptorMap frame.
func (w *walker) descriptors() error {
	if len(w.data) == 0 || Tag(w.data[0]) != TagTypeDescriptorMap {
		return newFormatError("", 0, "type map setting without descriptor table")
	}
	hs := w.s.headerSize(TagTypeDescriptorMap)
	if len(w.data) < hs {
		return newFormatError("", 0, "truncated descriptor table header")
	}
	n := w.length(1)
	if n > len(w.data)-hs {
		return newFormatError("", 0, "descriptor table overruns stream")
	}
	table, err := parseDescriptors(w.data[hs:hs+n], hs)
	if err != nil {
		return err
	}
	w.types = table
	w.pos = hs + n
	return nil
}

func (w *walker) length(at int) int {
	if w.s.Has(SettingCompact) {
		return int(binary.LittleEndian.Uint16(w.data[at:]))
	}
	return int(binary.LittleEndian.Uint32(w.data[at:]))
}

func (w *walker) frame(end, depth int) (*FrameInfo, error) {
	if depth > maxWalkDepth {
		return nil, newFormatError("", w.pos, "nesting deeper than %d", maxWalkDepth)
	}
	if w.pos >= end {
		return nil, newFormatError("", w.pos, "unexpected end of payload")
	}
	offset := w.pos
	tag := Tag(w.data[w.pos])
	if !tag.Valid() || tag.Base() == TagTypeDescriptorMap {
		return nil, newFormatError("", offset, "unexpected tag 0x%02x", byte(tag))
	}
	if end-w.pos < w.s.headerSize(tag) {
		return nil, newFormatError("", offset, "truncated %s frame header", tag.Base())
	}
	p := w.pos + 1
	length := w.length(p)
	p += w.s.lengthSize()
	ref := binary.LittleEndian.Uint16(w.data[p:])
	p += 2
	var typeName string
	if tag.IsTypeMapped() {
		id := binary.LittleEndian.Uint16(w.data[p:])
		p += 2
		name, ok := w.types.resolve(id)
		if !ok {
			return nil, newFormatError("", offset, "type descriptor %d not in table", id)
		}
		typeName = name
	}
	if length > end-p {
		return nil, newFormatError("", offset, "%s frame length %d overruns enclosing payload", tag.Base(), length)
	}
	w.pos = p
	w.frames++
	payloadEnd := p + length

	var info *FrameInfo
	if w.build {
		info = &FrameInfo{Offset: offset, Tag: tag.String(), Type: typeName, Length: length}
		if ref != NoReference {
			r := ref
			info.Ref = &r
		}
	}

	if tag.IsNull() {
		if length != 0 || ref != NoReference {
			return nil, newFormatError("", offset, "null frame with payload or reference")
		}
		return info, nil
	}

	if ref != NoReference {
		switch {
		case int(ref) < w.nextRef:
			if length != 0 {
				return nil, newFormatError("", offset, "back-reference %d carries payload", ref)
			}
			if info != nil {
				info.BackRef = true
			}
			return info, nil
		case int(ref) == w.nextRef:
			w.nextRef++
		default:
			return nil, newFormatError("", offset, "reference %d precedes its definition", ref)
		}
	}

	base := tag.Base()
	switch {
	case base == TagCustom:
		if info != nil {
			info.Value = fmt.Sprintf("%d opaque bytes", length)
		}
		w.pos = payloadEnd
	case base.container():
		if err := w.children(base, info, payloadEnd, depth); err != nil {
			return nil, err
		}
	default:
		payload := w.data[p:payloadEnd]
		if err := checkScalarWidth(tag, payload); err != nil {
			return nil, newFormatError("", offset, "%v", err)
		}
		if info != nil {
			info.Value = preview(base, payload)
		}
		w.pos = payloadEnd
	}
	if w.pos != payloadEnd {
		return nil, newFormatError("", w.pos, "%s payload ends at %d, frame declares %d", base, w.pos, payloadEnd)
	}
	return info, nil
}

func (w *walker) children(base Tag, info *FrameInfo, end, depth int) error {
	want := -1
	if base == TagArray {
		if end-w.pos < 1 {
			return newFormatError("", w.pos, "array payload lacks rank")
		}
		rank := int(w.data[w.pos])
		w.pos++
		if rank == 0 || end-w.pos < 4*rank {
			return newFormatError("", w.pos, "array rank %d with truncated extents", rank)
		}
		extents := make([]int, rank)
		for i := range extents {
			extents[i] = int(binary.LittleEndian.Uint32(w.data[w.pos:]))
			w.pos += 4
		}
		budget := end - w.pos
		want = 1
		for _, e := range extents {
			if e == 0 {
				want = 0
				break
			}
			if want > budget/e {
				return newFormatError("", w.pos, "array extents %v overrun payload", extents)
			}
			want *= e
		}
		if info != nil {
			info.Extents = extents
		}
	}
	if base == TagKeyValuePair {
		want = 2
	}

	count := 0
	for w.pos < end {
		if want >= 0 && count == want {
			return newFormatError("", w.pos, "%s holds more than %d frames", base, want)
		}
		child, err := w.frame(end, depth+1)
		if err != nil {
			return err
		}
		if info != nil {
			info.Children = append(info.Children, child)
		}
		count++
	}
	if want >= 0 && count != want {
		return newFormatError("", w.pos, "%s holds %d frames, want %d", base, count, want)
	}
	if base == TagDictionary && count%2 != 0 {
		return newFormatError("", w.pos, "dictionary holds odd frame count %d", count)
	}
	return nil
}

// preview renders a scalar payload for display.
func preview(base Tag, p []byte) string {
	switch base {
	case TagBool:
		return strconv.FormatBool(p[0] != 0)
	case TagByte:
		return strconv.FormatUint(uint64(p[0]), 10)
	case TagShort, TagInt, TagLong, TagEnum:
		return strconv.FormatInt(signExtend(readUint(p), len(p)), 10)
	case TagFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(p))), 'g', -1, 32)
	case TagDouble:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(p)), 'g', -1, 64)
	case TagDecimal:
		d, err := readDecimal(p)
		if err != nil {
			return err.Error()
		}
		return d.String()
	case TagString:
		s, _ := decodeString(p)
		return strconv.Quote(s)
	case TagChar:
		return strconv.QuoteRune(rune(binary.LittleEndian.Uint32(p)))
	case TagGuid:
		var u uuid.UUID
		copy(u[:], p)
		return u.String()
	case TagDateTime:
		return ticksToTime(int64(binary.LittleEndian.Uint64(p))).Format(time.RFC3339Nano)
	case TagTimeSpan:
		return time.Duration(int64(binary.LittleEndian.Uint64(p))).String()
	case TagPoint:
		return fmt.Sprintf("(%d, %d)",
			int32(binary.LittleEndian.Uint32(p)),
			int32(binary.LittleEndian.Uint32(p[4:])))
	}
	return ""
}

// validate runs the structural walk. Any panic counts as invalid input.
func validate(ctx context.Context, data []byte, o *Options) (ok bool) {
	var (
		frames int
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = errors.Newf("validator panic: %v", r)
		}
		emitValidateComplete(ctx, len(data), frames, err)
	}()
	_, frames, err = walk(data, o, false)
	return err == nil
}

// decompressor returns the transform used to undo compression.
func decompressor(o *Options) Compressor {
	if o.Compressor != nil {
		return o.Compressor
	}
	return defaultCompressor()
}
