package skein

import (
	"encoding/binary"
	"math"
	"math/big"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// resolveTag maps a static type to its frame tag. The returned plugin is
// non-nil when a registered plugin owns the type (or its pointee).
func resolveTag(t reflect.Type, reg *Registry, path string) (Tag, Plugin, error) {
	if p, ok := reg.Plugin(t); ok {
		return p.Tag(), p, nil
	}
	switch t {
	case timeType:
		return TagDateTime, nil, nil
	case durationType:
		return TagTimeSpan, nil, nil
	case uuidType:
		return TagGuid, nil, nil
	case decimalType:
		return TagDecimal, nil, nil
	case charType:
		return TagChar, nil, nil
	}
	if isCollection(t) {
		return TagEnumerable, nil, nil
	}
	if t.Kind() != reflect.Pointer && isSerializable(t) {
		return TagCustom, nil, nil
	}
	if t.Kind() == reflect.Struct {
		switch {
		case t.Implements(tupleMarkerType):
			return TagTuple, nil, nil
		case t.Implements(keyValueMarkerType):
			return TagKeyValuePair, nil, nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return TagBool, nil, nil
	case reflect.Int8, reflect.Uint8:
		return integralTag(t, TagByte), nil, nil
	case reflect.Int16, reflect.Uint16:
		return integralTag(t, TagShort), nil, nil
	case reflect.Int32, reflect.Uint32:
		return integralTag(t, TagInt), nil, nil
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return integralTag(t, TagLong), nil, nil
	case reflect.Float32:
		return TagFloat, nil, nil
	case reflect.Float64:
		return TagDouble, nil, nil
	case reflect.String:
		return TagString, nil, nil
	case reflect.Struct:
		return TagStruct, nil, nil
	case reflect.Slice, reflect.Array:
		return TagArray, nil, nil
	case reflect.Map:
		return TagDictionary, nil, nil
	case reflect.Interface:
		return TagObject, nil, nil
	case reflect.Pointer:
		switch t.Elem().Kind() {
		case reflect.Pointer, reflect.Interface:
			return 0, nil, newUnsupportedTypeError(t, path)
		}
		tag, p, err := resolveTag(t.Elem(), reg, path)
		if err != nil {
			return 0, nil, err
		}
		if tag == TagStruct {
			tag = TagObject
		}
		return tag, p, nil
	}
	return 0, nil, newUnsupportedTypeError(t, path)
}

// integralTag returns TagEnum for named integer types declared in a package.
func integralTag(t reflect.Type, natural Tag) Tag {
	if t.PkgPath() != "" && t.Name() != "" {
		return TagEnum
	}
	return natural
}

// naturalType is the type a scalar frame decodes to when the target slot is
// an interface and no type descriptor accompanies the frame.
func naturalType(tag Tag) (reflect.Type, bool) {
	switch tag.Base() {
	case TagBool:
		return reflect.TypeFor[bool](), true
	case TagByte:
		return reflect.TypeFor[uint8](), true
	case TagShort:
		return reflect.TypeFor[int16](), true
	case TagInt:
		return reflect.TypeFor[int32](), true
	case TagLong, TagEnum:
		return reflect.TypeFor[int64](), true
	case TagFloat:
		return reflect.TypeFor[float32](), true
	case TagDouble:
		return reflect.TypeFor[float64](), true
	case TagDecimal:
		return decimalType, true
	case TagString:
		return reflect.TypeFor[string](), true
	case TagChar:
		return charType, true
	case TagGuid:
		return uuidType, true
	case TagDateTime:
		return timeType, true
	case TagTimeSpan:
		return durationType, true
	case TagPoint:
		return pointType, true
	case TagArray:
		return reflect.TypeFor[[]any](), true
	case TagDictionary:
		return reflect.TypeFor[map[any]any](), true
	case TagEnumerable:
		return reflect.TypeFor[*List[any]](), true
	}
	return nil, false
}

// appendScalar encodes a non-container value.
func appendScalar(b []byte, tag Tag, v reflect.Value) ([]byte, error) {
	switch tag.Base() {
	case TagBool:
		if v.Bool() {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case TagByte, TagShort, TagInt, TagLong, TagEnum:
		var raw uint64
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			raw = uint64(v.Int())
		default:
			raw = v.Uint()
		}
		return appendUint(b, raw, int(v.Type().Size())), nil
	case TagFloat:
		return binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(v.Float()))), nil
	case TagDouble:
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(v.Float())), nil
	case TagDecimal:
		d, _ := v.Interface().(decimal.Decimal)
		return appendDecimal(b, d)
	case TagString:
		s := v.String()
		b = binary.AppendUvarint(b, uint64(len(s)))
		return append(b, s...), nil
	case TagChar:
		return binary.LittleEndian.AppendUint32(b, uint32(v.Int())), nil
	case TagGuid:
		u, _ := v.Interface().(uuid.UUID)
		return append(b, u[:]...), nil
	case TagDateTime:
		t, _ := v.Interface().(time.Time)
		return binary.LittleEndian.AppendUint64(b, uint64(timeToTicks(t))), nil
	case TagTimeSpan:
		return binary.LittleEndian.AppendUint64(b, uint64(v.Int())), nil
	}
	return nil, errors.Newf("tag %s has no scalar encoding", tag)
}

func appendUint(b []byte, raw uint64, width int) []byte {
	switch width {
	case 1:
		return append(b, byte(raw))
	case 2:
		return binary.LittleEndian.AppendUint16(b, uint16(raw))
	case 4:
		return binary.LittleEndian.AppendUint32(b, uint32(raw))
	}
	return binary.LittleEndian.AppendUint64(b, raw)
}

func readUint(p []byte) uint64 {
	switch len(p) {
	case 1:
		return uint64(p[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(p))
	case 4:
		return uint64(binary.LittleEndian.Uint32(p))
	}
	return binary.LittleEndian.Uint64(p)
}

// signExtend widens a width-byte two's complement value.
func signExtend(raw uint64, width int) int64 {
	shift := 64 - uint(width)*8
	return int64(raw<<shift) >> shift
}

// checkScalarWidth verifies the payload length of a scalar frame.
func checkScalarWidth(tag Tag, payload []byte) error {
	if w, ok := tag.fixedWidth(); ok {
		if len(payload) != w {
			return errors.Newf("%s payload is %d bytes, want %d", tag.Base(), len(payload), w)
		}
		return nil
	}
	switch tag.Base() {
	case TagEnum:
		switch len(payload) {
		case 1, 2, 4, 8:
			return nil
		}
		return errors.Newf("enum payload is %d bytes", len(payload))
	case TagString:
		_, err := decodeString(payload)
		return err
	}
	return nil
}

// decodeScalar writes a scalar payload into dst, converting between integral
// widths and between floating-point precisions.
func decodeScalar(dst reflect.Value, tag Tag, payload []byte) error {
	if err := checkScalarWidth(tag, payload); err != nil {
		return err
	}
	t := dst.Type()
	switch tag.Base() {
	case TagBool:
		if t.Kind() == reflect.Bool {
			dst.SetBool(payload[0] != 0)
			return nil
		}
	case TagByte, TagShort, TagInt, TagLong, TagEnum:
		raw := readUint(payload)
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(signExtend(raw, len(payload)))
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(raw)
			return nil
		}
	case TagFloat, TagDouble:
		var f float64
		if tag.Base() == TagFloat {
			f = float64(math.Float32frombits(binary.LittleEndian.Uint32(payload)))
		} else {
			f = math.Float64frombits(binary.LittleEndian.Uint64(payload))
		}
		switch t.Kind() {
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(f)
			return nil
		}
	case TagDecimal:
		if t == decimalType {
			d, err := readDecimal(payload)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(d))
			return nil
		}
	case TagString:
		if t.Kind() == reflect.String {
			s, _ := decodeString(payload)
			dst.SetString(s)
			return nil
		}
	case TagChar:
		if t.Kind() == reflect.Int32 {
			dst.SetInt(int64(int32(binary.LittleEndian.Uint32(payload))))
			return nil
		}
	case TagGuid:
		if t == uuidType {
			var u uuid.UUID
			copy(u[:], payload)
			dst.Set(reflect.ValueOf(u))
			return nil
		}
	case TagDateTime:
		if t == timeType {
			dst.Set(reflect.ValueOf(ticksToTime(int64(binary.LittleEndian.Uint64(payload)))))
			return nil
		}
	case TagTimeSpan:
		if t.Kind() == reflect.Int64 {
			dst.SetInt(int64(binary.LittleEndian.Uint64(payload)))
			return nil
		}
	}
	return errors.Newf("cannot decode %s into %s", tag.Base(), t)
}

// decodeString reads a uvarint-prefixed UTF-8 payload.
func decodeString(payload []byte) (string, error) {
	n, k := binary.Uvarint(payload)
	if k <= 0 {
		return "", errors.New("malformed string length prefix")
	}
	if uint64(len(payload)-k) != n {
		return "", errors.Newf("string prefix declares %d bytes, payload holds %d", n, len(payload)-k)
	}
	s := string(payload[k:])
	if !utf8.ValidString(s) {
		return "", errors.New("string is not valid UTF-8")
	}
	return s, nil
}

// Ticks are 100ns intervals since 0001-01-01T00:00:00Z.
const (
	ticksPerSecond = 10_000_000
	unixEpochTicks = 621_355_968_000_000_000
)

func timeToTicks(t time.Time) int64 {
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond()/100) + unixEpochTicks
}

func ticksToTime(ticks int64) time.Time {
	rel := ticks - unixEpochTicks
	sec := rel / ticksPerSecond
	rem := rel % ticksPerSecond
	if rem < 0 {
		rem += ticksPerSecond
		sec--
	}
	return time.Unix(sec, rem*100).UTC()
}

// Decimal layout: 96-bit magnitude as three little-endian uint32 words
// followed by a flags word holding the scale in bits 16-23 and the sign in
// bit 31.
const (
	maxDecimalScale = 28
	decimalSignBit  = 1 << 31
)

var (
	decimalMaxMagnitude = new(big.Int).Lsh(big.NewInt(1), 96)
	mask32              = big.NewInt(0xFFFFFFFF)
)

func appendDecimal(b []byte, d decimal.Decimal) ([]byte, error) {
	if d.Exponent() < -maxDecimalScale {
		d = d.Round(maxDecimalScale)
	}
	coef := d.Coefficient()
	exp := d.Exponent()
	if exp > 0 {
		coef.Mul(coef, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
		exp = 0
	}
	neg := coef.Sign() < 0
	coef.Abs(coef)
	if coef.Cmp(decimalMaxMagnitude) >= 0 {
		return nil, errors.Newf("decimal %s exceeds 96-bit magnitude", d)
	}
	var words [3]uint32
	w := new(big.Int)
	for i := range words {
		words[i] = uint32(w.And(coef, mask32).Uint64())
		coef.Rsh(coef, 32)
	}
	flags := uint32(-exp) << 16
	if neg {
		flags |= decimalSignBit
	}
	for _, word := range words {
		b = binary.LittleEndian.AppendUint32(b, word)
	}
	return binary.LittleEndian.AppendUint32(b, flags), nil
}

func readDecimal(p []byte) (decimal.Decimal, error) {
	flags := binary.LittleEndian.Uint32(p[12:])
	scale := int32((flags >> 16) & 0xFF)
	if scale > maxDecimalScale {
		return decimal.Decimal{}, errors.Newf("decimal scale %d exceeds %d", scale, maxDecimalScale)
	}
	coef := new(big.Int)
	for i := 2; i >= 0; i-- {
		coef.Lsh(coef, 32)
		coef.Or(coef, new(big.Int).SetUint64(uint64(binary.LittleEndian.Uint32(p[i*4:]))))
	}
	if flags&decimalSignBit != 0 {
		coef.Neg(coef)
	}
	return decimal.NewFromBigInt(coef, -scale), nil
}
