package skein

import "fmt"

// Tag identifies the structural or scalar kind of a frame.
// The top two bits of the tag byte are flags and are masked off before lookup.
type Tag byte

// Base tags.
const (
	TagBool Tag = iota + 1
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagDecimal
	TagString
	TagChar
	TagEnum
	TagObject
	TagArray
	TagEnumerable
	TagDictionary
	TagGuid
	TagDateTime
	TagTimeSpan
	TagPoint
	TagTuple
	TagKeyValuePair
	TagStruct
	TagCustom

	// TagTypeDescriptorMap marks the leading side-channel frame carrying the
	// type descriptor table. It never represents a data value.
	TagTypeDescriptorMap Tag = 0x3F
)

// Tag flags.
const (
	FlagTypeMapped Tag = 0x40
	FlagNullValue  Tag = 0x80

	tagMask Tag = 0x3F
)

// NoReference is the reference id carried by frames that hold value-typed data.
const NoReference uint16 = 0xFFFF

// Length field ceilings.
const (
	compactLimit = 0xFFFF
	defaultLimit = 0xFFFFFFFF
)

var tagNames = map[Tag]string{
	TagBool:              "Bool",
	TagByte:              "Byte",
	TagShort:             "Short",
	TagInt:               "Int",
	TagLong:              "Long",
	TagFloat:             "Float",
	TagDouble:            "Double",
	TagDecimal:           "Decimal",
	TagString:            "String",
	TagChar:              "Char",
	TagEnum:              "Enum",
	TagObject:            "Object",
	TagArray:             "Array",
	TagEnumerable:        "IEnumerable",
	TagDictionary:        "IDictionary",
	TagGuid:              "Guid",
	TagDateTime:          "DateTime",
	TagTimeSpan:          "TimeSpan",
	TagPoint:             "Point",
	TagTuple:             "Tuple",
	TagKeyValuePair:      "KeyValuePair",
	TagStruct:            "Struct",
	TagCustom:            "Custom",
	TagTypeDescriptorMap: "TypeDescriptorMap",
}

// Base strips the flag bits.
func (t Tag) Base() Tag { return t & tagMask }

// IsNull reports whether the NullValue flag is set.
func (t Tag) IsNull() bool { return t&FlagNullValue != 0 }

// IsTypeMapped reports whether the TypeMapped flag is set.
func (t Tag) IsTypeMapped() bool { return t&FlagTypeMapped != 0 }

// Valid reports whether the base tag is a known kind.
func (t Tag) Valid() bool {
	_, ok := tagNames[t.Base()]
	return ok
}

// String names the base tag and any flags, e.g. "Object|Null".
func (t Tag) String() string {
	name, ok := tagNames[t.Base()]
	if !ok {
		name = fmt.Sprintf("Tag(%d)", byte(t.Base()))
	}
	if t.IsNull() {
		name += "|Null"
	}
	if t.IsTypeMapped() {
		name += "|TypeMapped"
	}
	return name
}

// fixedWidth returns the payload width of scalar tags with a fixed layout.
func (t Tag) fixedWidth() (int, bool) {
	switch t.Base() {
	case TagBool, TagByte:
		return 1, true
	case TagShort:
		return 2, true
	case TagInt, TagFloat, TagChar:
		return 4, true
	case TagLong, TagDouble, TagDateTime, TagTimeSpan, TagPoint:
		return 8, true
	case TagDecimal, TagGuid:
		return 16, true
	}
	return 0, false
}

// container reports whether the payload of t is a sequence of nested frames.
func (t Tag) container() bool {
	switch t.Base() {
	case TagObject, TagStruct, TagArray, TagEnumerable, TagDictionary, TagTuple, TagKeyValuePair:
		return true
	}
	return false
}

// integral reports whether t carries an integer payload.
func (t Tag) integral() bool {
	switch t.Base() {
	case TagByte, TagShort, TagInt, TagLong, TagEnum:
		return true
	}
	return false
}

// Settings is the header byte preceding every stream.
type Settings byte

// Settings bits.
const (
	SettingCompact  Settings = 1 << 0
	SettingCompress Settings = 1 << 1
	SettingTypeMap  Settings = 1 << 2

	settingsMask = SettingCompact | SettingCompress | SettingTypeMap
)

// Has reports whether all bits of s2 are set.
func (s Settings) Has(s2 Settings) bool { return s&s2 == s2 }

// lengthSize is the width of a frame length field.
func (s Settings) lengthSize() int {
	if s.Has(SettingCompact) {
		return 2
	}
	return 4
}

// lengthLimit is the largest payload a frame may declare.
func (s Settings) lengthLimit() uint64 {
	if s.Has(SettingCompact) {
		return compactLimit
	}
	return defaultLimit
}

// headerSize is the byte count preceding a frame payload.
func (s Settings) headerSize(tag Tag) int {
	n := 1 + s.lengthSize()
	if tag.Base() == TagTypeDescriptorMap {
		return n
	}
	n += 2
	if tag.IsTypeMapped() {
		n += 2
	}
	return n
}
