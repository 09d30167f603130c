package skein

// Plugin encodes one concrete type as an opaque leaf payload under its tag.
// Plugins are registered per type on a Registry and take precedence over
// every built-in mapping for that type.
type Plugin interface {
	// Tag is the frame tag written for values handled by the plugin.
	Tag() Tag

	// SizeHint returns the fixed payload size, or zero when variable.
	SizeHint() int

	// Marshal encodes v, which holds a value of the registered type.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes a payload produced by Marshal.
	Unmarshal(data []byte) (any, error)
}

// validPluginTags contains the tags a plugin may claim. Container tags are
// excluded because their payloads must be walkable frame sequences.
var validPluginTags = map[Tag]bool{
	TagBool:     true,
	TagByte:     true,
	TagShort:    true,
	TagInt:      true,
	TagLong:     true,
	TagFloat:    true,
	TagDouble:   true,
	TagDecimal:  true,
	TagString:   true,
	TagChar:     true,
	TagEnum:     true,
	TagGuid:     true,
	TagDateTime: true,
	TagTimeSpan: true,
	TagPoint:    true,
	TagCustom:   true,
}

// IsValidPluginTag returns true if t may be claimed by a plugin.
func IsValidPluginTag(t Tag) bool {
	return validPluginTags[t]
}
