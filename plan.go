package skein

import (
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/zoobzio/sentinel"
)

func init() {
	sentinel.Tag(tagKey)
}

// tagKey is the struct tag read for field directives:
//
//	`skein:"-"`        never serialize the field
//	`skein:"since=3"`  serialize only when Options.Version >= 3
const tagKey = "skein"

// fieldPlan describes one serializable struct field.
type fieldPlan struct {
	meta  sentinel.FieldMetadata
	tag   reflect.StructTag
	skip  bool // never encodable: func, chan, unsafe.Pointer
	omit  bool // `skein:"-"`
	since int
}

// typePlan lists the fields of a struct type in wire order.
type typePlan struct {
	fields []fieldPlan
}

var (
	plans   = make(map[reflect.Type]*typePlan)
	plansMu sync.RWMutex
)

// planFor returns the cached field plan for struct type t.
func planFor(t reflect.Type) *typePlan {
	plansMu.RLock()
	p, ok := plans[t]
	plansMu.RUnlock()
	if ok {
		return p
	}

	p = buildPlan(t)

	plansMu.Lock()
	defer plansMu.Unlock()
	if cached, ok := plans[t]; ok {
		return cached
	}
	plans[t] = p
	return p
}

// scanType records sentinel metadata for T and every struct it reaches in
// the same module. Non-struct types are ignored.
func scanType[T any]() {
	_, _ = sentinel.TryScan[T]()
}

// buildPlan scans t. Exported fields come from sentinel metadata when it has
// been recorded for t; unexported fields and unscanned types are read through
// reflection. Tuples and key/value pairs keep declaration order; every other
// struct is ordered by field name so that both sides agree regardless of
// declaration order.
func buildPlan(t reflect.Type) *typePlan {
	scanned := scannedFields(t)
	p := &typePlan{fields: make([]fieldPlan, 0, t.NumField())}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		meta, ok := scanned[i]
		if !ok {
			meta = reflectField(sf)
		}
		fp := fieldPlan{
			meta: meta,
			tag:  sf.Tag,
			skip: unencodable(meta),
		}
		directives := parseDirectives(meta.Tags[tagKey])
		if _, ok := directives["-"]; ok {
			fp.omit = true
		}
		if v, ok := directives["since"]; ok {
			fp.since, _ = strconv.Atoi(v)
		}
		p.fields = append(p.fields, fp)
	}
	positional := t.Implements(tupleMarkerType) || t.Implements(keyValueMarkerType)
	if !positional {
		slices.SortStableFunc(p.fields, func(a, b fieldPlan) int {
			return strings.Compare(a.meta.Name, b.meta.Name)
		})
	}
	return p
}

// scannedFields returns sentinel's field metadata for t keyed by field index.
// Sentinel caches by bare type name, so the entry is only trusted when its
// package and every field agree with t.
func scannedFields(t reflect.Type) map[int]sentinel.FieldMetadata {
	if t.Name() == "" {
		return nil
	}
	md, ok := sentinel.Lookup(t.Name())
	if !ok {
		return nil
	}
	return matchMetadata(t, md)
}

func matchMetadata(t reflect.Type, md sentinel.Metadata) map[int]sentinel.FieldMetadata {
	if md.PackageName != t.PkgPath() {
		return nil
	}
	out := make(map[int]sentinel.FieldMetadata, len(md.Fields))
	for _, fm := range md.Fields {
		if len(fm.Index) != 1 || fm.Index[0] >= t.NumField() {
			return nil
		}
		sf := t.Field(fm.Index[0])
		if sf.Name != fm.Name || sf.Type != fm.ReflectType {
			return nil
		}
		out[fm.Index[0]] = fm
	}
	return out
}

// reflectField builds metadata for a field sentinel does not report.
func reflectField(sf reflect.StructField) sentinel.FieldMetadata {
	fm := sentinel.FieldMetadata{
		Name:        sf.Name,
		Type:        sf.Type.String(),
		ReflectType: sf.Type,
		Index:       sf.Index,
		Kind:        fieldKind(sf.Type),
	}
	if raw, ok := sf.Tag.Lookup(tagKey); ok {
		fm.Tags = map[string]string{tagKey: raw}
	}
	return fm
}

func fieldKind(t reflect.Type) sentinel.FieldKind {
	switch t.Kind() {
	case reflect.Pointer:
		return sentinel.KindPointer
	case reflect.Slice, reflect.Array:
		return sentinel.KindSlice
	case reflect.Struct:
		return sentinel.KindStruct
	case reflect.Map:
		return sentinel.KindMap
	case reflect.Interface:
		return sentinel.KindInterface
	}
	return sentinel.KindScalar
}

// unencodable reports scalar-kind fields no tag can carry.
func unencodable(fm sentinel.FieldMetadata) bool {
	if fm.Kind != sentinel.KindScalar {
		return false
	}
	switch fm.ReflectType.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// parseDirectives splits a skein tag value into directives.
func parseDirectives(raw string) map[string]string {
	tags := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		tags[k] = v
	}
	return tags
}

// included reports whether the field at path takes part in the stream.
// Writer and reader apply the same rule, so their positional field order
// stays aligned.
func (fp *fieldPlan) included(path string, o *Options) bool {
	if fp.skip {
		return false
	}
	if !o.DisableIgnoreAttributes {
		if fp.omit {
			return false
		}
		if lo.ContainsBy(o.IgnoreTags, fp.hasTag) {
			return false
		}
	}
	if o.Version > 0 && fp.since > o.Version {
		return false
	}
	if len(o.Ignore) > 0 {
		clean := stripIndices(path)
		if lo.Contains(o.Ignore, fp.meta.Name) || lo.Contains(o.Ignore, clean) {
			return false
		}
	}
	return true
}

// hasTag matches an ignore-tag entry: "key" matches on presence,
// "key:value" matches the first comma-separated value.
func (fp *fieldPlan) hasTag(entry string) bool {
	key, want, hasValue := strings.Cut(entry, ":")
	v, ok := fp.tag.Lookup(key)
	if !ok {
		return false
	}
	if !hasValue {
		return true
	}
	first, _, _ := strings.Cut(v, ",")
	return first == want
}

// childPath joins a field name onto a parent path.
func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// indexPath appends an element index to a path.
func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// stripIndices removes element index segments so that "Items[2].Name"
// matches the ignore path "Items.Name".
func stripIndices(path string) string {
	if !strings.Contains(path, "[") {
		return path
	}
	var b strings.Builder
	depth := 0
	for _, r := range path {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
