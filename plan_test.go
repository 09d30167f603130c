package skein

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/sentinel"
)

type scannedRecord struct {
	Title  string `json:"title"`
	Draft  string `skein:"-"`
	Rating int32  `skein:"since=2" json:"rating"`
	secret []byte `skein:"since=3"`
}

type codecScanned struct {
	Label string `json:"label"`
}

func TestPlan_UsesScannedMetadata(t *testing.T) {
	sentinel.Scan[scannedRecord]()
	md, ok := sentinel.Lookup("scannedRecord")
	require.True(t, ok)

	p := buildPlan(reflect.TypeFor[scannedRecord]())
	require.Len(t, p.fields, 4)

	byName := make(map[string]fieldPlan)
	var order []string
	for _, fp := range p.fields {
		byName[fp.meta.Name] = fp
		order = append(order, fp.meta.Name)
	}
	require.Equal(t, []string{"Draft", "Rating", "Title", "secret"}, order)

	// Exported fields carry sentinel's view, including its common tags.
	for _, fm := range md.Fields {
		require.Equal(t, fm, byName[fm.Name].meta)
	}
	require.Equal(t, "title", byName["Title"].meta.Tags["json"])

	require.True(t, byName["Draft"].omit)
	require.Equal(t, 2, byName["Rating"].since)
	require.Equal(t, sentinel.KindScalar, byName["Rating"].meta.Kind)

	// Unexported fields are read through reflection.
	secret := byName["secret"]
	require.Equal(t, sentinel.KindSlice, secret.meta.Kind)
	require.Equal(t, 3, secret.since)
	require.Equal(t, []int{3}, secret.meta.Index)
}

func TestPlan_MatchesScannedAndReflectedPlans(t *testing.T) {
	typ := reflect.TypeFor[scannedRecord]()
	sentinel.Scan[scannedRecord]()
	scanned := buildPlan(typ)

	require.Len(t, scanned.fields, typ.NumField())
	for _, fp := range scanned.fields {
		rf := reflectField(typ.Field(fp.meta.Index[0]))
		require.Equal(t, rf.Name, fp.meta.Name)
		require.Equal(t, rf.Kind, fp.meta.Kind)
		require.Equal(t, rf.ReflectType, fp.meta.ReflectType)
		require.Equal(t, rf.Tags[tagKey], fp.meta.Tags[tagKey])
	}
}

func TestMatchMetadata(t *testing.T) {
	typ := reflect.TypeFor[scannedRecord]()
	field := sentinel.FieldMetadata{
		Name:        "Title",
		ReflectType: reflect.TypeFor[string](),
		Index:       []int{0},
		Kind:        sentinel.KindScalar,
	}

	got := matchMetadata(typ, sentinel.Metadata{PackageName: typ.PkgPath(), Fields: []sentinel.FieldMetadata{field}})
	require.Equal(t, map[int]sentinel.FieldMetadata{0: field}, got)

	tests := map[string]sentinel.Metadata{
		"other package": {PackageName: "example.com/other", Fields: []sentinel.FieldMetadata{field}},
		"other name": {PackageName: typ.PkgPath(), Fields: []sentinel.FieldMetadata{
			{Name: "Heading", ReflectType: field.ReflectType, Index: []int{0}},
		}},
		"other type": {PackageName: typ.PkgPath(), Fields: []sentinel.FieldMetadata{
			{Name: "Title", ReflectType: reflect.TypeFor[int](), Index: []int{0}},
		}},
		"index out of range": {PackageName: typ.PkgPath(), Fields: []sentinel.FieldMetadata{
			{Name: "Title", ReflectType: field.ReflectType, Index: []int{9}},
		}},
	}
	for name, md := range tests {
		t.Run(name, func(t *testing.T) {
			require.Nil(t, matchMetadata(typ, md))
		})
	}
}

func TestPlan_SkipsUnencodableFields(t *testing.T) {
	type handles struct {
		C chan int
		F func()
		N int32
		P unsafe.Pointer
	}
	p := buildPlan(reflect.TypeFor[handles]())

	skipped := make(map[string]bool)
	for _, fp := range p.fields {
		skipped[fp.meta.Name] = fp.skip
	}
	require.Equal(t, map[string]bool{"C": true, "F": true, "N": false, "P": true}, skipped)
}

func TestNewCodec_ScansRootType(t *testing.T) {
	_, err := NewCodec[codecScanned]()
	require.NoError(t, err)

	md, ok := sentinel.Lookup("codecScanned")
	require.True(t, ok)
	require.Equal(t, reflect.TypeFor[codecScanned]().PkgPath(), md.PackageName)
	require.Equal(t, "label", md.Fields[0].Tags["json"])
}
