package skein

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type holder struct {
	Items []any
}

type catV1 struct {
	Name string
}

type catV2 struct {
	Name  string
	Owner string
}

type recordV1 struct {
	A int16
	B string
	C bool
	D float32
}

type recordWide struct {
	A int64
	B string
	C bool
	D float64
}

type recordTrimmed struct {
	A int16
	B string
}

type recordExtended struct {
	A int16
	B string
	C bool
	D float32
	E string
}

type celsius struct {
	deg float64
}

func (c celsius) MarshalSkein() ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(c.deg*100)), nil
}

func (c *celsius) UnmarshalSkein(data []byte) error {
	c.deg = float64(binary.LittleEndian.Uint64(data)) / 100
	return nil
}

type reading struct {
	Temp celsius
	Peak *celsius
}

func roundTrip[T any](t *testing.T, in T, opts ...Option) T {
	t.Helper()
	data, err := Serialize(in, opts...)
	require.NoError(t, err)
	require.True(t, Validate(data, opts...), "Validate() rejected serialized %T", in)
	var out T
	require.NoError(t, Deserialize(data, &out, opts...))
	return out
}

func TestDeserialize_WidgetBytes(t *testing.T) {
	data := []byte{
		0x01,
		0x0C, 0x19, 0x00, 0x00, 0x00,
		0x09, 0x05, 0x00, 0xFF, 0xFF, 0x04, 'T', 'e', 's', 't',
		0x04, 0x04, 0x00, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x01, 0x00, 0xFF, 0xFF, 0x01,
	}
	var out *widget
	require.NoError(t, Deserialize(data, &out))
	require.Equal(t, &widget{Id: 1, IsEnabled: true, Description: "Test"}, out)
}

func TestDeserialize_Cycle(t *testing.T) {
	n := &tree{V: 1}
	n.L = n
	n.R = &tree{V: 2, L: n}

	out := roundTrip(t, n)
	require.Same(t, out, out.L)
	require.Same(t, out, out.R.L)
	require.Equal(t, int32(2), out.R.V)
}

func TestDeserialize_SharedSlicesAndMaps(t *testing.T) {
	type shared struct {
		A, B []int32
		M, N map[string]int32
	}
	s := []int32{1, 2}
	m := map[string]int32{"k": 1}
	out := roundTrip(t, &shared{A: s, B: s, M: m, N: m})

	out.A[0] = 9
	require.Equal(t, int32(9), out.B[0])
	out.M["new"] = 5
	require.Equal(t, int32(5), out.N["new"])
}

func TestDeserialize_Interfaces(t *testing.T) {
	in := &holder{Items: []any{
		int32(1),
		"x",
		nil,
		&widget{Id: 2},
		[]any{int64(3)},
		map[string]any{"k": true},
	}}
	out := roundTrip(t, in)

	require.Len(t, out.Items, 6)
	require.Equal(t, int32(1), out.Items[0])
	require.Equal(t, "x", out.Items[1])
	require.Nil(t, out.Items[2])
	require.Equal(t, &widget{Id: 2}, out.Items[3])
	require.Equal(t, []any{int64(3)}, out.Items[4])
	require.Equal(t, map[string]any{"k": true}, out.Items[5])
}

func TestDeserialize_RootInterface(t *testing.T) {
	data, err := Serialize(int32(5))
	require.NoError(t, err)
	var v any
	require.NoError(t, Deserialize(data, &v))
	require.Equal(t, int32(5), v)

	// Object frames need a type descriptor to fill an interface.
	data, err = Serialize(&widget{Id: 3})
	require.NoError(t, err)
	require.ErrorIs(t, Deserialize(data, &v), ErrFormat)

	data, err = Serialize(&widget{Id: 3}, WithEmbedTypes())
	require.NoError(t, err)
	require.NoError(t, Deserialize(data, &v))
	require.Equal(t, &widget{Id: 3}, v)
}

func TestDeserialize_UnknownType(t *testing.T) {
	data, err := Serialize(&holder{Items: []any{&catV1{Name: "Tom"}}}, WithRegistry(NewRegistry()))
	require.NoError(t, err)

	var out *holder
	err = Deserialize(data, &out, WithRegistry(NewRegistry()))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestDeserialize_TypeMap(t *testing.T) {
	data, err := Serialize(&holder{Items: []any{&catV1{Name: "Tom"}}})
	require.NoError(t, err)

	var out *holder
	require.NoError(t, Deserialize(data, &out,
		WithTypeMap(reflect.TypeFor[*catV1](), reflect.TypeFor[*catV2]())))
	cat, ok := out.Items[0].(*catV2)
	require.True(t, ok, "got %T", out.Items[0])
	require.Equal(t, &catV2{Name: "Tom"}, cat)
}

func TestDeserialize_TypeMapElem(t *testing.T) {
	data, err := Serialize(&holder{Items: []any{&catV1{Name: "Tom"}, catV1{Name: "Kit"}}})
	require.NoError(t, err)

	var out *holder
	require.NoError(t, Deserialize(data, &out,
		WithTypeMap(reflect.TypeFor[catV1](), reflect.TypeFor[catV2]())))
	require.Equal(t, &catV2{Name: "Tom"}, out.Items[0])
	require.Equal(t, catV2{Name: "Kit"}, out.Items[1])
}

func TestDeserialize_Factory(t *testing.T) {
	type settingsV0 struct {
		A int32
	}
	type settings struct {
		A int32
		Z string
	}
	data, err := Serialize(&settingsV0{A: 4})
	require.NoError(t, err)

	var out *settings
	require.NoError(t, Deserialize(data, &out,
		WithFactory(reflect.TypeFor[settings](), func() any { return settings{Z: "default"} })))
	require.Equal(t, &settings{A: 4, Z: "default"}, out)
}

func TestDeserialize_Drift(t *testing.T) {
	data, err := Serialize(&recordV1{A: -5, B: "b", C: true, D: 2.5})
	require.NoError(t, err)

	var wide *recordWide
	require.NoError(t, Deserialize(data, &wide))
	require.Equal(t, &recordWide{A: -5, B: "b", C: true, D: 2.5}, wide)

	var trimmed *recordTrimmed
	require.NoError(t, Deserialize(data, &trimmed))
	require.Equal(t, &recordTrimmed{A: -5, B: "b"}, trimmed)

	var extended *recordExtended
	require.NoError(t, Deserialize(data, &extended))
	require.Equal(t, &recordExtended{A: -5, B: "b", C: true, D: 2.5}, extended)

	var value recordV1
	require.NoError(t, Deserialize(data, &value))
	require.Equal(t, int16(-5), value.A)
}

func TestDeserialize_MidOrderInsertShiftsFields(t *testing.T) {
	type before struct {
		A int32
		C int32
	}
	type sameTags struct {
		A, B, C int32
	}
	type otherTags struct {
		A int32
		B string
		C int32
	}
	data, err := Serialize(&before{A: 1, C: 3})
	require.NoError(t, err)

	var shifted *sameTags
	require.NoError(t, Deserialize(data, &shifted))
	require.Equal(t, &sameTags{A: 1, B: 3}, shifted)

	var mismatched *otherTags
	var fe *FormatError
	require.ErrorAs(t, Deserialize(data, &mismatched), &fe)
	require.Equal(t, "B", fe.Path)
}

func TestDeserialize_StructIntoPointer(t *testing.T) {
	data, err := Serialize(widget{Id: 8})
	require.NoError(t, err)
	require.Equal(t, "Struct", inspect(t, data).Root.Tag)

	var out *widget
	require.NoError(t, Deserialize(data, &out))
	require.Equal(t, int32(8), out.Id)
}

func TestDeserialize_DepthTruncate(t *testing.T) {
	data, err := Serialize(&tree{V: 1, L: &tree{V: 2, L: &tree{V: 3}}})
	require.NoError(t, err)

	var out *tree
	require.NoError(t, Deserialize(data, &out, WithMaxDepth(1)))
	require.Equal(t, int32(1), out.V)
	require.Nil(t, out.L.L)

	require.ErrorIs(t, Deserialize(data, &out, WithMaxDepth(1), WithDepthPolicy(DepthFail)), ErrDepthExceeded)
}

func TestDeserialize_Serializable(t *testing.T) {
	in := &reading{Temp: celsius{deg: 21.5}, Peak: &celsius{deg: 30.25}}
	data, err := Serialize(in)
	require.NoError(t, err)
	require.Equal(t, "Custom", inspect(t, data).Root.Children[1].Tag)

	var out *reading
	require.NoError(t, Deserialize(data, &out))
	require.Equal(t, 21.5, out.Temp.deg)
	require.Equal(t, 30.25, out.Peak.deg)
}

func TestDeserialize_TuplesAndPairs(t *testing.T) {
	type pairs struct {
		T  Tuple3[int32, string, bool]
		KV KeyValue[string, int32]
	}
	in := &pairs{T: NewTuple3(int32(1), "two", true), KV: KeyValue[string, int32]{Key: "k", Value: 9}}
	data, err := Serialize(in)
	require.NoError(t, err)

	doc := inspect(t, data)
	require.Equal(t, "KeyValuePair", doc.Root.Children[0].Tag)
	require.Equal(t, "Tuple", doc.Root.Children[1].Tag)

	var out *pairs
	require.NoError(t, Deserialize(data, &out))
	require.Equal(t, in, out)
}

func TestDeserialize_Collections(t *testing.T) {
	type bag struct {
		Set   *Set[string]
		Queue *Queue[int32]
		List  *List[*widget]
	}
	w := &widget{Id: 1}
	in := &bag{
		Set:   NewSet("a", "b"),
		Queue: NewQueue[int32](4, 5),
		List:  NewList(w, w, nil),
	}
	out := roundTrip(t, in)

	require.True(t, out.Set.Contains("a", "b"))
	front, _ := out.Queue.Dequeue()
	require.Equal(t, int32(4), front)
	require.Equal(t, 3, out.List.Len())
	require.Same(t, out.List.At(0), out.List.At(1))
	require.Nil(t, out.List.At(2))
}

func TestDeserialize_EnumerableIntoSlice(t *testing.T) {
	data, err := Serialize(NewList[int32](1, 2, 3))
	require.NoError(t, err)

	var out []int32
	require.NoError(t, Deserialize(data, &out))
	require.Equal(t, []int32{1, 2, 3}, out)

	var generic any
	require.NoError(t, Deserialize(data, &generic))
	require.Equal(t, []any{int32(1), int32(2), int32(3)}, generic.(*List[any]).Items())
}

func TestDeserialize_InterfaceKeyedMap(t *testing.T) {
	in := map[any]any{"a": int32(1), int32(2): "b", true: nil}
	out := roundTrip(t, in)
	require.Equal(t, in, out)
}

func TestDeserialize_Compressed(t *testing.T) {
	in := &holder{Items: []any{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}}
	data, err := Serialize(in, WithCompression(nil))
	require.NoError(t, err)
	require.True(t, Settings(data[0]).Has(SettingCompress))

	// The settings byte selects decompression on read.
	var out *holder
	require.NoError(t, Deserialize(data, &out))
	require.Equal(t, in, out)

	var bad *holder
	corrupt := append([]byte{data[0]}, 0x00, 0x01, 0x02)
	require.ErrorIs(t, Deserialize(corrupt, &bad), ErrCompression)
}

func TestDeserialize_InvalidTarget(t *testing.T) {
	data, err := Serialize(&widget{})
	require.NoError(t, err)

	require.ErrorIs(t, Deserialize(data, widget{}), ErrInvalidTarget)
	require.ErrorIs(t, Deserialize(data, (*widget)(nil)), ErrInvalidTarget)
	require.ErrorIs(t, Deserialize(data, nil), ErrInvalidTarget)
}

func TestDeserialize_Malformed(t *testing.T) {
	valid, err := Serialize(&widget{Id: 1, Description: "d"})
	require.NoError(t, err)

	tests := map[string][]byte{
		"empty":          {},
		"settings bits":  {0x08},
		"no root":        {0x00},
		"trailing byte":  append(append([]byte{}, valid...), 0x00),
		"truncated":      valid[:len(valid)-1],
		"unknown tag":    {0x00, 0x30, 0, 0, 0, 0, 0xFF, 0xFF},
		"null with body": {0x00, 0x84, 1, 0, 0, 0, 0xFF, 0xFF, 0x00},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			var out *widget
			require.ErrorIs(t, Deserialize(data, &out), ErrFormat)
		})
	}
}

func TestDeserialize_TypeMismatchReportsPath(t *testing.T) {
	data, err := Serialize(&struct{ A string }{A: "x"})
	require.NoError(t, err)

	var out *struct{ A int32 }
	err = Deserialize(data, &out)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "A", fe.Path)
}
