package skein

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Char is a single Unicode code point encoded under the Char tag.
type Char rune

// Point is a 2D integer coordinate encoded by the Point plugin.
type Point struct {
	X, Y int32
}

// tupleMarker is implemented by the fixed-arity tuple types.
type tupleMarker interface{ skeinTuple() }

// keyValueMarker is implemented by KeyValue.
type keyValueMarker interface{ skeinKeyValue() }

// Tuple2 is a positional pair.
type Tuple2[T1, T2 any] struct {
	Item1 T1
	Item2 T2
}

// Tuple3 is a positional triple.
type Tuple3[T1, T2, T3 any] struct {
	Item1 T1
	Item2 T2
	Item3 T3
}

// Tuple4 is a positional quadruple.
type Tuple4[T1, T2, T3, T4 any] struct {
	Item1 T1
	Item2 T2
	Item3 T3
	Item4 T4
}

func (Tuple2[T1, T2]) skeinTuple()         {}
func (Tuple3[T1, T2, T3]) skeinTuple()     {}
func (Tuple4[T1, T2, T3, T4]) skeinTuple() {}

// NewTuple2 returns a Tuple2.
func NewTuple2[T1, T2 any](a T1, b T2) Tuple2[T1, T2] {
	return Tuple2[T1, T2]{Item1: a, Item2: b}
}

// NewTuple3 returns a Tuple3.
func NewTuple3[T1, T2, T3 any](a T1, b T2, c T3) Tuple3[T1, T2, T3] {
	return Tuple3[T1, T2, T3]{Item1: a, Item2: b, Item3: c}
}

// NewTuple4 returns a Tuple4.
func NewTuple4[T1, T2, T3, T4 any](a T1, b T2, c T3, d T4) Tuple4[T1, T2, T3, T4] {
	return Tuple4[T1, T2, T3, T4]{Item1: a, Item2: b, Item3: c, Item4: d}
}

// KeyValue is a key/value pair encoded as two nested frames.
type KeyValue[K, V any] struct {
	Key   K
	Value V
}

func (KeyValue[K, V]) skeinKeyValue() {}

var (
	tupleMarkerType    = reflect.TypeFor[tupleMarker]()
	keyValueMarkerType = reflect.TypeFor[keyValueMarker]()

	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	decimalType  = reflect.TypeFor[decimal.Decimal]()
	charType     = reflect.TypeFor[Char]()
	pointType    = reflect.TypeFor[Point]()
	anyType      = reflect.TypeFor[any]()
)
