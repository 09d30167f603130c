// Package testing provides fixtures and helpers for skein tests.
package testing

import (
	"reflect"
	"testing"

	"github.com/zoobzio/skein"
)

// Widget is the reference flat object.
type Widget struct {
	Id          int32
	IsEnabled   bool
	Description string
}

// Person carries unexported state and references to other people.
type Person struct {
	Name    string
	Friends []*Person
	age     int
	email   string
}

// NewPerson returns a Person with its unexported fields set.
func NewPerson(name string, age int, email string) *Person {
	return &Person{Name: name, age: age, email: email}
}

// Age returns the unexported age.
func (p *Person) Age() int { return p.age }

// Email returns the unexported email.
func (p *Person) Email() string { return p.email }

// Node is a doubly linked list node.
type Node struct {
	Value int
	Next  *Node
	Prev  *Node
}

// NewRing returns the head of a circular list of n nodes valued 0..n-1.
func NewRing(n int) *Node {
	if n <= 0 {
		return nil
	}
	head := &Node{Value: 0}
	cur := head
	for i := 1; i < n; i++ {
		next := &Node{Value: i, Prev: cur}
		cur.Next = next
		cur = next
	}
	cur.Next = head
	head.Prev = cur
	return head
}

// NewChain returns the head of a linear list of n nodes.
func NewChain(n int) *Node {
	var head, tail *Node
	for i := 0; i < n; i++ {
		node := &Node{Value: i, Prev: tail}
		if tail == nil {
			head = node
		} else {
			tail.Next = node
		}
		tail = node
	}
	return head
}

// Animal is implemented by Dog and Cat.
type Animal interface {
	Sound() string
}

// Dog is an Animal.
type Dog struct {
	Name  string
	Breed string
}

func (d *Dog) Sound() string { return "woof" }

// Cat is an Animal.
type Cat struct {
	Name  string
	Lives int8
}

func (c *Cat) Sound() string { return "meow" }

// Zoo holds animals behind interface-typed positions.
type Zoo struct {
	Name    string
	Animals []Animal
	Keeper  Animal
	Extra   any
}

// Inventory exercises maps, slices and multi-dimensional arrays.
type Inventory struct {
	Items map[string]int32
	Tags  []string
	Grid  [2][3]int16
	Owner *Person
}

// Fixtures lists every fixture type.
var Fixtures = []reflect.Type{
	reflect.TypeFor[Widget](),
	reflect.TypeFor[Person](),
	reflect.TypeFor[Node](),
	reflect.TypeFor[Dog](),
	reflect.TypeFor[Cat](),
	reflect.TypeFor[Zoo](),
	reflect.TypeFor[Inventory](),
}

// RegisterFixtures makes every fixture type resolvable by name in r.
func RegisterFixtures(r *skein.Registry) {
	for _, t := range Fixtures {
		r.Register(t)
	}
}

// NewZoo returns a populated Zoo.
func NewZoo() *Zoo {
	rex := &Dog{Name: "Rex", Breed: "Collie"}
	return &Zoo{
		Name:    "City Zoo",
		Animals: []Animal{rex, &Cat{Name: "Tom", Lives: 9}},
		Keeper:  rex,
		Extra:   int32(42),
	}
}

// MustSerialize serializes v or fails the test.
func MustSerialize(tb testing.TB, v any, opts ...skein.Option) []byte {
	tb.Helper()
	data, err := skein.Serialize(v, opts...)
	if err != nil {
		tb.Fatalf("Serialize() error: %v", err)
	}
	return data
}

// RoundTrip serializes v, checks the stream validates and reads it back.
func RoundTrip[T any](tb testing.TB, v T, opts ...skein.Option) T {
	tb.Helper()
	data := MustSerialize(tb, v, opts...)
	if !skein.Validate(data, opts...) {
		tb.Fatalf("Validate() rejected a serialized %T", v)
	}
	var out T
	if err := skein.Deserialize(data, &out, opts...); err != nil {
		tb.Fatalf("Deserialize() error: %v", err)
	}
	return out
}
