package skein

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Collection is implemented by container types encoded element by element
// under the IEnumerable tag. Implementations must be pointer types whose zero
// value is ready for Insert.
type Collection interface {
	// Len returns the number of elements.
	Len() int

	// Range visits elements in enumeration order until fn returns false.
	Range(fn func(v any) bool)

	// Insert adds v, which holds a value of ElemType or nil.
	Insert(v any) error

	// ElemType returns the static element type.
	ElemType() reflect.Type
}

// LIFO marks collections that enumerate newest-first. Their elements are
// written in reverse so that re-inserting them in stream order restores the
// original enumeration.
type LIFO interface {
	Collection
	LIFO()
}

var (
	collectionType = reflect.TypeFor[Collection]()
	lifoType       = reflect.TypeFor[LIFO]()
)

func isCollection(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Implements(collectionType)
}

func isLIFO(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Implements(lifoType)
}

// elemOf converts v into T, treating nil as the zero value.
func elemOf[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	e, ok := v.(T)
	if !ok {
		return zero, errors.Newf("collection element %T is not %s", v, reflect.TypeFor[T]())
	}
	return e, nil
}

// List is an ordered, growable sequence.
type List[T any] struct {
	items []T
}

// NewList returns a list holding items.
func NewList[T any](items ...T) *List[T] {
	l := &List[T]{}
	l.Add(items...)
	return l
}

// Add appends items.
func (l *List[T]) Add(items ...T) { l.items = append(l.items, items...) }

// At returns the element at index i.
func (l *List[T]) At(i int) T { return l.items[i] }

// Items returns a copy of the elements.
func (l *List[T]) Items() []T { return append([]T(nil), l.items...) }

// Len returns the number of elements.
func (l *List[T]) Len() int { return len(l.items) }

// Range visits elements in insertion order.
func (l *List[T]) Range(fn func(v any) bool) {
	for _, it := range l.items {
		if !fn(it) {
			return
		}
	}
}

// Insert appends v. It implements Collection.
func (l *List[T]) Insert(v any) error {
	e, err := elemOf[T](v)
	if err != nil {
		return err
	}
	l.items = append(l.items, e)
	return nil
}

// ElemType returns T.
func (l *List[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }

// Queue is a first-in first-out collection.
type Queue[T any] struct {
	items []T
}

// NewQueue returns a queue with items enqueued in order.
func NewQueue[T any](items ...T) *Queue[T] {
	q := &Queue[T]{}
	for _, it := range items {
		q.Enqueue(it)
	}
	return q
}

// Enqueue adds v at the back.
func (q *Queue[T]) Enqueue(v T) { q.items = append(q.items, v) }

// Dequeue removes the front element.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	return q.items[0], true
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int { return len(q.items) }

// Range visits elements front to back.
func (q *Queue[T]) Range(fn func(v any) bool) {
	for _, it := range q.items {
		if !fn(it) {
			return
		}
	}
}

// Insert enqueues v. It implements Collection.
func (q *Queue[T]) Insert(v any) error {
	e, err := elemOf[T](v)
	if err != nil {
		return err
	}
	q.Enqueue(e)
	return nil
}

// ElemType returns T.
func (q *Queue[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }

// Stack is a last-in first-out collection. It enumerates from the top.
type Stack[T any] struct {
	items []T // top is the last element
}

// NewStack returns a stack with items pushed in order.
func NewStack[T any](items ...T) *Stack[T] {
	s := &Stack[T]{}
	for _, it := range items {
		s.Push(it)
	}
	return s
}

// Push places v on top.
func (s *Stack[T]) Push(v T) { s.items = append(s.items, v) }

// Pop removes the top element.
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	v := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	return v, true
}

// Peek returns the top element without removing it.
func (s *Stack[T]) Peek() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// Len returns the number of stacked elements.
func (s *Stack[T]) Len() int { return len(s.items) }

// Range visits elements top to bottom.
func (s *Stack[T]) Range(fn func(v any) bool) {
	for i := len(s.items) - 1; i >= 0; i-- {
		if !fn(s.items[i]) {
			return
		}
	}
}

// Insert pushes v. It implements Collection.
func (s *Stack[T]) Insert(v any) error {
	e, err := elemOf[T](v)
	if err != nil {
		return err
	}
	s.Push(e)
	return nil
}

// ElemType returns T.
func (s *Stack[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }

// LIFO implements LIFO.
func (s *Stack[T]) LIFO() {}

// Set is an unordered collection of distinct elements.
type Set[T comparable] struct {
	items map[T]struct{}
}

// NewSet returns a set holding elements.
func NewSet[T comparable](elements ...T) *Set[T] {
	s := &Set[T]{}
	s.Add(elements...)
	return s
}

// Add inserts elements, ignoring duplicates.
func (s *Set[T]) Add(elements ...T) {
	if s.items == nil {
		s.items = make(map[T]struct{}, len(elements))
	}
	for _, e := range elements {
		s.items[e] = struct{}{}
	}
}

// Contains reports whether every element is present.
func (s *Set[T]) Contains(elements ...T) bool {
	for _, e := range elements {
		if _, ok := s.items[e]; !ok {
			return false
		}
	}
	return true
}

// Remove deletes elements.
func (s *Set[T]) Remove(elements ...T) {
	for _, e := range elements {
		delete(s.items, e)
	}
}

// Len returns the number of distinct elements.
func (s *Set[T]) Len() int { return len(s.items) }

// Range visits elements in unspecified order.
func (s *Set[T]) Range(fn func(v any) bool) {
	for e := range s.items {
		if !fn(e) {
			return
		}
	}
}

// Insert adds v. Duplicates are ignored.
func (s *Set[T]) Insert(v any) error {
	e, err := elemOf[T](v)
	if err != nil {
		return err
	}
	s.Add(e)
	return nil
}

// ElemType returns T.
func (s *Set[T]) ElemType() reflect.Type { return reflect.TypeFor[T]() }

var (
	_ Collection = (*List[int])(nil)
	_ Collection = (*Queue[int])(nil)
	_ LIFO       = (*Stack[int])(nil)
	_ Collection = (*Set[int])(nil)
)
