package collection

// OrderedMap is a map that remembers first-insertion order of its keys.
// Resolution tables and multibinding contributions are iterated in insertion
// order so that regenerating from the same declarations yields byte-identical
// output.
type OrderedMap[K comparable, V any] struct {
	index map[K]int
	keys  []K
	vals  []V
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{
		index: make(map[K]int),
	}
}

// Set inserts or replaces the value for key. The key keeps its original
// position when replaced.
func (m *OrderedMap[K, V]) Set(key K, val V) {
	if i, ok := m.index[key]; ok {
		m.vals[i] = val
		return
	}

	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.vals[i], true
	}

	var zero V
	return zero, false
}

func (m *OrderedMap[K, V]) Has(key K) bool {
	_, ok := m.index[key]
	return ok
}

func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is shared; callers must
// not mutate it.
func (m *OrderedMap[K, V]) Keys() []K {
	return m.keys
}

// Iter yields entries in insertion order.
func (m *OrderedMap[K, V]) Iter(yield func(K, V) bool) {
	for i, k := range m.keys {
		if !yield(k, m.vals[i]) {
			return
		}
	}
}

// OrderedSet is a set that remembers first-insertion order.
type OrderedSet[T comparable] struct {
	index map[T]struct{}
	elems []T
}

func NewOrderedSet[T comparable]() *OrderedSet[T] {
	return &OrderedSet[T]{
		index: make(map[T]struct{}),
	}
}

// Add inserts v and reports whether it was not already present.
func (s *OrderedSet[T]) Add(v T) bool {
	if _, ok := s.index[v]; ok {
		return false
	}

	s.index[v] = struct{}{}
	s.elems = append(s.elems, v)
	return true
}

func (s *OrderedSet[T]) Has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *OrderedSet[T]) Len() int {
	return len(s.elems)
}

// Elems returns the elements in insertion order. The slice is shared; callers
// must not mutate it.
func (s *OrderedSet[T]) Elems() []T {
	return s.elems
}
