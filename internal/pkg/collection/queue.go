// Package collection provides utility data structures.
package collection

import (
	"container/list"
)

// Queue is a FIFO queue. The zero value is empty and ready to use.
type Queue[T any] struct {
	data list.List
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Push(v T) {
	q.data.PushBack(v)
}

func (q *Queue[T]) Pop() (T, bool) {
	e := q.data.Front()
	if e == nil {
		var zero T
		return zero, false
	}

	q.data.Remove(e)
	return e.Value.(T), true
}

func (q *Queue[T]) Len() int {
	return q.data.Len()
}

// Iter drains the queue, yielding elements in FIFO order. Elements pushed
// while iterating are yielded in the same pass, which lets a worklist grow
// while it is being consumed.
func (q *Queue[T]) Iter(yield func(T) bool) {
	for e := q.data.Front(); e != nil; e = q.data.Front() {
		q.data.Remove(e)

		if !yield(e.Value.(T)) {
			break
		}
	}
}
