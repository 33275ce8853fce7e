// Package collections provides generic data structures for efficient data processing.
package collections

// ============================================================================
// Queue - FIFO with head pointer
// ============================================================================

// Queue is a generic FIFO queue with efficient dequeue using head pointer.
// It is not safe for concurrent use; callers guard it with their own lock.
type Queue[T any] struct {
	data []T
	head int
}

// NewQueue creates a new queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		data: make([]T, 0, capacity),
	}
}

// Enqueue adds a value to the queue.
func (q *Queue[T]) Enqueue(v T) {
	q.data = append(q.data, v)
}

// Dequeue removes and returns the first value from the queue.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.head >= len(q.data) {
		return zero, false
	}
	v := q.data[q.head]
	// Drop the reference so dequeued closures can be collected.
	q.data[q.head] = zero
	q.head++
	if q.head == len(q.data) {
		q.data = q.data[:0]
		q.head = 0
	} else if q.head > len(q.data)/2 && q.head > 1024 {
		q.compact()
	}
	return v, true
}

// Peek returns the first value without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.head >= len(q.data) {
		var zero T
		return zero, false
	}
	return q.data[q.head], true
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return q.head >= len(q.data)
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	return len(q.data) - q.head
}

// Clear discards every queued value and returns how many were dropped.
func (q *Queue[T]) Clear() int {
	n := q.Len()
	clear(q.data)
	q.data = q.data[:0]
	q.head = 0
	return n
}

// compact moves remaining elements to the front of the slice.
func (q *Queue[T]) compact() {
	remaining := q.data[q.head:]
	n := copy(q.data, remaining)
	clear(q.data[n:])
	q.data = q.data[:n]
	q.head = 0
}
