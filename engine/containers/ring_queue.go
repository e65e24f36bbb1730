package containers

import "errors"

var ErrOutOfBounds = errors.New("index out of bounds")

// RingQueue is a fixed capacity history backed by a circular buffer. Pushing
// onto a full queue evicts the oldest element.
type RingQueue[T any] struct {
	data       []T
	size       int
	writeIndex int
	count      int
}

// Create a new RingQueue
func NewRingQueue[T any](size int) *RingQueue[T] {
	return &RingQueue[T]{
		data: make([]T, size),
		size: size,
	}
}

// Push adds an element, evicting the oldest one when the queue is full.
func (rq *RingQueue[T]) Push(value T) {
	if rq.size == 0 {
		return
	}
	rq.data[rq.writeIndex] = value
	rq.writeIndex = (rq.writeIndex + 1) % rq.size
	if rq.count < rq.size {
		rq.count++
	}
}

// Recent returns the i-th most recently added element, 0 being the newest.
func (rq *RingQueue[T]) Recent(i int) (T, error) {
	if i < 0 || i >= rq.count {
		var zero T
		return zero, ErrOutOfBounds
	}
	idx := (rq.writeIndex - 1 - i + 2*rq.size) % rq.size
	return rq.data[idx], nil
}

// Fill overwrites the queue so that it holds Cap() copies of value.
func (rq *RingQueue[T]) Fill(value T) {
	for i := range rq.data {
		rq.data[i] = value
	}
	rq.writeIndex = 0
	rq.count = rq.size
}

// Clear drops every element.
func (rq *RingQueue[T]) Clear() {
	clear(rq.data)
	rq.writeIndex = 0
	rq.count = 0
}

func (rq *RingQueue[T]) Len() int {
	return rq.count
}

func (rq *RingQueue[T]) Cap() int {
	return rq.size
}

// IsEmpty checks if the queue is empty
func (rq *RingQueue[T]) IsEmpty() bool {
	return rq.count == 0
}

// IsFull checks if the queue is full
func (rq *RingQueue[T]) IsFull() bool {
	return rq.count == rq.size
}
