package queue

import (
	"container/heap"
	"errors"
)

// ErrStaleIndex is returned when an index at or below the last released one
// is pushed.
var ErrStaleIndex = errors.New("index already released")

// Reorder buffers completed items and releases them strictly by ascending
// index, starting at zero. An item becomes ready only after every lower
// index has been released.
type Reorder[T any] struct {
	items orderedHeap[T]
	next  int
}

// NewReorder creates an empty reorder buffer expecting index 0 first.
func NewReorder[T any]() *Reorder[T] {
	return &Reorder[T]{}
}

// Push adds the item completed for index.
func (r *Reorder[T]) Push(index int, item T) error {
	if index < r.next {
		return ErrStaleIndex
	}
	for _, it := range r.items {
		if it.index == index {
			return ErrStaleIndex
		}
	}
	heap.Push(&r.items, &orderedItem[T]{value: item, index: index})
	return nil
}

// PopReady returns the item for the next expected index if it has arrived.
func (r *Reorder[T]) PopReady() (T, bool) {
	var zero T
	if len(r.items) == 0 || r.items[0].index != r.next {
		return zero, false
	}
	it := heap.Pop(&r.items).(*orderedItem[T])
	r.next++
	return it.value, true
}

// Next returns the index that will be released next.
func (r *Reorder[T]) Next() int {
	return r.next
}

// Len returns the number of held items.
func (r *Reorder[T]) Len() int {
	return len(r.items)
}

// Reset drops all held items and expects index 0 again.
func (r *Reorder[T]) Reset() {
	r.items = nil
	r.next = 0
}

type orderedItem[T any] struct {
	value T
	index int // chunk index
	pos   int // position in the heap
}

type orderedHeap[T any] []*orderedItem[T]

func (h orderedHeap[T]) Len() int { return len(h) }

func (h orderedHeap[T]) Less(i, j int) bool {
	return h[i].index < h[j].index
}

func (h orderedHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *orderedHeap[T]) Push(x any) {
	item := x.(*orderedItem[T])
	item.pos = len(*h)
	*h = append(*h, item)
}

func (h *orderedHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.pos = -1
	*h = old[:n-1]
	return item
}
