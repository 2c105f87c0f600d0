package datastructure

import (
	"errors"
	"math"
)

type PriorityQueueNode[T comparable] struct {
	rank    float64
	item    T
	itemPos int
}

func (p *PriorityQueueNode[T]) GetItem() T {
	return p.item
}

func (p *PriorityQueueNode[T]) GetRank() float64 {
	return p.rank
}

func (p *PriorityQueueNode[T]) SetRank(rank float64) {
	p.rank = rank
}

func (p *PriorityQueueNode[T]) SetPos(i int) {
	p.itemPos = i
}

func (p *PriorityQueueNode[T]) GetPos() int {
	return p.itemPos
}

// InHeap reports whether the node is currently queued.
func (p *PriorityQueueNode[T]) InHeap() bool {
	return p.itemPos >= 0
}

func NewPriorityQueueNode[T comparable](rank float64, item T) *PriorityQueueNode[T] {
	return &PriorityQueueNode[T]{rank: rank, item: item, itemPos: -1}
}

// MinHeap is a d-ary min heap of nodes that remember their position.
type MinHeap[T comparable] struct {
	heap []*PriorityQueueNode[T]
	d    int
}

func NewFourAryHeap[T comparable]() *MinHeap[T] {
	return NewdAryHeap[T](4)
}

func NewdAryHeap[T comparable](d int) *MinHeap[T] {
	return &MinHeap[T]{
		heap: make([]*PriorityQueueNode[T], 0),
		d:    d,
	}
}

func (h *MinHeap[T]) Preallocate(size int) {
	h.heap = make([]*PriorityQueueNode[T], 0, size)
}

func (h *MinHeap[T]) parent(index int) int {
	return (index - 1) / h.d
}

// heapifyUp swaps index with its parent while it ranks lower. O(log n).
func (h *MinHeap[T]) heapifyUp(index int) {
	for index != 0 && h.heap[index].rank < h.heap[h.parent(index)].rank {
		h.Swap(index, h.parent(index))
		index = h.parent(index)
	}
}

// heapifyDown swaps index with its lowest ranked child while that child ranks lower. O(d log n).
func (h *MinHeap[T]) heapifyDown(index int) {
	for {
		leftMostChild := index*h.d + 1
		if leftMostChild >= len(h.heap) {
			return
		}

		sentinel := min(leftMostChild+h.d, len(h.heap))
		smallest := leftMostChild
		for i := leftMostChild + 1; i < sentinel; i++ {
			if h.heap[i].rank < h.heap[smallest].rank {
				smallest = i
			}
		}

		if h.heap[smallest].rank >= h.heap[index].rank {
			return
		}
		h.Swap(index, smallest)
		index = smallest
	}
}

func (h *MinHeap[T]) Swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]

	h.heap[i].SetPos(i)
	h.heap[j].SetPos(j)
}

func (h *MinHeap[T]) IsEmpty() bool {
	return len(h.heap) == 0
}

func (h *MinHeap[T]) Size() int {
	return len(h.heap)
}

// GetMinrank returns +Inf on an empty heap.
func (h *MinHeap[T]) GetMinrank() float64 {
	if h.IsEmpty() {
		return math.Inf(1)
	}
	return h.heap[0].rank
}

func (h *MinHeap[T]) Insert(key *PriorityQueueNode[T]) {
	h.heap = append(h.heap, key)
	index := h.Size() - 1
	key.SetPos(index)
	h.heapifyUp(index)
}

func (h *MinHeap[T]) ExtractMin() (*PriorityQueueNode[T], error) {
	if h.IsEmpty() {
		return nil, errors.New("heap is empty")
	}
	root := h.heap[0]

	h.Swap(0, h.Size()-1)
	h.heap = h.heap[:h.Size()-1]
	root.SetPos(-1)
	if len(h.heap) > 0 {
		h.heapifyDown(0)
	}
	return root, nil
}

// Update moves a queued node to its new rank in either direction.
func (h *MinHeap[T]) Update(item *PriorityQueueNode[T], rank float64) error {
	itemPos := item.GetPos()
	if itemPos < 0 || itemPos >= h.Size() {
		return errors.New("item is not in the heap")
	}
	old := item.rank
	item.SetRank(rank)
	if rank < old {
		h.heapifyUp(itemPos)
	} else {
		h.heapifyDown(itemPos)
	}
	return nil
}

// Remove takes a queued node out of the heap.
func (h *MinHeap[T]) Remove(item *PriorityQueueNode[T]) error {
	itemPos := item.GetPos()
	if itemPos < 0 || itemPos >= h.Size() {
		return errors.New("item is not in the heap")
	}
	last := h.Size() - 1
	h.Swap(itemPos, last)
	h.heap = h.heap[:last]
	item.SetPos(-1)
	if itemPos < last {
		h.heapifyDown(itemPos)
		h.heapifyUp(itemPos)
	}
	return nil
}
