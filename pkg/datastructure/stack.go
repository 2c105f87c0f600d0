package datastructure

type Stack[T any] struct {
	items []T
}

func NewStack[T any]() *Stack[T] {
	return &Stack[T]{items: make([]T, 0)}
}

func (s *Stack[T]) Push(item T) {
	s.items = append(s.items, item)
}

// Pop removes the top item and hands it to the caller.
func (s *Stack[T]) Pop() T {
	var zero T
	n := len(s.items)
	item := s.items[n-1]
	s.items[n-1] = zero
	s.items = s.items[:n-1]
	return item
}

func (s *Stack[T]) Len() int {
	return len(s.items)
}

