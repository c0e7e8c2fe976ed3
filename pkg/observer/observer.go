package observer

import "sync"

// Topic fans a typed value out to its subscribers.
type Topic[T any] struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(T)
	order    []int
}

func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{handlers: make(map[int]func(T))}
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (t *Topic[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.handlers[id] = handler
	t.order = append(t.order, id)

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()

		if _, ok := t.handlers[id]; !ok {
			return
		}
		delete(t.handlers, id)
		for i, v := range t.order {
			if v == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
}

// Publish calls every handler in subscription order. Handlers run outside
// the lock and may unsubscribe themselves.
func (t *Topic[T]) Publish(value T) {
	t.mu.RLock()
	handlers := make([]func(T), 0, len(t.order))
	for _, id := range t.order {
		handlers = append(handlers, t.handlers[id])
	}
	t.mu.RUnlock()

	for _, handler := range handlers {
		handler(value)
	}
}

func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.handlers)
}
