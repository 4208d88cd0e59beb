// Package events provides explicit subscriptions between components.
//
// Components expose Subscribe(handler) -> unsubscribe instead of registering
// global callbacks; the session coordinator does all wiring.
package events

// Hub fans one event stream out to subscribers in subscription order.
//
// Hub is not safe for concurrent use. Like the components that own it, it is
// touched only from the session's dispatch goroutine.
type Hub[T any] struct {
	next uint64
	subs []subscription[T]
}

type subscription[T any] struct {
	id      uint64
	handler func(T)
}

// Subscribe registers handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (h *Hub[T]) Subscribe(handler func(T)) (unsubscribe func()) {
	h.next++
	id := h.next
	h.subs = append(h.subs, subscription[T]{id: id, handler: handler})
	return func() {
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every current subscriber with ev. Handlers that subscribe
// or unsubscribe during Publish take effect from the next Publish.
func (h *Hub[T]) Publish(ev T) {
	subs := h.subs
	for _, s := range subs {
		s.handler(ev)
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	return len(h.subs)
}
