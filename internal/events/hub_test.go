package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_PublishInOrder(t *testing.T) {
	var h Hub[int]
	var got []string

	h.Subscribe(func(v int) { got = append(got, "a") })
	h.Subscribe(func(v int) { got = append(got, "b") })
	h.Publish(1)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestHub_Unsubscribe(t *testing.T) {
	var h Hub[string]
	var got []string

	unsub := h.Subscribe(func(v string) { got = append(got, v) })
	h.Publish("one")
	unsub()
	unsub()
	h.Publish("two")

	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, 0, h.Len())
}

func TestHub_UnsubscribeDuringPublish(t *testing.T) {
	var h Hub[int]
	var calls []string

	var unsubA func()
	unsubA = h.Subscribe(func(int) {
		calls = append(calls, "a")
		unsubA()
	})
	h.Subscribe(func(int) { calls = append(calls, "b") })

	h.Publish(1)
	h.Publish(2)

	assert.Equal(t, []string{"a", "b", "b"}, calls)
}
