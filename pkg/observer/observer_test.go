package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicPublishInOrder(t *testing.T) {
	topic := NewTopic[int]()

	var got []string
	topic.Subscribe(func(v int) { got = append(got, "a") })
	unsubscribe := topic.Subscribe(func(v int) { got = append(got, "b") })
	topic.Subscribe(func(v int) { got = append(got, "c") })

	topic.Publish(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	unsubscribe()
	unsubscribe()
	got = nil
	topic.Publish(2)
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Equal(t, 2, topic.Len())
}

func TestTopicHandlerMayUnsubscribeItself(t *testing.T) {
	topic := NewTopic[string]()

	calls := 0
	var unsubscribe func()
	unsubscribe = topic.Subscribe(func(string) {
		calls++
		unsubscribe()
	})

	topic.Publish("x")
	topic.Publish("y")
	assert.Equal(t, 1, calls)
}
