package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	assert := assert.New(t)

	q := New[string](2)
	assert.True(q.IsEmpty())

	_, ok := q.Dequeue()
	assert.False(ok)
	_, ok = q.Peek()
	assert.False(ok)

	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")
	assert.Equal(3, q.Length())

	item, ok := q.Peek()
	assert.True(ok)
	assert.Equal("a", item)

	item, _ = q.Dequeue()
	assert.Equal("a", item)
	q.Enqueue("d")

	var got []string
	for !q.IsEmpty() {
		item, _ := q.Dequeue()
		got = append(got, item)
	}
	assert.Equal([]string{"b", "c", "d"}, got)
	assert.Zero(q.head, "drained queue rewinds")

	q.Enqueue("e")
	q.Reset()
	assert.True(q.IsEmpty())
}
