package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList_PushAndRemoveMiddle(t *testing.T) {
	var l List[string]
	a := l.PushBack("a")
	l.PushBack("b")
	c := l.PushBack("c")

	assert.Equal(t, 3, l.Len())
	l.Remove(a)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "b", l.Front().Value)
	assert.Equal(t, c, l.Back())
}

func TestList_PopFrontOrdering(t *testing.T) {
	var l List[int]
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := l.PopFront()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := l.PopFront()
	assert.False(t, ok)
}

func TestFIFO_DrainPreservesOrder(t *testing.T) {
	var q FIFO[string]
	q.Push("x")
	q.Push("y")
	q.Push("z")

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"x", "y", "z"}, q.Drain())
	assert.Equal(t, 0, q.Len())
}
