package boundedlist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrWong99/voiced/internal/boundedlist"
)

func TestList_DropsOldestPastCapacity(t *testing.T) {
	l := boundedlist.New[int](3)
	for i := 1; i <= 5; i++ {
		l.Push(i)
	}
	assert.Equal(t, []int{3, 4, 5}, l.Items())
	assert.Equal(t, 3, l.Len())
}

func TestList_Unbounded(t *testing.T) {
	l := boundedlist.New[string](0)
	l.Push("a")
	l.Push("b")
	assert.Equal(t, []string{"a", "b"}, l.Items())
}

func TestList_Last(t *testing.T) {
	l := boundedlist.New[int](5)
	for i := 1; i <= 4; i++ {
		l.Push(i)
	}
	assert.Equal(t, []int{3, 4}, l.Last(2))
	assert.Equal(t, []int{1, 2, 3, 4}, l.Last(10))
	assert.Nil(t, l.Last(0))
}
