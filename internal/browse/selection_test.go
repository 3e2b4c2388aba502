package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikedSet_ToggleIsItsOwnInverse(t *testing.T) {
	starts := []LikedSet{NewLikedSet(), NewLikedSet(1), NewLikedSet(1, 2, 3)}
	for _, s := range starts {
		for _, id := range []int{1, 2, 4} {
			assert.True(t, s.Toggle(id).Toggle(id).Equal(s))
		}
	}
}

func TestLikedSet_ToggleDoesNotMutateReceiver(t *testing.T) {
	s := NewLikedSet(1)
	next := s.Toggle(2)

	assert.False(t, s.Has(2))
	assert.True(t, next.Has(2))
	assert.Equal(t, []int{1}, s.IDs())
	assert.Equal(t, []int{1, 2}, next.IDs())

	removed := next.Toggle(1)
	assert.True(t, next.Has(1))
	assert.Equal(t, []int{2}, removed.IDs())
}

func TestLikedSet_ZeroValue(t *testing.T) {
	var s LikedSet
	assert.False(t, s.Has(1))
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Toggle(1).Has(1))
}
