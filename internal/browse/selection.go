package browse

import (
	"errors"
	"slices"
)

var ErrUnknownProduct = errors.New("unknown product")

// LikedSet is an immutable set of product ids. Toggle returns a new set and
// leaves the receiver untouched, so published sets can be shared freely.
type LikedSet struct {
	ids map[int]struct{}
}

func NewLikedSet(ids ...int) LikedSet {
	m := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return LikedSet{ids: m}
}

func (s LikedSet) Toggle(id int) LikedSet {
	next := make(map[int]struct{}, len(s.ids)+1)
	for k := range s.ids {
		next[k] = struct{}{}
	}
	if _, ok := next[id]; ok {
		delete(next, id)
	} else {
		next[id] = struct{}{}
	}
	return LikedSet{ids: next}
}

func (s LikedSet) Has(id int) bool {
	_, ok := s.ids[id]
	return ok
}

func (s LikedSet) Len() int { return len(s.ids) }

func (s LikedSet) IDs() []int {
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (s LikedSet) Equal(o LikedSet) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for id := range s.ids {
		if !o.Has(id) {
			return false
		}
	}
	return true
}
