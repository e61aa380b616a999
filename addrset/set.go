package addrset

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDuplicate = errors.New("address set: already present")
	ErrNotFound  = errors.New("address set: not present")
)

// Set is an enumerable, duplicate-free collection of addresses. Insertion
// order is preserved until a removal: Remove overwrites the vacated slot
// with the current last element and shrinks, so removal is O(1) but the
// sequence is not order-preserving across removals.
type Set struct {
	elems []common.Address
	index map[common.Address]int
}

// New returns an empty set.
func New() *Set {
	return &Set{index: make(map[common.Address]int)}
}

// Contains reports whether addr is in the set.
func (s *Set) Contains(addr common.Address) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[addr]
	return ok
}

// Add appends addr, failing if it is already present.
func (s *Set) Add(addr common.Address) error {
	if s.Contains(addr) {
		return ErrDuplicate
	}
	if s.index == nil {
		s.index = make(map[common.Address]int)
	}
	s.index[addr] = len(s.elems)
	s.elems = append(s.elems, addr)
	return nil
}

// Remove deletes addr by swapping the last element into its slot, failing
// if addr is absent.
func (s *Set) Remove(addr common.Address) error {
	if s == nil {
		return ErrNotFound
	}
	at, ok := s.index[addr]
	if !ok {
		return ErrNotFound
	}
	last := len(s.elems) - 1
	moved := s.elems[last]
	s.elems[at] = moved
	s.index[moved] = at
	s.elems = s.elems[:last]
	delete(s.index, addr)
	return nil
}

// Len returns the number of elements.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.elems)
}

// Elements returns a copy of the current sequence.
func (s *Set) Elements() []common.Address {
	if s == nil {
		return nil
	}
	out := make([]common.Address, len(s.elems))
	copy(out, s.elems)
	return out
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	clone := New()
	if s == nil {
		return clone
	}
	for _, addr := range s.elems {
		clone.index[addr] = len(clone.elems)
		clone.elems = append(clone.elems, addr)
	}
	return clone
}

// Merge concatenates a and b into a new set, dropping duplicates. Elements
// of a keep their order, followed by the elements of b not already seen.
func Merge(a, b *Set) *Set {
	merged := a.Clone()
	if b == nil {
		return merged
	}
	for _, addr := range b.elems {
		if !merged.Contains(addr) {
			merged.index[addr] = len(merged.elems)
			merged.elems = append(merged.elems, addr)
		}
	}
	return merged
}
