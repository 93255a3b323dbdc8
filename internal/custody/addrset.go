package custody

// AddressSet is an ordered sequence of distinct addresses with a membership
// index. Add appends. Remove swaps the last element into the hole, so the
// relative order of the remaining members is not preserved.
type AddressSet struct {
	items []Address
	index map[Address]int
}

// NewAddressSet builds a set from addrs, dropping duplicates.
func NewAddressSet(addrs ...Address) *AddressSet {
	s := &AddressSet{index: make(map[Address]int, len(addrs))}
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add appends addr and reports whether it was absent.
func (s *AddressSet) Add(addr Address) bool {
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = len(s.items)
	s.items = append(s.items, addr)
	return true
}

// Remove deletes addr and reports whether it was present.
func (s *AddressSet) Remove(addr Address) bool {
	i, ok := s.index[addr]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	s.items = s.items[:last]
	delete(s.index, addr)
	return true
}

// Contains reports membership.
func (s *AddressSet) Contains(addr Address) bool {
	_, ok := s.index[addr]
	return ok
}

// Len returns the number of members.
func (s *AddressSet) Len() int {
	return len(s.items)
}

// At returns the member at position i.
func (s *AddressSet) At(i int) (Address, error) {
	if i < 0 || i >= len(s.items) {
		return Address{}, ErrIndexOutOfRange
	}
	return s.items[i], nil
}

// Slice returns a copy of the members in positional order.
func (s *AddressSet) Slice() []Address {
	out := make([]Address, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns an independent copy.
func (s *AddressSet) Clone() *AddressSet {
	c := &AddressSet{
		items: make([]Address, len(s.items)),
		index: make(map[Address]int, len(s.index)),
	}
	copy(c.items, s.items)
	for k, v := range s.index {
		c.index[k] = v
	}
	return c
}
