package permission

import "math/bits"

// Set is the effective permission bitmask of a user. Bit positions come from
// a [Registry]; the highest bit is the root bit when the registry reserves it.
type Set uint64

const rootBit = 63

// Has reports whether bit is set. A set carrying the root bit has every
// permission when rootReserved is true.
func (s Set) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	if rootReserved && s&(1<<rootBit) != 0 {
		return true
	}
	return s&(1<<bit) != 0
}

// With returns s with bit added.
func (s Set) With(bit int) Set {
	if bit < 0 || bit >= 64 {
		return s
	}
	return s | (1 << bit)
}

// Union merges two sets.
func (s Set) Union(other Set) Set {
	return s | other
}

// Len returns the number of set bits.
func (s Set) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Raw returns the mask as stored in session state.
func (s Set) Raw() uint64 {
	return uint64(s)
}
