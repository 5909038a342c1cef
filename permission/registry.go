package permission

import (
	"errors"
	"sort"
	"sync"
)

// Registry maps case-permission names to bit positions within a [Set].
type Registry struct {
	rootReserved bool
	rootName     string

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a registry. When rootName is non-empty, bit 63 is
// reserved for it and a set carrying that bit grants every permission.
func NewRegistry(rootName string) *Registry {
	r := &Registry{
		rootReserved: rootName != "",
		rootName:     rootName,
		nameToBit:    make(map[string]int),
		bitToName:    make(map[int]string),
	}
	if r.rootReserved {
		r.nameToBit[rootName] = rootBit
		r.bitToName[rootBit] = rootName
	}
	return r
}

// Register assigns the next free bit to name. Must be called before [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered")
	}

	next := len(r.nameToBit)
	if r.rootReserved {
		// root occupies one entry in the map but not a low bit
		next--
	}
	limit := 64
	if r.rootReserved {
		limit = rootBit
	}
	if next >= limit {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit index for name.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Names expands s into sorted permission names. A set carrying the root bit
// expands to every registered name.
func (r *Registry) Names(s Set) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.nameToBit))
	for bit, name := range r.bitToName {
		if s.Has(bit, r.rootReserved) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// RootReserved reports whether bit 63 is the root permission.
func (r *Registry) RootReserved() bool {
	return r.rootReserved
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions, root included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
