package permission

import (
	"context"
	"errors"
	"sync"
)

// GroupEngine computes effective permissions as the union of the masks of
// every group a user belongs to. Unknown groups contribute nothing.
type GroupEngine struct {
	registry *Registry

	mu     sync.RWMutex
	groups map[string]Set
	frozen bool
}

// NewGroupEngine creates an engine over registry.
func NewGroupEngine(registry *Registry) *GroupEngine {
	return &GroupEngine{
		registry: registry,
		groups:   make(map[string]Set),
	}
}

// RegisterGroup binds a group name to the named permissions.
func (g *GroupEngine) RegisterGroup(group string, permissionNames []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return errors.New("group engine frozen")
	}
	if group == "" {
		return errors.New("group name empty")
	}
	if _, exists := g.groups[group]; exists {
		return errors.New("group already registered")
	}

	var set Set
	for _, name := range permissionNames {
		bit, ok := g.registry.Bit(name)
		if !ok {
			return errors.New("permission not registered: " + name)
		}
		set = set.With(bit)
	}

	g.groups[group] = set
	return nil
}

// Freeze prevents further group registrations.
func (g *GroupEngine) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Effective returns the union of the masks of groups.
func (g *GroupEngine) Effective(_ context.Context, groups []string) (Set, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var set Set
	for _, group := range groups {
		set = set.Union(g.groups[group])
	}
	return set, nil
}

// Registry returns the registry the engine resolves names against.
func (g *GroupEngine) Registry() *Registry {
	return g.registry
}
