// Package settings serves server-wide settings through a read-through cache.
//
// The first [Provider.Get] loads settings from the [Source]; later calls reuse
// the cached copy until [Provider.Invalidate] is called or the optional TTL
// lapses.
package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const cacheKey = "server_settings"

// Settings are the server-wide switches consulted during login.
type Settings struct {
	EnforceMFA bool
	Values     map[string]string
}

// Source loads settings from persistent storage.
type Source interface {
	ServerSettings(ctx context.Context) (Settings, error)
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) (Settings, error)

// ServerSettings calls f.
func (f SourceFunc) ServerSettings(ctx context.Context) (Settings, error) {
	return f(ctx)
}

// Provider caches the settings returned by a [Source].
type Provider struct {
	source Source
	ttl    time.Duration
	cache  *cache.Cache

	// serializes loads so concurrent misses hit the source once
	loadMu sync.Mutex
}

// NewProvider creates a provider. A ttl <= 0 caches until [Provider.Invalidate].
func NewProvider(source Source, ttl time.Duration) (*Provider, error) {
	if source == nil {
		return nil, errors.New("settings source required")
	}

	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}

	return &Provider{
		source: source,
		ttl:    expiration,
		cache:  cache.New(expiration, cleanup),
	}, nil
}

// Get returns cached settings, loading them on a miss.
func (p *Provider) Get(ctx context.Context) (Settings, error) {
	if s, ok := p.cached(); ok {
		return s, nil
	}

	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if s, ok := p.cached(); ok {
		return s, nil
	}

	s, err := p.source.ServerSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	p.cache.Set(cacheKey, s, p.ttl)

	return s, nil
}

// Invalidate drops the cached settings; the next Get reloads them.
func (p *Provider) Invalidate() {
	p.cache.Delete(cacheKey)
}

func (p *Provider) cached() (Settings, bool) {
	v, found := p.cache.Get(cacheKey)
	if !found {
		return Settings{}, false
	}
	s, ok := v.(Settings)
	return s, ok
}
