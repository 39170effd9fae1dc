package data

import (
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/pump-short-bot/pkg/types"
)

// MemoryCache is a Cache backed by a map.
type MemoryCache struct {
	mu    sync.RWMutex
	cache map[string][]types.OHLCV
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: make(map[string][]types.OHLCV)}
}

func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	out := make([]types.OHLCV, len(data))
	copy(out, data)
	return out, true
}

func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]types.OHLCV, len(data))
	copy(stored, data)
	c.cache[key] = stored
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]types.OHLCV)
}

func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// CachedProvider memoizes another Provider by source.
type CachedProvider struct {
	provider Provider
	cache    Cache
	log      zerolog.Logger
}

func NewCachedProvider(provider Provider, log zerolog.Logger) *CachedProvider {
	return NewCachedProviderWithCache(provider, NewMemoryCache(), log)
}

func NewCachedProviderWithCache(provider Provider, cache Cache, log zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		log:      log.With().Str("component", "data_cache").Logger(),
	}
}

func (p *CachedProvider) Name() string { return "Cached " + p.provider.Name() }

func (p *CachedProvider) LoadData(source string) ([]types.OHLCV, error) {
	if data, ok := p.cache.Get(source); ok {
		p.log.Debug().Str("source", filepath.Base(source)).Msg("cache hit")
		return data, nil
	}

	data, err := p.provider.LoadData(source)
	if err != nil {
		return nil, err
	}
	p.cache.Set(source, data)

	p.log.Debug().
		Str("source", filepath.Base(source)).
		Int("bars", len(data)).
		Msg("loaded and cached")
	return data, nil
}

func (p *CachedProvider) Cache() Cache { return p.cache }
