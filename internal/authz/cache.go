package authz

import (
	"sync"
	"time"
)

// TokenCache is a short-TTL in-memory cache of verified reviewer claims,
// keyed by the raw token string. It spares a repeat Ed25519 signature
// verification for the common case of the same reviewer token driving many
// lane-action requests in a short span (spec §4.3's review endpoints are
// called once per accept/confirm click, not batched).
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]cachedClaims
	ttl     time.Duration
	done    chan struct{}
}

type cachedClaims struct {
	claims    *Claims
	expiresAt time.Time
}

// NewTokenCache creates a cache with the given TTL. Call Close to stop the
// background eviction goroutine.
func NewTokenCache(ttl time.Duration) *TokenCache {
	c := &TokenCache{
		entries: make(map[string]cachedClaims),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// Get returns the cached claims and true if a valid, unexpired entry exists.
func (c *TokenCache) Get(token string) (*Claims, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.claims, true
}

// Set stores claims for token with the configured TTL.
func (c *TokenCache) Set(token string, claims *Claims) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[token] = cachedClaims{
		claims:    claims,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Close stops the background eviction goroutine.
func (c *TokenCache) Close() {
	close(c.done)
}

func (c *TokenCache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *TokenCache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// VerifyTokenCached verifies token against m, consulting cache first. A
// cache hit skips the Ed25519 verification entirely; a miss verifies and
// populates the cache before returning.
func VerifyTokenCached(m *Manager, cache *TokenCache, token string) (*Claims, error) {
	if cache != nil {
		if claims, ok := cache.Get(token); ok {
			return claims, nil
		}
	}
	claims, err := m.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(token, claims)
	}
	return claims, nil
}
