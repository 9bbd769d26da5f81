package proxy

import (
	"sync"

	"github.com/wippyai/binder"
)

// Cache keeps at most one live proxy per handle for a transport.
type Cache struct {
	transport binder.Transport
	proxies   map[binder.Handle]*Proxy
	mu        sync.Mutex
}

// NewCache creates an empty cache over t.
func NewCache(t binder.Transport) *Cache {
	return &Cache{
		transport: t,
		proxies:   make(map[binder.Handle]*Proxy),
	}
}

// Get returns the proxy for h with a strong reference held by the caller.
// An existing proxy is reused while anything still references it.
func (c *Cache) Get(h binder.Handle) *Proxy {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.proxies[h]; p != nil && p.tryIncWeak() {
		p.IncStrong()
		p.DecWeak()
		return p
	}

	p := New(c.transport, h)
	p.onDestroy = c.expunge
	c.proxies[h] = p
	p.IncStrong()
	return p
}

// Len returns the number of cached proxies.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.proxies)
}

// Each calls fn for every cached proxy until fn returns false. fn must not
// call back into the cache.
func (c *Cache) Each(fn func(*Proxy) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.proxies {
		if !fn(p) {
			return
		}
	}
}

func (c *Cache) expunge(p *Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proxies[p.handle] == p {
		delete(c.proxies, p.handle)
	}
}
