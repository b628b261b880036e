package singleflight

import (
	"sync"
)

// Group manages a set of in-flight calls so only one execution exists per
// key at a time. Duplicate callers attach to the in-flight call and receive
// its result. The entry for a key is removed synchronously when the call
// settles, so a caller arriving after settle starts a fresh execution.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

// call represents an active or completed function call.
type call struct {
	wg     sync.WaitGroup
	val    interface{}
	err    error
	shared bool
}

// New creates a new singleflight Group.
func New() *Group {
	return &Group{
		m: make(map[string]*call),
	}
}

// Do executes fn, ensuring only one execution is in flight for key. A
// duplicate caller waits for the original and receives the same results;
// shared reports whether the result was produced by another caller.
func (g *Group) Do(key string, fn func() (interface{}, error)) (val interface{}, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		c.shared = true
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}

	c := &call{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()

	c.wg.Done()
	return c.val, c.err, c.shared
}

// InFlight reports whether a call for key is currently outstanding.
func (g *Group) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Forget removes the key from the group's map, allowing a future call with
// the same key to execute even if a previous call is still in progress.
// Intended for teardown paths (sign-out reset).
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}
