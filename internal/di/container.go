// Package di is the minimal dependency-injection container shared by every
// bounded-context module: each module registers its services against a
// string token during startup, and later looks up another module's public
// services by the same token instead of importing its concrete package.
package di

import "sync"

// ServiceRegistry is the read-only view into the container passed to
// factory functions and to module Startup hooks — it can look services up
// but cannot register new ones, so a factory can't accidentally mutate
// registration order.
type ServiceRegistry interface {
	Get(name string) any
}

// Container is the write side used during RegisterServices: modules
// register eager values (config, logger, shared registries) and lazy
// factories (anything that depends on another registered service).
type Container interface {
	ServiceRegistry
	Register(name string, value any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	values    map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty DI container.
func NewContainer() *container {
	return &container{
		values:    make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

// Register stores an already-constructed value under name.
func (c *container) Register(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// RegisterFactory stores a lazily-evaluated constructor under name. The
// factory runs on first Get and its result is then cached. Get does not hold
// the lock while the factory runs, so concurrent first Gets may each run it.
func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// Get resolves name to its registered value, running and memoizing its
// factory on first access. Panics if name was never registered — a missing
// service is a wiring bug, not a runtime condition to recover from.
func (c *container) Get(name string) any {
	c.mu.Lock()
	if v, ok := c.values[name]; ok {
		c.mu.Unlock()
		return v
	}
	factory, ok := c.factories[name]
	c.mu.Unlock()
	if !ok {
		panic("di: no service registered for " + name)
	}

	v := factory(c)

	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
	return v
}

// RegisterToken is a generic convenience over RegisterFactory: it lets a
// module register a typed factory without an `any` cast inside the closure
// body. The token itself is still looked up as a plain string via Get.
func RegisterToken[T any](c Container, token string, factory func(ServiceRegistry) T) {
	c.RegisterFactory(token, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}
