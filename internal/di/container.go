// Package di provides a minimal service container used to wire bounded
// context modules together at startup.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get resolves a service by token, building it on first use when it was
	// registered lazily. Panics on unknown tokens: a missing registration is
	// a wiring bug, not a runtime condition.
	Get(token string) any
}

// Container is the write side of the container.
type Container interface {
	ServiceRegistry
	// Register stores an already-built service instance.
	Register(token string, svc any)
	// RegisterLazy stores a factory invoked once on first Get.
	RegisterLazy(token string, factory func(ServiceRegistry) any)
}

type container struct {
	mu        sync.Mutex
	instances map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		instances: make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

func (c *container) Register(token string, svc any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[token] = svc
}

func (c *container) RegisterLazy(token string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[token] = factory
}

func (c *container) Get(token string) any {
	c.mu.Lock()
	if svc, ok := c.instances[token]; ok {
		c.mu.Unlock()
		return svc
	}
	factory, ok := c.factories[token]
	if !ok {
		c.mu.Unlock()
		panic(fmt.Sprintf("di: no service registered for token %q", token))
	}
	// Release the lock while building so factories may resolve their own
	// dependencies through the registry.
	c.mu.Unlock()

	svc := factory(c)

	c.mu.Lock()
	c.instances[token] = svc
	c.mu.Unlock()
	return svc
}

// RegisterToken registers a typed factory for token.
func RegisterToken[T any](c Container, token string, factory func(ServiceRegistry) T) {
	c.RegisterLazy(token, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// Resolve fetches and type-asserts the service registered for token.
func Resolve[T any](sr ServiceRegistry, token string) T {
	return sr.Get(token).(T)
}
