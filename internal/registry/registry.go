// Package registry provides the process-wide service context shared between
// independently initialised subsystems. Services are keyed by their static type,
// so at most one instance of each type is held at a time.
package registry

import (
	"fmt"
	"reflect"
	"sync"
)

// Context is a typed service registry. The zero value is not usable; call New.
type Context struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// New returns an empty Context.
func New() *Context {
	return &Context{services: make(map[reflect.Type]any)}
}

// Put registers v under the type T, replacing any previous instance of T.
// T is usually an interface or pointer type, e.g. Put[telemetry.Emitter](c, e).
func Put[T any](c *Context, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[reflect.TypeFor[T]()] = v
}

// Get returns the instance registered under T.
func Get[T any](c *Context) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.services[reflect.TypeFor[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// MustGet returns the instance registered under T and panics if there is none.
// Use it for services whose presence is a startup precondition.
func MustGet[T any](c *Context) T {
	v, ok := Get[T](c)
	if !ok {
		panic(fmt.Sprintf("registry: no service registered for %s", reflect.TypeFor[T]()))
	}
	return v
}

// Remove drops the instance registered under T, reporting whether one existed.
func Remove[T any](c *Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := reflect.TypeFor[T]()
	if _, ok := c.services[key]; !ok {
		return false
	}
	delete(c.services, key)
	return true
}

// Len returns the number of registered services.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.services)
}
