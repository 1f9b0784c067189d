// Package localtools holds in-process tool handlers addressed by
// "local:<name>" endpoints.
package localtools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler runs a tool in-process with already validated arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry returns a registry with the built-in handlers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(CalculatorHandlerName, Calculator)
	return r
}

func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("local handler name is required")
	}
	if handler == nil {
		return fmt.Errorf("local handler %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("local handler %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
