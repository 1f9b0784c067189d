// Package resultcache memoizes successful tool results keyed by a subset of
// their arguments. Entries never expire.
package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies a cached result.
type Key string

type Cache struct {
	mu      sync.RWMutex
	entries map[Key]any
	flight  singleflight.Group
}

func New() *Cache {
	return &Cache{entries: make(map[Key]any)}
}

func (c *Cache) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *Cache) Put(key Key, value any) {
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
}

// Load returns the cached value for key when present. Otherwise fn runs once
// for all concurrent callers of the same key and a successful result is
// stored. Errors are never cached. A caller whose ctx ends while waiting
// returns ctx.Err() without affecting the shared call, so fn must not depend
// on any single caller's context.
//
// Mappings and lists are copied before they are returned; callers may modify
// the value freely.
func (c *Cache) Load(ctx context.Context, key Key, fn func() (any, error)) (value any, hit bool, err error) {
	if value, ok := c.Get(key); ok {
		return cloneValue(value), true, nil
	}
	ch := c.flight.DoChan(string(key), func() (any, error) {
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := fn()
		if err != nil {
			return nil, err
		}
		c.Put(key, value)
		return value, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return cloneValue(res.Val), false, nil
	}
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[Key]any)
	c.mu.Unlock()
}

// KeyFor builds the cache key of a call from the values of keyParams, taken
// in name order. Arguments outside keyParams do not affect the key.
func KeyFor(tool string, keyParams []string, args map[string]any) (Key, error) {
	names := make([]string, len(keyParams))
	copy(names, keyParams)
	sort.Strings(names)

	values := make([]any, 0, len(names))
	for _, name := range names {
		values = append(values, args[name])
	}
	// encoding/json sorts map keys, so nested mappings encode canonically.
	encoded, err := json.Marshal(struct {
		Params []string `json:"p"`
		Values []any    `json:"v"`
	}{Params: names, Values: values})
	if err != nil {
		return "", fmt.Errorf("encode cache key for %q: %w", tool, err)
	}
	var b strings.Builder
	b.Grow(len(tool) + 1 + len(encoded))
	b.WriteString(tool)
	b.WriteByte(0)
	b.Write(encoded)
	return Key(b.String()), nil
}
