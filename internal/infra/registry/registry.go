// Package registry holds the current set of invocable tools.
//
// Readers load an immutable snapshot through an atomic pointer and never
// block. Replace is the only mutator; it publishes a complete new snapshot so
// a reader sees either every tool of one generation or every tool of the next.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"toolhub/internal/domain"
	"toolhub/internal/infra/hashutil"
	"toolhub/internal/infra/telemetry"
)

type Options struct {
	Logger *zap.Logger
	Clock  func() time.Time
}

type Registry struct {
	logger *zap.Logger
	clock  func() time.Time

	current atomic.Pointer[domain.ToolSnapshot]
	swapMu  sync.Mutex

	subsMu sync.RWMutex
	subs   map[chan *domain.ToolSnapshot]struct{}
}

func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	r := &Registry{
		logger: logger.Named("registry"),
		clock:  clock,
		subs:   make(map[chan *domain.ToolSnapshot]struct{}),
	}
	r.current.Store(domain.NewToolSnapshot(0, hashutil.ToolSetETag(r.logger, nil), map[string]*domain.RegisteredTool{}, clock()))
	return r
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *domain.ToolSnapshot {
	return r.current.Load()
}

// Get resolves name against the current snapshot.
func (r *Registry) Get(name string) (*domain.RegisteredTool, error) {
	tool, ok := r.current.Load().Get(name)
	if !ok {
		return nil, domain.ErrToolNotFound
	}
	return tool, nil
}

// ListNames returns the sorted tool names of the current snapshot.
func (r *Registry) ListNames() []string {
	names := r.current.Load().Names
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func (r *Registry) Len() int {
	return r.current.Load().Len()
}

// Replace publishes tools as the next generation. The map is owned by the
// registry afterwards and must not be modified by the caller.
func (r *Registry) Replace(tools map[string]*domain.RegisteredTool) *domain.ToolSnapshot {
	if tools == nil {
		tools = map[string]*domain.RegisteredTool{}
	}

	r.swapMu.Lock()
	prev := r.current.Load()
	next := domain.NewToolSnapshot(prev.Generation+1, hashutil.ToolSetETag(r.logger, tools), tools, r.clock())
	r.current.Store(next)
	r.broadcast(next)
	r.swapMu.Unlock()

	r.logger.Info("registry swapped",
		telemetry.GenerationField(next.Generation),
		zap.Int("tools", next.Len()),
		zap.Bool("changed", next.ETag != prev.ETag),
	)
	return next
}

// Subscribe delivers the current snapshot and every later one. Delivery is
// latest-wins: a slow subscriber skips intermediate generations. The channel
// is closed when ctx is done.
func (r *Registry) Subscribe(ctx context.Context) <-chan *domain.ToolSnapshot {
	ch := make(chan *domain.ToolSnapshot, 1)

	r.subsMu.Lock()
	r.subs[ch] = struct{}{}
	r.subsMu.Unlock()

	send(ch, r.current.Load())

	go func() {
		<-ctx.Done()
		r.subsMu.Lock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
		r.subsMu.Unlock()
	}()
	return ch
}

func (r *Registry) broadcast(snapshot *domain.ToolSnapshot) {
	r.subsMu.RLock()
	for ch := range r.subs {
		send(ch, snapshot)
	}
	r.subsMu.RUnlock()
}

func send(ch chan *domain.ToolSnapshot, snapshot *domain.ToolSnapshot) {
	select {
	case ch <- snapshot:
		return
	default:
	}
	// Drop the stale pending snapshot so the newest one is delivered.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snapshot:
	default:
	}
}
