// Package transport manages the long-lived HTTP connections to tool providers.
package transport

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"toolhub/internal/domain"
)

type Options struct {
	Logger *zap.Logger
	// RoundTripper overrides the HTTP transport used by every connection.
	RoundTripper http.RoundTripper
}

// ConnectionSet holds one Connection per enabled provider.
type ConnectionSet struct {
	logger *zap.Logger

	mu     sync.RWMutex
	conns  map[string]*Connection
	order  []string
	closed bool
}

// Open builds a connection for every enabled provider. Disabled providers are
// skipped. No network traffic happens until the first request.
func Open(providers []domain.ProviderConfig, settings domain.Settings, opts Options) (*ConnectionSet, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("transport")

	set := &ConnectionSet{
		logger: logger,
		conns:  make(map[string]*Connection),
	}
	timeout := settings.ResponseTimeout()
	for _, provider := range providers {
		if !provider.Enabled {
			logger.Debug("skipping disabled provider", zap.String("provider", provider.Name))
			continue
		}
		if _, dup := set.conns[provider.Name]; dup {
			set.Close()
			return nil, fmt.Errorf("duplicate provider %q", provider.Name)
		}
		conn, err := newConnection(provider, timeout, opts.RoundTripper, logger)
		if err != nil {
			set.Close()
			return nil, err
		}
		set.conns[provider.Name] = conn
		set.order = append(set.order, provider.Name)
	}
	logger.Info("provider connections opened",
		zap.Int("count", len(set.order)),
		zap.Duration("timeout", timeout),
	)
	return set, nil
}

// Get returns the open connection for provider.
func (s *ConnectionSet) Get(provider string) (*Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	conn, ok := s.conns[provider]
	return conn, ok
}

// Connections returns the open connections in provider declaration order.
func (s *ConnectionSet) Connections() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	out := make([]*Connection, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.conns[name])
	}
	return out
}

func (s *ConnectionSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.order)
}

// Close releases every connection. Repeated calls are no-ops.
func (s *ConnectionSet) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*Connection, 0, len(s.conns))
	for _, name := range s.order {
		conns = append(conns, s.conns[name])
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	s.logger.Info("provider connections closed", zap.Int("count", len(conns)))
	return nil
}
