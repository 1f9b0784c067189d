// Package mcpbridge exposes the registered tools as an MCP server.
package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"toolhub/internal/domain"
)

// Invoker runs a named tool. The executor satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (domain.InvocationResult, error)
}

// SnapshotSource publishes registry snapshots.
type SnapshotSource interface {
	Snapshot() *domain.ToolSnapshot
	Subscribe(ctx context.Context) <-chan *domain.ToolSnapshot
}

type Options struct {
	Logger  *zap.Logger
	Name    string
	Version string
}

// Bridge mirrors registry snapshots onto an MCP server and forwards tool calls
// to an Invoker.
type Bridge struct {
	server  *mcp.Server
	invoker Invoker
	logger  *zap.Logger

	mu         sync.Mutex
	etag       string
	registered map[string]struct{}
}

func New(invoker Invoker, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.Name
	if name == "" {
		name = "toolhub"
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, &mcp.ServerOptions{HasTools: true})
	return &Bridge{
		server:     server,
		invoker:    invoker,
		logger:     logger.Named("mcpbridge"),
		registered: make(map[string]struct{}),
	}
}

// Server returns the underlying MCP server.
func (b *Bridge) Server() *mcp.Server {
	return b.server
}

// ApplySnapshot registers the snapshot's tools and removes tools that are gone.
// A snapshot with an already applied ETag is ignored.
func (b *Bridge) ApplySnapshot(snapshot *domain.ToolSnapshot) {
	if snapshot == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if snapshot.ETag != "" && snapshot.ETag == b.etag {
		return
	}

	next := make(map[string]struct{}, len(snapshot.Names))
	for _, name := range snapshot.Names {
		tool := snapshot.Tools[name]
		if tool == nil || tool.Contract == nil {
			continue
		}
		b.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Contract.InputSchema(),
		}, b.handler(tool.Name))
		next[tool.Name] = struct{}{}
	}

	var remove []string
	for name := range b.registered {
		if _, ok := next[name]; !ok {
			remove = append(remove, name)
		}
	}
	if len(remove) > 0 {
		b.server.RemoveTools(remove...)
	}

	b.registered = next
	b.etag = snapshot.ETag
	b.logger.Debug("tools synced",
		zap.Uint64("generation", snapshot.Generation),
		zap.Int("tools", len(next)),
		zap.Int("removed", len(remove)),
	)
}

// Sync applies the current snapshot and every later one until ctx ends.
func (b *Bridge) Sync(ctx context.Context, source SnapshotSource) {
	updates := source.Subscribe(ctx)
	b.ApplySnapshot(source.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			b.ApplySnapshot(snapshot)
		}
	}
}

// Serve syncs tools from source and serves MCP over stdio until ctx ends.
func (b *Bridge) Serve(ctx context.Context, source SnapshotSource) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go b.Sync(runCtx, source)

	b.logger.Info("mcp bridge starting (stdio transport)")
	err := b.server.Run(runCtx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bridge) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(err), nil
			}
		}
		result, err := b.invoker.Invoke(ctx, name, args)
		if err != nil {
			return errorResult(err), nil
		}
		raw, err := json.Marshal(result.Value)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
