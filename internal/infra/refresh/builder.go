package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"toolhub/internal/domain"
	"toolhub/internal/infra/discovery"
	"toolhub/internal/infra/localtools"
	"toolhub/internal/infra/schema"
	"toolhub/internal/infra/transport"
)

// Builder compiles descriptors into invocable tools.
type Builder struct {
	conns discovery.Connections
	local *localtools.Registry
}

func NewBuilder(conns discovery.Connections, local *localtools.Registry) *Builder {
	return &Builder{conns: conns, local: local}
}

// Build compiles desc and binds its invoker. Failures are *domain.SchemaError.
func (b *Builder) Build(desc domain.ToolDescriptor) (*domain.RegisteredTool, error) {
	contract, err := schema.Compile(desc)
	if err != nil {
		return nil, err
	}

	tool := &domain.RegisteredTool{
		Name:        desc.Name,
		Description: desc.Description,
		Provider:    desc.Provider,
		Endpoint:    desc.Endpoint,
		Local:       desc.IsLocal(),
		Contract:    contract,
		Cache:       desc.Cache,
	}

	if tool.Local {
		handler, ok := b.local.Lookup(desc.LocalHandlerName())
		if !ok {
			return nil, &domain.SchemaError{
				Provider: desc.Provider,
				Tool:     desc.Name,
				Index:    -1,
				Err:      fmt.Errorf("unknown local handler %q", desc.LocalHandlerName()),
			}
		}
		tool.Invoke = bindLocal(desc, handler)
		return tool, nil
	}

	conn, ok := b.conns.Get(desc.Provider)
	if !ok {
		return nil, &domain.SchemaError{Provider: desc.Provider, Tool: desc.Name, Index: -1, Err: domain.ErrNoConnection}
	}
	if _, err := conn.Resolve(desc.Endpoint); err != nil {
		return nil, &domain.SchemaError{Provider: desc.Provider, Tool: desc.Name, Index: -1, Err: err}
	}
	tool.Invoke = bindRemote(desc, conn)
	return tool, nil
}

func bindLocal(desc domain.ToolDescriptor, handler localtools.Handler) domain.Invoker {
	return func(ctx context.Context, args map[string]any) (any, error) {
		value, err := handler(ctx, args)
		if err != nil {
			return nil, &domain.InvocationError{Tool: desc.Name, Provider: desc.Provider, Err: err}
		}
		return value, nil
	}
}

func bindRemote(desc domain.ToolDescriptor, conn *transport.Connection) domain.Invoker {
	method := conn.Provider().MethodFor(desc.Endpoint)
	return func(ctx context.Context, args map[string]any) (any, error) {
		resp, err := conn.Do(ctx, method, desc.Endpoint, args)
		if err != nil {
			invErr := &domain.InvocationError{Tool: desc.Name, Provider: desc.Provider, Err: err}
			var statusErr *transport.StatusError
			if errors.As(err, &statusErr) {
				invErr.StatusCode = statusErr.StatusCode
			}
			return nil, invErr
		}
		value, err := decodeResult(resp.Body)
		if err != nil {
			return nil, &domain.InvocationError{Tool: desc.Name, Provider: desc.Provider, StatusCode: resp.StatusCode, Err: err}
		}
		return value, nil
	}
}

// decodeResult parses a JSON reply and unwraps a {"result": x} envelope. An
// empty body yields a nil result.
func decodeResult(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if obj, ok := value.(map[string]any); ok && len(obj) == 1 {
		if inner, ok := obj[domain.ResultEnvelopeKey]; ok {
			return inner, nil
		}
	}
	return value, nil
}
