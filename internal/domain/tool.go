package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamType is the closed set of primitive parameter kinds.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamFloat   ParamType = "float"
	ParamBoolean ParamType = "boolean"
	ParamList    ParamType = "list"
	ParamMapping ParamType = "mapping"
)

var paramTypeAliases = map[string]ParamType{
	"str":     ParamString,
	"string":  ParamString,
	"text":    ParamString,
	"int":     ParamInteger,
	"integer": ParamInteger,
	"float":   ParamFloat,
	"number":  ParamFloat,
	"bool":    ParamBoolean,
	"boolean": ParamBoolean,
	"list":    ParamList,
	"array":   ParamList,
	"dict":    ParamMapping,
	"mapping": ParamMapping,
	"object":  ParamMapping,
}

// ParseParamType maps a provider type tag to a ParamType. Unknown tags fall back
// to ParamString and report known=false.
func ParseParamType(tag string) (ParamType, bool) {
	if t, ok := paramTypeAliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return t, true
	}
	return ParamString, false
}

type ParameterSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	RawType     string    `json:"rawType,omitempty"`
	Description string    `json:"description"`
}

type CachePolicy struct {
	Enabled bool     `json:"enabled"`
	KeyBy   []string `json:"keyBy,omitempty"`
}

// ToolDescriptor is the raw provider-supplied description of a tool.
type ToolDescriptor struct {
	Provider    string          `json:"provider"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Endpoint    string          `json:"endpoint"`
	Parameters  []ParameterSpec `json:"parameters"`
	Cache       CachePolicy     `json:"cache"`
}

// IsLocal reports whether the endpoint is served in-process.
func (d ToolDescriptor) IsLocal() bool {
	return strings.HasPrefix(d.Endpoint, LocalEndpointPrefix)
}

// LocalHandlerName returns the handler name of a local endpoint.
func (d ToolDescriptor) LocalHandlerName() string {
	return strings.TrimPrefix(d.Endpoint, LocalEndpointPrefix)
}

// Contract validates invocation arguments for one tool.
type Contract interface {
	Validate(args map[string]any) (map[string]any, error)
	Fields() []ParameterSpec
	InputSchema() *jsonschema.Schema
}

// Invoker performs a validated call.
type Invoker func(ctx context.Context, args map[string]any) (any, error)

// RegisteredTool is a compiled, invocable tool. It is never mutated after construction.
type RegisteredTool struct {
	Name        string
	Description string
	Provider    string
	Endpoint    string
	Local       bool
	Contract    Contract
	Invoke      Invoker
	Cache       CachePolicy
}

// ToolInfo is the introspection view of a registered tool.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Provider    string          `json:"provider"`
	Endpoint    string          `json:"endpoint"`
	Local       bool            `json:"local,omitempty"`
	Parameters  []ParameterSpec `json:"parameters"`
	Cache       CachePolicy     `json:"cache"`
}

func (t *RegisteredTool) Info() ToolInfo {
	info := ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		Provider:    t.Provider,
		Endpoint:    t.Endpoint,
		Local:       t.Local,
		Cache:       t.Cache,
	}
	if t.Contract != nil {
		info.Parameters = t.Contract.Fields()
	}
	return info
}

// ToolSnapshot is an immutable view of the registry.
type ToolSnapshot struct {
	Generation uint64
	ETag       string
	UpdatedAt  time.Time
	Tools      map[string]*RegisteredTool
	Names      []string
}

func NewToolSnapshot(generation uint64, etag string, tools map[string]*RegisteredTool, now time.Time) *ToolSnapshot {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ToolSnapshot{
		Generation: generation,
		ETag:       etag,
		UpdatedAt:  now,
		Tools:      tools,
		Names:      names,
	}
}

func (s *ToolSnapshot) Get(name string) (*RegisteredTool, bool) {
	if s == nil {
		return nil, false
	}
	tool, ok := s.Tools[name]
	return tool, ok
}

func (s *ToolSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Tools)
}

// InvocationResult is the outcome of a successful invocation.
type InvocationResult struct {
	Tool      string        `json:"tool"`
	Value     any           `json:"value"`
	Cached    bool          `json:"cached"`
	RequestID string        `json:"requestId,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RefreshState is a step of the refresh state machine.
type RefreshState string

const (
	RefreshIdle         RefreshState = "idle"
	RefreshFetching     RefreshState = "fetching"
	RefreshSynthesizing RefreshState = "synthesizing"
	RefreshSwapping     RefreshState = "swapping"
)

// RefreshReport summarizes one refresh attempt.
type RefreshReport struct {
	Generation     uint64           `json:"generation"`
	ETag           string           `json:"etag"`
	Tools          []string         `json:"tools"`
	ProviderErrors []*ProviderError `json:"-"`
	SchemaErrors   []*SchemaError   `json:"-"`
	Collisions     []string         `json:"collisions,omitempty"`
	StartedAt      time.Time        `json:"startedAt"`
	Duration       time.Duration    `json:"duration"`
	Applied        bool             `json:"applied"`
}
