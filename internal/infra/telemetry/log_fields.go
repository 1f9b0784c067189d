package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldProvider   = "provider"
	FieldTool       = "tool"
	FieldGeneration = "generation"
	FieldState      = "state"
	FieldDurationMs = "duration_ms"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventRefreshStart    = "refresh_start"
	EventRefreshApplied  = "refresh_applied"
	EventRefreshAborted  = "refresh_aborted"
	EventProviderFailure = "provider_failure"
	EventSchemaDropped   = "schema_dropped"
	EventToolCollision   = "tool_collision"
	EventInvokeFailure   = "invoke_failure"
	EventCacheHit        = "cache_hit"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ProviderField(provider string) zap.Field {
	return zap.String(FieldProvider, provider)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func GenerationField(generation uint64) zap.Field {
	return zap.Uint64(FieldGeneration, generation)
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
