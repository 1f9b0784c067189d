package domain

import "time"

// RefreshResult labels the outcome of a refresh attempt.
type RefreshResult string

const (
	// RefreshResultApplied indicates the registry was replaced.
	RefreshResultApplied RefreshResult = "applied"
	// RefreshResultAborted indicates the registry was left unchanged.
	RefreshResultAborted RefreshResult = "aborted"
	// RefreshResultRejected indicates a concurrent refresh was refused.
	RefreshResultRejected RefreshResult = "rejected"
)

// InvocationOutcome labels the outcome of a tool invocation.
type InvocationOutcome string

const (
	InvocationSuccess  InvocationOutcome = "success"
	InvocationCacheHit InvocationOutcome = "cache_hit"
	InvocationInvalid  InvocationOutcome = "invalid"
	InvocationNotFound InvocationOutcome = "not_found"
	InvocationFailed   InvocationOutcome = "failed"
)

// Metrics records operational metrics for refreshes and invocations.
type Metrics interface {
	ObserveRefresh(result RefreshResult, duration time.Duration)
	SetRegisteredTools(count int)
	ObserveProviderError(provider string)
	ObserveSchemaError(provider string)
	ObserveInvocation(tool string, outcome InvocationOutcome, duration time.Duration)
	ObserveCacheLookup(tool string, hit bool)
}
