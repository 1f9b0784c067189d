package domain

const (
	DefaultResponseTimeoutSeconds     = 30
	DefaultRefreshTimeoutSeconds      = 60
	DefaultRefreshConcurrency         = 4
	DefaultObservabilityListenAddress = "0.0.0.0:9090"
	DefaultHistoryKeep                = 20

	// LocalEndpointPrefix marks a tool endpoint served by an in-process handler.
	LocalEndpointPrefix = "local:"
	// ResultEnvelopeKey is unwrapped from invocation responses when present.
	ResultEnvelopeKey = "result"
)
