package utils

const defaultServiceName = "waitlist-foundry"

// IsTracingEnabled reports OTEL_TRACES_ENABLED; tracing is off unless asked for.
func IsTracingEnabled() bool {
	return GetEnvBoolOrDefault("OTEL_TRACES_ENABLED", false)
}

func OTelServiceName() string {
	return GetEnvTrimmedOrDefault("OTEL_SERVICE_NAME", defaultServiceName)
}
