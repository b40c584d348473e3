// Package observe provides telemetry for the precomputation cache:
// structured logging, OpenTelemetry metrics for jobs and lookups, and
// tracing spans around target invocations.
//
// All engine packages accept a nil *Instruments; telemetry is then a
// no-op, so hosts that do not care about observability pay nothing.
package observe
