// Package telemetry provides the observability stack: zerolog structured
// logging, Prometheus metrics, and OpenTelemetry tracing. The Observer
// type adapts all of it to the run driver's progress callbacks so the
// engine itself stays free of telemetry dependencies.
package telemetry
