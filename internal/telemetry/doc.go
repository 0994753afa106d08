// Package telemetry wires the allocation engine to OpenTelemetry tracing
// and Prometheus metrics.
//
// Tracing follows a thin-wrapper approach: Init installs a global tracer
// provider backed by the stdout exporter (optionally writing to a file),
// and StartSpan/Span hide the upstream types from callers. When Init is
// never called spans are no-ops.
//
// Metrics are collected into a private registry per Metrics value and
// exported in the Prometheus text format with WriteTextfile, suitable for
// the node_exporter textfile collector.
package telemetry
