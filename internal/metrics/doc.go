// Package metrics collects per-container CPU and memory usage from the
// metrics backend for the pods of a set of namespaces. It produces the
// usage gauges together with usage/limit and usage/request ratios.
package metrics
