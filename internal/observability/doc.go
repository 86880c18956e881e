// Package observability provides structured logging and Prometheus metrics
// for the drinks API.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - Auth pipeline decision counters and latency histograms
//   - JWKS fetch and key-cache instrumentation
//   - HTTP request metrics
//
// A nil *Metrics is valid and records nothing.
package observability
