// Package observability provides logging and metrics support for the library
// search service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for searches, providers, and enrichment
//   - Context helpers for propagating request identification
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("query", query).Msg("search started")
//
// Add search context to logger:
//
//	logger = observability.WithSearchContext(logger, query, source)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("minerva")
//
// Record metrics:
//
//	metrics.RecordProviderSearchStarted("OpenAlex")
//	metrics.RecordSearchCompleted(42, 1.8)
//	metrics.RecordDuplicatesMerged(7)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithClientIP(ctx, clientIP)
//
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - query: user's search query
//   - source: metadata provider (OpenAlex, CrossRef, etc.)
//   - doi: Digital Object Identifier of a record
//   - record_id: record identifier
//   - client_ip: request origin address
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
