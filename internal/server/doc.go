// Package server implements the HTTP API using the Echo framework.
//
// Routes: document ingestion and reads, per-stage pipeline triggers
// (score, align), correlation recompute and listing, health probes,
// Prometheus metrics. Handlers split by concern: handlers_documents.go,
// handlers_correlations.go, handlers_health.go.
package server
