// Package market aligns document timestamps to price observations at the
// configured horizons and computes percentage deltas. The market-data
// provider is an external, read-mostly resource: lookups are rate limited,
// guarded by a circuit breaker, and coalesced across concurrently processing
// documents.
package market
