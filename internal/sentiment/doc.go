// Package sentiment turns document chunks into sentiment records.
//
// The scoring model is an injected port (domain.Scorer): the FinBERT sidecar
// client lives here, constructed once per process and reused across all chunk
// calls, so chunking and aggregation never touch model-loading logic.
package sentiment
