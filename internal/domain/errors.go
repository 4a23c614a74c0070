package domain

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmptyDocument and ErrNoChunks are validation failures: permanent,
	// never retried.
	ErrEmptyDocument = errors.New("document text is empty")
	ErrNoChunks      = errors.New("chunk set is empty")

	// ErrScorerUnavailable is transient; callers retry with backoff.
	ErrScorerUnavailable = errors.New("scorer unavailable")

	// ErrNoObservation means no price within the look-ahead window. It is
	// recorded as a null delta and never aborts sibling symbols or horizons.
	ErrNoObservation = errors.New("no market observation within window")
)
