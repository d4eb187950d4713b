package transfer

import "fmt"

// UpstreamError represents a failed origin fetch: either a non-retryable
// origin response or transport failures that survived every retry attempt.
type UpstreamError struct {
	URL        string // Origin URL that was being fetched
	StatusCode int    // HTTP status from the origin, 0 for transport errors
	Attempts   int    // Number of attempts made before giving up
	Err        error  // Underlying error, if any
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("origin fetch failed for %s (HTTP %d after %d attempts)", e.URL, e.StatusCode, e.Attempts)
	}

	return fmt.Sprintf("origin fetch failed for %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StorageError represents a failed write to the local store (disk full,
// permission denied, rename failure). The partial file is discarded by the
// fetcher before this error surfaces.
type StorageError struct {
	Key string // Artifact key that was being written
	Op  string // The storage operation that failed (e.g. "write", "finalize")
	Err error  // Underlying error, if any
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
