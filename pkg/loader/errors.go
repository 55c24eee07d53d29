package loader

import "errors"

// Phase-level terminal errors. Any of these aborts the run and sets a
// non-zero exit status.
var (
	// ErrListingFailed means a listing page exhausted retries. No partial
	// listing is usable: completeness cannot be guaranteed without it.
	ErrListingFailed = errors.New("listing failed")

	// ErrFetchFailed means at least one detail fetch failed terminally and
	// partial results are not allowed.
	ErrFetchFailed = errors.New("detail fetch failed")

	// ErrUploadFailed means at least one batch exhausted retries.
	ErrUploadFailed = errors.New("upload failed")
)
