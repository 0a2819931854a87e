package store

import "errors"

// FetchFailedMessage is the user-facing error set after a failed fetch
const FetchFailedMessage = "Failed to fetch repositories. Please try again."

var (
	// ErrFetchFailed wraps any transport, status or parse failure of a page fetch.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrFetchInFlight is returned when a fetch for the current sort
	// configuration is already running. The call changes nothing.
	ErrFetchInFlight = errors.New("fetch already in flight")

	// ErrStaleFetch is returned when the sort configuration changed (or the
	// store was reset) while the fetch was running. Its results are discarded.
	ErrStaleFetch = errors.New("fetch result discarded after sort change")

	// ErrInvalidSort is returned for a sort field or order outside the enumerated values.
	ErrInvalidSort = errors.New("invalid sort configuration")
)
