package job

import "fmt"

// Per-record validation failures are data (they ride the scrub path), not Go
// errors. The error types here are the batch- and setup-level failures that
// actually propagate.

// FetchError reports that the upstream feed call for a batch failed. It costs
// that batch its error_records but never aborts sibling batches.
type FetchError struct {
	Feed string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Feed, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FatalError reports a setup-time failure (missing configuration, candidate
// list unavailable). It surfaces immediately as a top-level failure response;
// no partial processing is attempted.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// CodeLandingWriteFailed is the diagnostic code attached when a clean record
// could not be written to the landing store and was reclassified as a
// quarantine candidate instead of being dropped.
const CodeLandingWriteFailed = "landing_write_failed"

// CodeMissingFromFeed is the diagnostic code for a candidate the feed did not
// return at all.
const CodeMissingFromFeed = "missing_from_feed"
