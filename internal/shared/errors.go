package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Upstream errors surface only as classified messages
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrNoCandidates        = fmt.Errorf("no route candidates")
	ErrExtractorMissing    = fmt.Errorf("yt-dlp is not installed or not on PATH")
	ErrRateLimited         = fmt.Errorf("too many requests")
	ErrTimeout             = fmt.Errorf("operation timed out")
	ErrShuttingDown        = fmt.Errorf("service is shutting down")

	// Resource errors are attempt failures
	ErrResource        = fmt.Errorf("resource error")
	ErrTempFileMissing = fmt.Errorf("%w: temporary file missing", ErrResource)

	// Lookup errors
	ErrNotFound     = fmt.Errorf("not found")
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)
