package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when a scan has no URL to scan.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the capture retry count is negative.
	ErrInvalidRetries = errors.New("invalid capture retries: must be non-negative")

	// ErrInvalidBackoff is returned when the retry backoff is negative.
	ErrInvalidBackoff = errors.New("invalid retry backoff: must be non-negative")

	// ErrInvalidCacheSize is returned when the cache size or eviction batch is not positive,
	// or the batch exceeds the size.
	ErrInvalidCacheSize = errors.New("invalid cache size: size and eviction batch must be positive and batch <= size")

	// ErrInvalidConcurrency is returned when the batch concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRateLimit is returned when the server rate limit or burst is not positive.
	ErrInvalidRateLimit = errors.New("invalid rate limit: limit and burst must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidFailOn is returned when --fail-on is not a threat level.
	ErrInvalidFailOn = errors.New("invalid --fail-on value: must be safe, suspicious or dangerous")
)
