package model

import "errors"

var (
	// ErrEmptyURL is returned when the URL to scan is empty.
	ErrEmptyURL = errors.New("url cannot be empty")
	// ErrInvalidURL is returned when the URL cannot be parsed or has no host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnsupportedScheme is returned for schemes other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrUnknownSeverity is returned when a severity name cannot be parsed.
	ErrUnknownSeverity = errors.New("unknown severity")
	// ErrUnknownThreatLevel is returned when a threat level name cannot be parsed.
	ErrUnknownThreatLevel = errors.New("unknown threat level")
)
