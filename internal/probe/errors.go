package probe

import "errors"

var (
	// ErrNoAddress is returned when a host resolves to no usable address.
	ErrNoAddress = errors.New("host resolved to no address")
	// ErrNoCertificate is returned when the TLS peer presented no certificate.
	ErrNoCertificate = errors.New("peer presented no certificate")
	// ErrSkipped is returned by a probe that did not run because its input was unavailable.
	ErrSkipped = errors.New("probe skipped")
)
