package model

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Navigation failure errors. They are the sentinel form of each FailureKind
// and can be matched with errors.Is.
var (
	// ErrNameNotResolved is returned when the target host does not resolve.
	ErrNameNotResolved = errors.New("host name not resolved")
	// ErrConnectionRefused is returned when the target refuses the connection.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrNavigationTimeout is returned when the page did not load in time.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrScanFailed is returned for any other fatal scan failure.
	ErrScanFailed = errors.New("scan failed")
)

// FailureKind classifies a fatal scan failure.
type FailureKind int

const (
	// FailureOther is any failure not covered by a more specific kind.
	FailureOther FailureKind = iota

	// FailureNameNotResolved means the host has no DNS record.
	// Typical for typosquatted, expired or taken-down domains.
	FailureNameNotResolved

	// FailureConnectionRefused means the host resolved but refused the connection.
	FailureConnectionRefused

	// FailureTimeout means the host did not answer within the navigation timeout.
	FailureTimeout
)

// String returns a short name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNameNotResolved:
		return "name not resolved"
	case FailureConnectionRefused:
		return "connection refused"
	case FailureTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// Error returns the sentinel error for the kind.
func (k FailureKind) Error() error {
	switch k {
	case FailureNameNotResolved:
		return ErrNameNotResolved
	case FailureConnectionRefused:
		return ErrConnectionRefused
	case FailureTimeout:
		return ErrNavigationTimeout
	default:
		return ErrScanFailed
	}
}

// kinded is implemented by errors that know their FailureKind.
type kinded interface {
	FailureKind() FailureKind
}

// FailureKindOf classifies err.
//
// Errors carrying their own kind win, then the sentinel errors above, then
// DNS errors, refused connections and timeouts from the net package and
// context. Everything else is FailureOther.
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return FailureOther
	}

	var k kinded
	if errors.As(err, &k) {
		return k.FailureKind()
	}

	switch {
	case errors.Is(err, ErrNameNotResolved):
		return FailureNameNotResolved
	case errors.Is(err, ErrConnectionRefused), errors.Is(err, syscall.ECONNREFUSED):
		return FailureConnectionRefused
	case errors.Is(err, ErrNavigationTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return FailureTimeout
		}
		return FailureNameNotResolved
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureOther
}
