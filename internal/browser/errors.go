package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto"

	"github.com/nao1215/urlrisk/internal/model"
)

var (
	// ErrContextLost is returned when the page's execution context was
	// destroyed while content was being captured, typically because a
	// script or meta refresh navigated the main frame. The capture may be
	// retried.
	ErrContextLost = errors.New("browser: execution context lost")

	// ErrSessionClosed is returned by Session methods called after Close.
	ErrSessionClosed = errors.New("browser: session closed")
)

// netErrorKinds maps Chrome net error codes to failure kinds.
// Codes not listed here are FailureOther.
var netErrorKinds = map[string]model.FailureKind{
	"net::ERR_NAME_NOT_RESOLVED":      model.FailureNameNotResolved,
	"net::ERR_NAME_RESOLUTION_FAILED": model.FailureNameNotResolved,
	"net::ERR_CONNECTION_REFUSED":     model.FailureConnectionRefused,
	"net::ERR_CONNECTION_RESET":       model.FailureConnectionRefused,
	"net::ERR_ADDRESS_UNREACHABLE":    model.FailureConnectionRefused,
	"net::ERR_TIMED_OUT":              model.FailureTimeout,
	"net::ERR_CONNECTION_TIMED_OUT":   model.FailureTimeout,
}

// NavigationError reports a navigation the browser could not complete.
type NavigationError struct {
	// URL is the address that was requested.
	URL string
	// Code is the Chrome error text, e.g. "net::ERR_NAME_NOT_RESOLVED".
	Code string
}

// Error implements error.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %s", e.URL, e.Code)
}

// FailureKind classifies the error by its Chrome net error code.
func (e *NavigationError) FailureKind() model.FailureKind {
	code := e.Code
	if i := strings.IndexByte(code, ' '); i >= 0 {
		code = code[:i]
	}
	if kind, ok := netErrorKinds[code]; ok {
		return kind
	}
	return model.FailureOther
}

// Unwrap returns the sentinel error of the failure kind so that
// errors.Is(err, model.ErrNameNotResolved) and friends work.
func (e *NavigationError) Unwrap() error {
	return e.FailureKind().Error()
}

// contextLostCode is the DevTools server error code used for
// "Cannot find context with specified id" and similar failures.
const contextLostCode = -32000

// isContextLost reports whether err is a DevTools error caused by a
// destroyed execution context.
func isContextLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextLost) {
		return true
	}
	var cdpErr *cdproto.Error
	if !errors.As(err, &cdpErr) {
		return false
	}
	return cdpErr.Code == contextLostCode &&
		strings.Contains(strings.ToLower(cdpErr.Message), "context")
}
