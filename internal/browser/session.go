package browser

import (
	"context"

	"github.com/chromedp/cdproto/network"

	"github.com/nao1215/urlrisk/internal/model"
)

// Launcher starts browser sessions.
type Launcher interface {
	// Launch starts a fresh, isolated browser. The caller must Close the
	// returned Session.
	Launch(ctx context.Context) (Session, error)
}

// Session is one browser used for a single scan.
type Session interface {
	// Navigate loads target and waits until the DOM is ready, then waits
	// on a best-effort basis for the network to become idle.
	// Failures the browser reports are returned as *NavigationError.
	Navigate(ctx context.Context, target string) error

	// CaptureContent reads the final URL, title and serialized DOM.
	CaptureContent(ctx context.Context) (*Content, error)

	// CaptureScreenshot renders the viewport as PNG.
	CaptureScreenshot(ctx context.Context) ([]byte, error)

	// CaptureCookies reads the cookies visible to the current page.
	CaptureCookies(ctx context.Context) ([]model.Cookie, error)

	// Telemetry returns the activity recorded since launch.
	Telemetry() Telemetry

	// Close shuts the browser down. It is safe to call more than once.
	Close() error
}

// The capture methods return an error wrapping ErrContextLost when the
// main frame navigated while they ran; such calls may be retried.

// Content is the rendered document.
type Content struct {
	FinalURL string
	Title    string
	HTML     string
}

// convertCookies maps DevTools cookies to model cookies.
func convertCookies(in []*network.Cookie) []model.Cookie {
	out := make([]model.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, model.Cookie{
			Name:     c.Name,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return out
}
