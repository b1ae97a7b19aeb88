package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/nao1215/urlrisk/internal/browser"
	"github.com/nao1215/urlrisk/internal/inspect"
	"github.com/nao1215/urlrisk/internal/model"
	"github.com/nao1215/urlrisk/internal/posture"
	"github.com/nao1215/urlrisk/internal/probe"
	"github.com/nao1215/urlrisk/internal/risk"
)

const (
	// DefaultNavigationTimeout bounds page navigation.
	DefaultNavigationTimeout = 60 * time.Second
	// DefaultCaptureRetries is how often a capture is retried after context loss.
	DefaultCaptureRetries = 3
	// DefaultRetryBackoff is the pause between capture retries.
	DefaultRetryBackoff = time.Second

	defaultTLSPort = 443
)

// NavigateStep loads the target page. Its failure is fatal to the scan.
type NavigateStep struct {
	timeout time.Duration
}

// NewNavigateStep creates a NavigateStep with the given hard timeout.
func NewNavigateStep(timeout time.Duration) *NavigateStep {
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}
	return &NavigateStep{timeout: timeout}
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do executes the navigate step.
func (s *NavigateStep) Do(ctx context.Context, scan *Scan) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return scan.Session.Navigate(ctx, scan.URL)
}

// CaptureStep reads the rendered page and the session telemetry.
// Each artifact is captured independently; one that keeps failing is left
// empty without failing the scan.
type CaptureStep struct {
	retries    int
	backoff    time.Duration
	screenshot bool
	logger     *slog.Logger
}

// CaptureStepOption configures a CaptureStep.
type CaptureStepOption func(*CaptureStep)

// WithRetries sets how often a capture is retried after ErrContextLost.
func WithRetries(n int) CaptureStepOption {
	return func(s *CaptureStep) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithBackoff sets the pause between retries.
func WithBackoff(d time.Duration) CaptureStepOption {
	return func(s *CaptureStep) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

// WithScreenshot toggles the screenshot capture.
func WithScreenshot(enabled bool) CaptureStepOption {
	return func(s *CaptureStep) {
		s.screenshot = enabled
	}
}

// WithCaptureLogger sets a custom logger for the capture step.
func WithCaptureLogger(logger *slog.Logger) CaptureStepOption {
	return func(s *CaptureStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCaptureStep creates a CaptureStep.
func NewCaptureStep(opts ...CaptureStepOption) *CaptureStep {
	s := &CaptureStep{
		retries:    DefaultCaptureRetries,
		backoff:    DefaultRetryBackoff,
		screenshot: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do executes the capture step. It never fails.
func (s *CaptureStep) Do(ctx context.Context, scan *Scan) error {
	r := scan.Result

	if content, ok := capture(ctx, s, "content", scan.Session.CaptureContent); ok {
		if content.FinalURL != "" {
			r.FinalURL = content.FinalURL
		}
		r.Page.Title = content.Title
		scan.HTML = content.HTML
	}

	if s.screenshot {
		if png, ok := capture(ctx, s, "screenshot", scan.Session.CaptureScreenshot); ok {
			r.Screenshot = png
		}
	}

	if cookies, ok := capture(ctx, s, "cookies", scan.Session.CaptureCookies); ok {
		scan.Cookies = cookies
	}
	r.Page.Cookies = len(scan.Cookies)

	tel := scan.Session.Telemetry()
	r.Network.Requests = tel.Requests
	r.Network.Bytes = tel.Bytes
	if tel.Types != nil {
		r.Network.Types = tel.Types
	}
	if tel.Hosts != nil {
		r.Network.Domains = tel.Hosts
	}
	if tel.Headers != nil {
		r.Security.Headers = tel.Headers
	}
	r.Page.ConsoleLogs = tel.ConsoleTotal
	return nil
}

// capture calls fn, retrying while it fails with browser.ErrContextLost.
// The second return value is false when the artifact could not be read.
func capture[T any](ctx context.Context, s *CaptureStep, what string, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, true
		}
		if !errors.Is(err, browser.ErrContextLost) || attempt >= s.retries {
			s.logger.Warn("capture failed",
				"artifact", what,
				"attempts", attempt+1,
				"error", err,
			)
			return zero, false
		}

		s.logger.Debug("execution context lost, retrying capture",
			"artifact", what,
			"attempt", attempt+1,
			"backoff", s.backoff,
		)
		timer := time.NewTimer(s.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, false
		case <-timer.C:
		}
	}
}

// Gatherer runs the intelligence probes for a host.
type Gatherer interface {
	Gather(ctx context.Context, t probe.Target) probe.Intel
}

// ProbeStep runs DNS, WHOIS, TLS and port probes against the final host.
type ProbeStep struct {
	gatherer Gatherer
}

// NewProbeStep creates a ProbeStep.
func NewProbeStep(g Gatherer) *ProbeStep {
	return &ProbeStep{gatherer: g}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do executes the probe step. Failed probes leave their fields at defaults.
func (s *ProbeStep) Do(ctx context.Context, scan *Scan) error {
	r := scan.Result
	host := model.Hostname(r.FinalURL)
	if host == "" {
		host = model.Hostname(scan.URL)
	}
	r.Domain.Name = host

	intel := s.gatherer.Gather(ctx, probe.Target{Host: host, TLSPort: tlsPort(r.FinalURL)})
	scan.Intel = intel

	if intel.DNS.OK() {
		r.Domain.IP = model.Ptr(intel.DNS.Value)
	}
	if intel.Whois.OK() {
		rec := intel.Whois.Value
		if rec.AgeDays != nil {
			r.Domain.AgeDays = model.Ptr(*rec.AgeDays)
		}
		if rec.Registrar != "" {
			r.Domain.Registrar = model.Ptr(rec.Registrar)
		}
	}

	// A failed TLS probe leaves the certificate invalid.
	r.Security.SSL = model.SSLInfo{}
	if intel.TLS.OK() {
		tls := intel.TLS.Value
		r.Security.SSL = model.SSLInfo{
			Valid:         tls.Valid,
			DaysRemaining: tls.DaysRemaining,
			Issuer:        tls.Issuer,
			Protocol:      tls.Protocol,
			Cipher:        tls.Cipher,
		}
	}

	if intel.Ports.OK() {
		ports := intel.Ports.Value
		r.Security.Ports = model.PortSummary{
			Open:   nonNil(ports.Open),
			Weak:   nonNil(ports.Weak),
			Secure: nonNil(ports.Secure),
		}
	}
	return nil
}

// tlsPort returns the explicit port of an https URL, or 443.
func tlsPort(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Port() == "" {
		return defaultTLSPort
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return defaultTLSPort
	}
	return port
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

// InspectStep extracts page signals from the captured DOM.
type InspectStep struct {
	inspector *inspect.Inspector
}

// NewInspectStep creates an InspectStep.
func NewInspectStep(i *inspect.Inspector) *InspectStep {
	return &InspectStep{inspector: i}
}

// Name returns the step name.
func (s *InspectStep) Name() string {
	return "inspect"
}

// Do executes the inspect step.
func (s *InspectStep) Do(_ context.Context, scan *Scan) error {
	r := scan.Result
	rep := s.inspector.Inspect(inspect.Input{
		PageURL: r.FinalURL,
		HTML:    scan.HTML,
		Headers: r.Security.Headers,
	})
	scan.Page = rep

	if r.Page.Title == "" {
		r.Page.Title = rep.Title
	}
	r.Technologies = rep.Technologies
	r.Security.MixedContent = rep.MixedContent
	r.Page.HasLoginForm = rep.HasLoginForm
	r.Page.ExternalLinks = rep.ExternalLinks
	r.Page.Scripts = rep.Scripts
	r.Page.Iframes = rep.Iframes
	r.Page.Forms = rep.Forms
	r.Page.Warnings = rep.Warnings
	return nil
}

// PostureStep scores the security posture.
type PostureStep struct{}

// NewPostureStep creates a PostureStep.
func NewPostureStep() *PostureStep {
	return &PostureStep{}
}

// Name returns the step name.
func (s *PostureStep) Name() string {
	return "posture"
}

// Do executes the posture step.
func (s *PostureStep) Do(_ context.Context, scan *Scan) error {
	r := scan.Result
	legacy := scan.Intel.TLS.OK() && scan.Intel.TLS.Value.Legacy

	a := posture.Analyze(posture.Input{
		Headers:           r.Security.Headers,
		Cookies:           scan.Cookies,
		SSL:               r.Security.SSL,
		LegacyTLS:         legacy,
		MixedContent:      r.Security.MixedContent,
		WeakPorts:         r.Security.Ports.Weak,
		DomainAgeDays:     r.Domain.AgeDays,
		InsecureLoginForm: scan.Page.InsecureLoginForm,
	})

	r.Security.HeadersAnalysis = a.HeadersAnalysis
	r.Security.Cookies = a.Cookies
	r.Security.Vulnerabilities = a.Vulnerabilities
	r.Security.Score = a.Score
	return nil
}

// VerdictStep computes the threat verdict.
type VerdictStep struct{}

// NewVerdictStep creates a VerdictStep.
func NewVerdictStep() *VerdictStep {
	return &VerdictStep{}
}

// Name returns the step name.
func (s *VerdictStep) Name() string {
	return "verdict"
}

// Do executes the verdict step.
func (s *VerdictStep) Do(_ context.Context, scan *Scan) error {
	risk.Apply(scan.Result)
	return nil
}
