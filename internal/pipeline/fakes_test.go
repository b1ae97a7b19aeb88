package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nao1215/urlrisk/internal/browser"
	"github.com/nao1215/urlrisk/internal/model"
	"github.com/nao1215/urlrisk/internal/probe"
)

// fakeSession is a scripted browser.Session.
type fakeSession struct {
	navigateErr error
	blockNav    bool // wait for the navigation context to end
	content     *browser.Content
	contentErrs []error // returned in order before content succeeds
	shotErr     error
	cookies     []model.Cookie
	telemetry   browser.Telemetry

	mu            sync.Mutex
	navigated     []string
	contentCalls  int
	closeCalls    int
	screenshotted bool
}

func (s *fakeSession) Navigate(ctx context.Context, target string) error {
	s.mu.Lock()
	s.navigated = append(s.navigated, target)
	s.mu.Unlock()

	if s.blockNav {
		<-ctx.Done()
		return fmt.Errorf("navigate %s: %w", target, ctx.Err())
	}
	return s.navigateErr
}

func (s *fakeSession) CaptureContent(context.Context) (*browser.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentCalls++
	if s.contentCalls <= len(s.contentErrs) {
		return nil, s.contentErrs[s.contentCalls-1]
	}
	if s.content == nil {
		return &browser.Content{}, nil
	}
	c := *s.content
	return &c, nil
}

func (s *fakeSession) CaptureScreenshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshotted = true
	if s.shotErr != nil {
		return nil, s.shotErr
	}
	return []byte("png"), nil
}

func (s *fakeSession) CaptureCookies(context.Context) ([]model.Cookie, error) {
	return s.cookies, nil
}

func (s *fakeSession) Telemetry() browser.Telemetry {
	return s.telemetry
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

// fakeLauncher hands out sessions built by newSession.
type fakeLauncher struct {
	newSession func() *fakeSession
	launchErr  error

	mu       sync.Mutex
	launches int
	sessions []*fakeSession
}

func (l *fakeLauncher) Launch(context.Context) (browser.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	s := &fakeSession{}
	if l.newSession != nil {
		s = l.newSession()
	}
	l.sessions = append(l.sessions, s)
	return s, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// fakeGatherer returns fixed intel.
type fakeGatherer struct {
	intel   probe.Intel
	targets atomic.Value
}

func (g *fakeGatherer) Gather(_ context.Context, t probe.Target) probe.Intel {
	g.targets.Store(t)
	intel := g.intel
	intel.Host = t.Host
	return intel
}

// healthyIntel is the probe outcome for an established, well-run site.
func healthyIntel() probe.Intel {
	return probe.Intel{
		DNS:   probe.Succeed("93.184.216.34"),
		Whois: probe.Succeed(probe.WhoisRecord{Domain: "example.com", Registrar: "Example Registrar", AgeDays: model.Ptr(9000)}),
		TLS: probe.Succeed(probe.TLSReport{
			Valid:         true,
			DaysRemaining: 200,
			Issuer:        "Example CA",
			Protocol:      "TLS 1.3",
			Cipher:        "TLS_AES_128_GCM_SHA256",
		}),
		Ports: probe.Succeed(probe.PortReport{Open: []int{80, 443}, Weak: []int{}, Secure: []int{443}}),
	}
}

const healthyHTML = `<html><head><title>Example Domain</title></head>
<body><p>This domain is for use in examples.</p><a href="/about">About</a></body></html>`

func healthySession() *fakeSession {
	return &fakeSession{
		content: &browser.Content{FinalURL: "https://example.com/", Title: "Example Domain", HTML: healthyHTML},
		cookies: []model.Cookie{{Name: "sid", Secure: true, HTTPOnly: true, SameSite: "Lax"}},
		telemetry: browser.Telemetry{
			Requests: 3,
			Bytes:    4096,
			Types:    map[string]int{"document": 1, "script": 2},
			Hosts:    []string{"example.com"},
			Headers: map[string]string{
				"strict-transport-security": "max-age=63072000; includeSubDomains",
				"content-security-policy":   "default-src 'self'",
				"x-frame-options":           "DENY",
				"x-content-type-options":    "nosniff",
				"referrer-policy":           "strict-origin-when-cross-origin",
				"permissions-policy":        "camera=()",
			},
			ConsoleTotal: 2,
		},
	}
}

// memoryHistory records saved results.
type memoryHistory struct {
	mu    sync.Mutex
	saved []*model.ScanResult
	err   error
}

func (h *memoryHistory) Save(_ context.Context, r *model.ScanResult) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return "", h.err
	}
	h.saved = append(h.saved, r)
	return "id", nil
}

var errBoom = errors.New("boom")
