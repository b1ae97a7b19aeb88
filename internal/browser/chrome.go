package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/urlrisk/internal/model"
)

const (
	// DefaultUserAgent is a current desktop Chrome user agent. Some phishing
	// kits serve benign content to headless or unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	// DefaultIdleTimeout bounds the wait for network idle after the DOM is ready.
	DefaultIdleTimeout = 5 * time.Second

	// DefaultQuietPeriod is how long the network must stay idle.
	DefaultQuietPeriod = 500 * time.Millisecond

	defaultWidth  = 1366
	defaultHeight = 768
)

// Chrome launches headless Chrome through chromedp.
type Chrome struct {
	headless    bool
	userAgent   string
	execPath    string
	idleTimeout time.Duration
	quietPeriod time.Duration
	width       int
	height      int
	logger      *slog.Logger
}

// ChromeOption configures a Chrome launcher.
type ChromeOption func(*Chrome)

// WithHeadless toggles headless mode. The default is headless.
func WithHeadless(headless bool) ChromeOption {
	return func(c *Chrome) {
		c.headless = headless
	}
}

// WithUserAgent overrides the user agent. Empty values are ignored.
func WithUserAgent(ua string) ChromeOption {
	return func(c *Chrome) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithExecPath sets the Chrome binary. By default chromedp searches the
// usual install locations.
func WithExecPath(path string) ChromeOption {
	return func(c *Chrome) {
		c.execPath = path
	}
}

// WithIdleTimeout sets the upper bound of the network-idle wait.
func WithIdleTimeout(d time.Duration) ChromeOption {
	return func(c *Chrome) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// WithQuietPeriod sets how long the network must be idle.
func WithQuietPeriod(d time.Duration) ChromeOption {
	return func(c *Chrome) {
		if d > 0 {
			c.quietPeriod = d
		}
	}
}

// WithWindowSize sets the viewport used for rendering and screenshots.
func WithWindowSize(width, height int) ChromeOption {
	return func(c *Chrome) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ChromeOption {
	return func(c *Chrome) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChrome returns a Chrome launcher.
func NewChrome(opts ...ChromeOption) *Chrome {
	c := &Chrome{
		headless:    true,
		userAgent:   DefaultUserAgent,
		idleTimeout: DefaultIdleTimeout,
		quietPeriod: DefaultQuietPeriod,
		width:       defaultWidth,
		height:      defaultHeight,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Launch starts a new browser process with its own profile.
func (c *Chrome) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(slices.Clone(chromedp.DefaultExecAllocatorOptions[:]),
		chromedp.Flag("headless", c.headless),
		// Certificates are assessed separately; the page must still render.
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(c.userAgent),
		chromedp.WindowSize(c.width, c.height),
	)
	if c.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			c.logger.Debug("chromedp", "message", fmt.Sprintf(format, args...))
		}),
	)

	rec := NewRecorder()
	events := &pageEvents{rec: rec, idle: newIdleWatcher(rec, c.quietPeriod), dom: &domSignal{}}
	chromedp.ListenTarget(browserCtx, events.handle)

	// The first Run starts the browser; it must not carry a timeout or
	// the browser would die with it.
	if err := chromedp.Run(browserCtx, network.Enable(), runtime.Enable(), page.Enable()); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	c.logger.Debug("browser launched", "headless", c.headless)
	return &chromeSession{
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		rec:           rec,
		idle:          events.idle,
		dom:           events.dom,
		idleTimeout:   c.idleTimeout,
		logger:        c.logger,
	}, nil
}

// pageEvents routes target events to the recorder and the wait signals.
type pageEvents struct {
	rec  *Recorder
	idle *idleWatcher
	dom  *domSignal
}

func (p *pageEvents) handle(ev any) {
	p.rec.Observe(ev)
	switch ev.(type) {
	case *network.EventRequestWillBeSent, *network.EventLoadingFinished, *network.EventLoadingFailed:
		p.idle.check()
	case *page.EventDomContentEventFired:
		p.dom.fire()
	}
}

// chromeSession is a Session backed by one chromedp browser context.
type chromeSession struct {
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	rec         *Recorder
	idle        *idleWatcher
	dom         *domSignal
	idleTimeout time.Duration
	logger      *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// bind derives a context from the browser context that is also cancelled
// when ctx is done.
func (s *chromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate implements Session.
func (s *chromeSession) Navigate(ctx context.Context, target string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	// Documents without a body, such as framesets, still fire DOMContentLoaded.
	ready := s.dom.arm()
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var res page.NavigateReturns
			if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(target), &res); err != nil {
				return err
			}
			if res.ErrorText != "" {
				return &NavigationError{URL: target, Code: res.ErrorText}
			}
			return nil
		}),
	)
	if err == nil {
		err = awaitSignal(runCtx, ready)
	}
	if err != nil {
		var navErr *NavigationError
		switch {
		case errors.As(err, &navErr):
			return navErr
		case ctx.Err() != nil:
			return fmt.Errorf("navigate %s: %w", target, ctx.Err())
		default:
			return fmt.Errorf("navigate %s: %w", target, err)
		}
	}

	s.waitIdle(ctx)
	return nil
}

// waitIdle blocks until the network is idle, the idle timeout passes or
// ctx is done. Pages that never settle are still captured.
func (s *chromeSession) waitIdle(ctx context.Context) {
	s.idle.check()
	timer := time.NewTimer(s.idleTimeout)
	defer timer.Stop()

	select {
	case <-s.idle.Done():
	case <-timer.C:
		s.logger.Debug("network did not become idle", "inflight", s.rec.Inflight(), "timeout", s.idleTimeout)
	case <-ctx.Done():
	}
}

// capture runs actions and fails with ErrContextLost when the main frame
// navigated meanwhile.
func (s *chromeSession) capture(ctx context.Context, what string, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	generation := s.rec.Generation()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		switch {
		case isContextLost(err):
			return fmt.Errorf("capture %s: %w: %w", what, ErrContextLost, err)
		case ctx.Err() != nil:
			return fmt.Errorf("capture %s: %w", what, ctx.Err())
		default:
			return fmt.Errorf("capture %s: %w", what, err)
		}
	}
	if s.rec.Generation() != generation {
		return fmt.Errorf("capture %s: %w: main frame navigated", what, ErrContextLost)
	}
	return nil
}

// CaptureContent implements Session.
func (s *chromeSession) CaptureContent(ctx context.Context) (*Content, error) {
	var c Content
	err := s.capture(ctx, "content",
		chromedp.Location(&c.FinalURL),
		chromedp.Title(&c.Title),
		chromedp.OuterHTML("html", &c.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CaptureScreenshot implements Session.
func (s *chromeSession) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.capture(ctx, "screenshot", chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// CaptureCookies implements Session.
func (s *chromeSession) CaptureCookies(ctx context.Context) ([]model.Cookie, error) {
	var cookies []*network.Cookie
	err := s.capture(ctx, "cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return convertCookies(cookies), nil
}

// Telemetry implements Session.
func (s *chromeSession) Telemetry() Telemetry {
	return s.rec.Snapshot()
}

// Close implements Session.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.idle.stop()
		s.closeErr = chromedp.Cancel(s.ctx)
		s.browserCancel()
		s.allocCancel()
		s.logger.Debug("browser closed")
	})
	return s.closeErr
}
