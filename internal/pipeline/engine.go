package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/urlrisk/internal/browser"
	"github.com/nao1215/urlrisk/internal/cache"
	"github.com/nao1215/urlrisk/internal/inspect"
	"github.com/nao1215/urlrisk/internal/model"
	"github.com/nao1215/urlrisk/internal/probe"
	"github.com/nao1215/urlrisk/internal/risk"
)

// History persists completed scans.
type History interface {
	Save(ctx context.Context, result *model.ScanResult) (string, error)
}

// Engine runs deep URL scans.
type Engine struct {
	cache      *cache.Cache
	launcher   browser.Launcher
	gatherer   Gatherer
	inspector  *inspect.Inspector
	history    History
	navTimeout time.Duration
	retries    int
	backoff    time.Duration
	screenshot bool
	policy     func(host string) HostPolicy
	now        func() time.Time
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCache sets the result cache.
func WithCache(c *cache.Cache) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithLauncher sets the browser launcher.
func WithLauncher(l browser.Launcher) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.launcher = l
		}
	}
}

// WithGatherer sets the intelligence probe runner.
func WithGatherer(g Gatherer) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.gatherer = g
		}
	}
}

// WithInspector sets the content inspector.
func WithInspector(i *inspect.Inspector) EngineOption {
	return func(e *Engine) {
		if i != nil {
			e.inspector = i
		}
	}
}

// WithHistory stores every fresh scan result. Cache hits are not stored.
func WithHistory(h History) EngineOption {
	return func(e *Engine) {
		e.history = h
	}
}

// WithNavigationTimeout sets the hard navigation timeout.
func WithNavigationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.navTimeout = d
		}
	}
}

// WithCaptureRetries sets how often a capture is retried after context loss.
func WithCaptureRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// WithRetryBackoff sets the pause between capture retries.
func WithRetryBackoff(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// WithScreenshots toggles screenshot capture.
func WithScreenshots(enabled bool) EngineOption {
	return func(e *Engine) {
		e.screenshot = enabled
	}
}

// HostPolicy holds per-host overrides of the engine settings.
type HostPolicy struct {
	// Screenshot overrides WithScreenshots when non-nil.
	Screenshot *bool

	// NavigationTimeout overrides WithNavigationTimeout when positive.
	NavigationTimeout time.Duration
}

// WithHostPolicy looks up overrides for the host of every scanned URL.
func WithHostPolicy(policy func(host string) HostPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithClock replaces time.Now. It is used by tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine. Without options it drives a local headless
// Chrome, runs the real network probes and keeps its own cache.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		navTimeout: DefaultNavigationTimeout,
		retries:    DefaultCaptureRetries,
		backoff:    DefaultRetryBackoff,
		screenshot: true,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.New(cache.WithLogger(e.logger))
	}
	if e.launcher == nil {
		e.launcher = browser.NewChrome(browser.WithLogger(e.logger))
	}
	if e.gatherer == nil {
		e.gatherer = probe.NewGatherer(probe.WithGathererLogger(e.logger))
	}
	if e.inspector == nil {
		e.inspector = inspect.New(inspect.WithLogger(e.logger))
	}
	return e
}

// Cache returns the engine's result cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Scan assesses rawURL. It never fails: errors that stop the scan are
// turned into a degraded result, which is not cached.
func (e *Engine) Scan(ctx context.Context, rawURL string) *model.ScanResult {
	target, err := model.NormalizeURL(rawURL)
	if err != nil {
		e.logger.Warn("invalid url", "url", rawURL, "error", err)
		return risk.Classify(strings.TrimSpace(rawURL), err, e.now())
	}

	if cached, ok := e.cache.Get(target); ok {
		e.logger.Debug("cache hit", "url", target)
		return cached
	}

	result := e.scan(ctx, target)
	if !result.Degraded() {
		e.cache.Put(target, result)
	}
	e.save(ctx, result)

	e.logger.Info("scan completed",
		"url", target,
		"threat_level", result.ThreatLevel,
		"threat_score", result.ThreatScore,
		"security_score", result.Security.Score,
		"degraded", result.Degraded(),
	)
	return result
}

// scan runs the pipeline for a normalized URL.
func (e *Engine) scan(ctx context.Context, target string) (result *model.ScanResult) {
	start := e.now()
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("scan panicked", "url", target, "panic", p)
			result = risk.Classify(target, fmt.Errorf("%w: panic: %v", model.ErrScanFailed, p), start)
		}
	}()

	session, err := e.launcher.Launch(ctx)
	if err != nil {
		return risk.Classify(target, fmt.Errorf("launch browser: %w", err), start)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Debug("browser close failed", "url", target, "error", err)
		}
	}()

	scan := &Scan{
		URL:     target,
		Result:  model.NewScanResult(target, start),
		Session: session,
	}
	if err := e.newPipeline(target).Execute(ctx, scan); err != nil {
		return risk.Classify(target, err, start)
	}
	return scan.Result
}

// newPipeline builds the step sequence of one scan.
func (e *Engine) newPipeline(target string) *Pipeline {
	navTimeout, screenshot := e.navTimeout, e.screenshot
	if e.policy != nil {
		hp := e.policy(model.Hostname(target))
		if hp.NavigationTimeout > 0 {
			navTimeout = hp.NavigationTimeout
		}
		if hp.Screenshot != nil {
			screenshot = *hp.Screenshot
		}
	}

	p := New(WithLogger(e.logger))
	p.AddSteps(
		NewNavigateStep(navTimeout),
		NewCaptureStep(
			WithRetries(e.retries),
			WithBackoff(e.backoff),
			WithScreenshot(screenshot),
			WithCaptureLogger(e.logger),
		),
		NewProbeStep(e.gatherer),
		NewInspectStep(e.inspector),
		NewPostureStep(),
		NewVerdictStep(),
	)
	return p
}

func (e *Engine) save(ctx context.Context, result *model.ScanResult) {
	if e.history == nil {
		return
	}
	// A cancelled scan is still worth recording.
	id, err := e.history.Save(context.WithoutCancel(ctx), result)
	if err != nil {
		e.logger.Warn("failed to save scan history", "url", result.URL, "error", err)
		return
	}
	e.logger.Debug("scan saved", "url", result.URL, "id", id)
}
