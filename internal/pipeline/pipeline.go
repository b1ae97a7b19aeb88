package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/urlrisk/internal/browser"
	"github.com/nao1215/urlrisk/internal/inspect"
	"github.com/nao1215/urlrisk/internal/model"
	"github.com/nao1215/urlrisk/internal/probe"
)

// Scan is the state shared by the steps of one scan.
type Scan struct {
	// URL is the normalized target.
	URL string

	// Result is filled in by the steps.
	Result *model.ScanResult

	// Session is the browser used for this scan.
	Session browser.Session

	// HTML is the captured DOM, empty when the capture failed.
	HTML string

	// Cookies are the cookies read after the page loaded.
	Cookies []model.Cookie

	// Intel holds the probe outcomes.
	Intel probe.Intel

	// Page is the inspector report.
	Page inspect.Report
}

// Step is one stage of a scan.
type Step interface {
	// Do runs the step. A returned error aborts the scan; steps that can
	// degrade gracefully record defaults in the Scan and return nil.
	Do(ctx context.Context, scan *Scan) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step in order and stops at the first error.
// Cancellation is checked before each step; steps handle their own timeouts.
func (p *Pipeline) Execute(ctx context.Context, scan *Scan) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", scan.URL,
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", scan.URL,
		)
		if err := step.Do(ctx, scan); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", scan.URL,
				"error", err,
			)
			return err
		}
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
