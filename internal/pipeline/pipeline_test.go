package pipeline

import (
	"context"
	"errors"
	"testing"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, scan *Scan) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, scan *Scan) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, scan)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("starts empty", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
	})

	t.Run("maintains step order", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{name: "first"})
		p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

		names := p.StepNames()
		expected := []string{"first", "second", "third"}
		if len(names) != len(expected) {
			t.Fatalf("expected %d steps, got %d", len(expected), len(names))
		}
		for i, name := range names {
			if name != expected[i] {
				t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
			}
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *Scan) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(record("a"), record("b"), record("c"))
		if err := p.Execute(context.Background(), &Scan{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("execution order = %v", order)
		}
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		errStep := errors.New("step failed")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *Scan) error { return errStep }}
		after := &mockStep{name: "after"}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(&mockStep{name: "before"}, failing, after)

		err := p.Execute(context.Background(), &Scan{})
		if !errors.Is(err, errStep) {
			t.Errorf("expected %v, got %v", errStep, err)
		}
		if after.callCount != 0 {
			t.Error("step after the failure should not run")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		step := &mockStep{name: "never"}

		p := New(WithLogger(discardLogger()))
		p.AddStep(step)
		if err := p.Execute(ctx, &Scan{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not run after cancellation")
		}
	})
}

func TestEnginePipelineSteps(t *testing.T) {
	t.Parallel()

	e := newTestEngine(&fakeLauncher{}, &fakeGatherer{})
	got := e.newPipeline("https://example.com/").StepNames()
	want := []string{"navigate", "capture", "probe", "inspect", "posture", "verdict"}
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("steps = %v, want %v", got, want)
			break
		}
	}
}
