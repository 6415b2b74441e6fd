// Package pipeline sequences the fixed step order over a project document.
// Runner executes one step with the ordering and persistence contract;
// Controller drives a project forward to a terminal step, resuming after the
// last successful one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tracksmith/internal/logging"
	"tracksmith/internal/project"
	"tracksmith/internal/services"
)

// StepFunc executes one pipeline step against a project.
type StepFunc func(ctx context.Context, p *project.Project) error

// StepSet maps executable steps to their implementations.
type StepSet map[project.Step]StepFunc

// Runner executes single steps with the persistence contract: attempt
// recorded before the step runs, outcome recorded after, partial outputs
// always kept.
type Runner struct {
	store           *project.Store
	steps           StepSet
	logger          *slog.Logger
	maxStepAttempts int
}

// NewRunner builds a step runner. maxStepAttempts <= 0 disables the
// project-level cap.
func NewRunner(store *project.Store, steps StepSet, logger *slog.Logger, maxStepAttempts int) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{store: store, steps: steps, logger: logger, maxStepAttempts: maxStepAttempts}
}

// RunStep executes one step. The step must be the immediate successor of the
// last successful step, or the step already marked current so an interrupted
// invocation can be re-entered. Anything else is an ordering violation.
func (r *Runner) RunStep(ctx context.Context, p *project.Project, step project.Step) error {
	fn, ok := r.steps[step]
	if !ok {
		return services.Wrap(services.ErrValidation, string(step), "run", "no implementation registered", nil)
	}
	if err := r.checkOrder(p, step); err != nil {
		return err
	}
	if r.maxStepAttempts > 0 && p.Status.Attempts[step] >= r.maxStepAttempts {
		return services.Wrap(services.ErrAttemptCapExhausted, string(step), "run",
			fmt.Sprintf("step attempted %d times (cap %d)", p.Status.Attempts[step], r.maxStepAttempts), nil)
	}

	log := logging.WithContext(ctx, r.logger).With(
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldStep, string(step)))

	p.BeginStep(step)
	if err := r.store.Save(p); err != nil {
		return err
	}
	log.Info("step started",
		logging.String(logging.FieldEventType, "step_started"),
		logging.Int(logging.FieldAttempt, p.Status.Attempts[step]))

	started := time.Now()
	err := fn(ctx, p)
	elapsed := time.Since(started)

	if err != nil {
		p.MarkStepFailed(step, err)
		if saveErr := r.store.Save(p); saveErr != nil {
			log.Error("failed to persist step failure", logging.Error(saveErr))
		}
		log.Error("step failed",
			logging.String(logging.FieldEventType, "step_failed"),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.Duration("elapsed", elapsed),
			logging.Error(err))
		return err
	}

	p.MarkStepSucceeded(step)
	if _, more := p.NextStep(); !more {
		p.Status.CurrentStep = project.StepDone
	}
	if err := r.store.Save(p); err != nil {
		return err
	}
	log.Info("step succeeded",
		logging.String(logging.FieldEventType, "step_succeeded"),
		logging.Duration("elapsed", elapsed))
	return nil
}

func (r *Runner) checkOrder(p *project.Project, step project.Step) error {
	if next, ok := p.NextStep(); ok && step == next {
		return nil
	}
	// Re-entry after a crash or failure: the step that was in flight may
	// run again.
	if step == p.Status.CurrentStep {
		return nil
	}
	return services.Wrap(services.ErrOutOfOrderStep, string(step), "run",
		fmt.Sprintf("last successful step is %q", p.Status.LastSuccessfulStep), nil)
}

// Controller drives a project through the remaining steps in order.
type Controller struct {
	runner *Runner
	logger *slog.Logger
}

// NewController builds a controller over runner.
func NewController(runner *Runner, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{runner: runner, logger: logger}
}

// RunTo resumes the project from its next step and executes steps in order
// until terminal has succeeded, the pipeline completes, or a step fails.
// Terminal may be empty to run to the end.
func (c *Controller) RunTo(ctx context.Context, p *project.Project, terminal project.Step) error {
	if terminal != "" && terminal.Index() < 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "run", fmt.Sprintf("unknown step %q", terminal), nil)
	}
	for {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTimeout, "pipeline", "run", "cancelled", err)
		}
		next, ok := p.NextStep()
		if !ok {
			return nil
		}
		if terminal != "" && next.Index() > terminal.Index() {
			return nil
		}
		if err := c.runner.RunStep(ctx, p, next); err != nil {
			return err
		}
	}
}
