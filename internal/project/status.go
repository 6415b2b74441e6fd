package project

import (
	"time"

	"tracksmith/internal/services"
)

// BeginStep marks step as in-flight and increments its attempt counter.
// Attempt counters are monotonic; they are never reset by the pipeline.
func (p *Project) BeginStep(step Step) {
	p.Status.CurrentStep = step
	if p.Status.Attempts == nil {
		p.Status.Attempts = make(map[Step]int)
	}
	p.Status.Attempts[step]++
}

// MarkStepSucceeded records a successful step invocation. LastSuccessfulStep
// only ever advances; re-running an earlier step never moves it backwards.
func (p *Project) MarkStepSucceeded(step Step) {
	p.Status.CurrentStep = step
	if step.Index() > p.Status.LastSuccessfulStep.Index() {
		p.Status.LastSuccessfulStep = step
	}
	p.Status.LastError = nil
}

// MarkStepFailed records a failed step invocation, classifying err into the
// persisted taxonomy. The raw diagnostic is truncated; step logs keep the
// full form.
func (p *Project) MarkStepFailed(step Step, err error) {
	p.Status.CurrentStep = step
	details := services.Classify(err)
	p.Status.LastError = &LastError{
		Step:     step,
		Message:  details.Message,
		Kind:     string(details.Kind),
		Provider: details.Provider,
		Raw:      details.Raw,
		At:       time.Now().UTC(),
	}
}

// NextStep returns the step that should run next given the last successful
// step, or ("", false) when the pipeline is complete.
func (p *Project) NextStep() (Step, bool) {
	last := p.Status.LastSuccessfulStep
	if last == "" || last == StepCreated {
		return stepOrder[0], true
	}
	idx := last.Index()
	if idx < 0 || idx+1 >= len(stepOrder) {
		return "", false
	}
	return stepOrder[idx+1], true
}
