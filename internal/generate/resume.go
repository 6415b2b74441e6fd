package generate

import (
	"os"
	"path/filepath"

	"tracksmith/internal/project"
)

// slotClass describes where a (job, variant) slot stands on resume.
type slotClass int

const (
	// slotPending needs (re)generation: missing, failed under the attempt
	// cap, or marked ok with its audio file gone.
	slotPending slotClass = iota
	// slotComplete has a verified artifact on disk.
	slotComplete
	// slotExhausted failed at least the attempt cap times and is carried
	// forward as a permanent gap.
	slotExhausted
)

// TrackIndex maps a (job, variant) slot to its stable sequential index.
func TrackIndex(jobIndex, variantIndex, variantsPerJob int) int {
	return jobIndex*variantsPerJob + variantIndex
}

// classifySlot inspects the recorded track for a slot. A track marked ok only
// counts as complete when its audio file is still present; records are never
// trusted over the filesystem.
func classifySlot(track *project.Track, projectDir string, attemptCap int) slotClass {
	if track == nil {
		return slotPending
	}
	if track.Status == project.TrackOK && track.AudioPath != "" {
		if _, err := os.Stat(filepath.Join(projectDir, track.AudioPath)); err == nil {
			return slotComplete
		}
		return slotPending
	}
	if track.Status == project.TrackFailed && track.AttemptCount() >= attemptCap {
		return slotExhausted
	}
	return slotPending
}

// jobPlan is the per-job resume decision.
type jobPlan struct {
	spec project.JobSpec
	// pending holds the variant indexes that still need an artifact.
	pending []int
	// taskID is a previously recorded provider task for this job, if any.
	taskID string
}

// planJobs partitions the project's slots by job and decides which jobs need
// provider work. Jobs whose slots are all complete or exhausted are skipped.
func planJobs(p *project.Project, projectDir string, variantsPerJob, attemptCap int) []jobPlan {
	var plans []jobPlan
	for _, spec := range p.Plan.Jobs {
		plan := jobPlan{spec: spec}
		for variant := 0; variant < variantsPerJob; variant++ {
			track := p.TrackAt(spec.JobIndex, variant)
			if track != nil && plan.taskID == "" {
				plan.taskID = track.JobID
			}
			if classifySlot(track, projectDir, attemptCap) == slotPending {
				plan.pending = append(plan.pending, variant)
			}
		}
		if len(plan.pending) > 0 {
			plans = append(plans, plan)
		}
	}
	return plans
}

// pendingAfterRun counts slots that remain failed below the attempt cap.
// A nonzero count means the step must fail so a later re-run can resume.
func pendingAfterRun(p *project.Project, projectDir string, variantsPerJob, attemptCap int) int {
	pending := 0
	for _, spec := range p.Plan.Jobs {
		for variant := 0; variant < variantsPerJob; variant++ {
			track := p.TrackAt(spec.JobIndex, variant)
			if classifySlot(track, projectDir, attemptCap) == slotPending {
				pending++
			}
		}
	}
	return pending
}
