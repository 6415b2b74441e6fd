// Package project owns the durable per-project state document.
//
// One project is one pipeline run: its configuration, step status, planning
// output, generated tracks, review verdicts, render artifacts, and upload
// result all live in a single project.json under the project directory. The
// document is the only source of truth for resume decisions; the Store writes
// it atomically (temp file + rename) so a crash never leaves a torn document.
//
// Step names and track statuses are closed typed enums. Status transitions go
// through the mutator methods (BeginStep, MarkStepSucceeded, MarkStepFailed)
// which enforce the forward-only invariant on LastSuccessfulStep and keep
// LastError consistent with the most recent step outcome.
package project
