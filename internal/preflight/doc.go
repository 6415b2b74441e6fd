// Package preflight provides readiness checks for external services and
// filesystem paths that tracksmith depends on.
//
// These checks run in two contexts:
//   - The queue runner calls RunAll before draining so a misconfigured
//     provider fails fast instead of burning generation credits mid-run.
//   - The CLI "tracksmith doctor" command uses the individual check
//     functions to display service health.
//
// Each check is gated by its config value; unconfigured features are
// reported but never block the others.
package preflight
