// Package services defines the shared error taxonomy for provider calls and
// pipeline steps.
//
// Errors are tagged with sentinel markers (ErrAuth, ErrRateLimit, ...) so
// callers can classify failures with errors.Is without parsing messages. Wrap
// builds tagged errors that carry step and operation context; Classify maps
// any error back to the persisted taxonomy (kind, provider, truncated raw
// diagnostic). The retry policy consults IsRetriable to decide whether a
// failure is worth another attempt.
//
// Provider clients live in subpackages (gemini, suno, youtube) and return
// errors tagged through this package so the rest of the system never depends
// on provider wire formats.
package services
