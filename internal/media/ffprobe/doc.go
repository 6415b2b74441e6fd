// Package ffprobe wraps the ffprobe binary for media inspection. Callers get
// typed access to the fields the pipeline cares about, primarily audio
// duration, without re-parsing ffprobe's JSON at each call site.
package ffprobe
