package project

import (
	"fmt"
	"time"

	"tracksmith/internal/textutil"
)

// NewID builds a time-ordered project identifier with a human-readable theme
// slug suffix, e.g. "20260901_143000_deep-focus".
func NewID(theme string, now time.Time) string {
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), textutil.Slug(theme, "project"))
}
