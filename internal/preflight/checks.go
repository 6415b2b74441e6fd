package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"tracksmith/internal/config"
	"tracksmith/internal/deps"
	"tracksmith/internal/services/gemini"
)

// CheckGemini verifies that the planning API is reachable and the key is
// valid. One attempt, 30-second timeout.
func CheckGemini(ctx context.Context, cfg config.Gemini) Result {
	const name = "Gemini"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := gemini.New(cfg)
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckAPIKey verifies a credential is configured. Presence only; the
// providers themselves reject bad keys at first use.
func CheckAPIKey(name, value string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinaries reports the media binaries the render and review steps
// shell out to.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     deps.ResolveFFmpegPath(cfg.Media.FFmpegBinary),
			Description: "Required for audio concat and video rendering",
		},
		{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobePath(cfg.Media.FFprobeBinary),
			Description: "Required for track duration checks",
		},
	})
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		detail := status.Command
		if !status.Available {
			detail = status.Detail
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: detail})
	}
	return results
}

// summarizeHealthError produces a human-readable summary for provider
// health check failures.
func summarizeHealthError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
