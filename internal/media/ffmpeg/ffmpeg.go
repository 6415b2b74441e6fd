// Package ffmpeg drives the ffmpeg binary for the audio and video work the
// pipeline needs: concatenating tracks, loudness normalization, still-image
// video muxing, thumbnail text overlay, and leading-silence detection.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"tracksmith/internal/fileutil"
	"tracksmith/internal/services"
)

// Runner executes ffmpeg commands with a fixed binary path.
type Runner struct {
	binary string
}

// NewRunner builds a runner for the given ffmpeg binary. An empty binary
// falls back to "ffmpeg" on PATH.
func NewRunner(binary string) *Runner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{binary: binary}
}

// Binary returns the configured ffmpeg binary path.
func (r *Runner) Binary() string { return r.binary }

// CheckAvailable verifies the binary runs at all.
func (r *Runner) CheckAvailable(ctx context.Context) error {
	if _, err := r.run(ctx, "-version"); err != nil {
		return err
	}
	return nil
}

// GenerateBackground writes a solid black background image sized for the
// output video. Used when a project supplies no background asset.
func (r *Runner) GenerateBackground(ctx context.Context, outputPath string, width, height int) error {
	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}
	_, err := r.run(ctx,
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:d=1", width, height),
		"-frames:v", "1",
		"-y", outputPath,
	)
	if err != nil {
		return err
	}
	return requireOutput(outputPath, "background image")
}

// ConcatAudio joins the inputs in order using the concat demuxer with stream
// copy. Inputs must share a codec.
func (r *Runner) ConcatAudio(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) == 0 {
		return services.Wrap(services.ErrEncoding, "", "concat", "no input files", nil)
	}
	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			return services.Wrap(services.ErrEncoding, "", "concat", "missing input "+input, err)
		}
	}
	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}

	listFile, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	_, err = r.run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-y", outputPath,
	)
	if err != nil {
		return err
	}
	return requireOutput(outputPath, "concatenated audio")
}

// NormalizeLoudness runs a single-pass loudnorm targeting the given
// integrated loudness. -16 LUFS is the usual streaming target.
func (r *Runner) NormalizeLoudness(ctx context.Context, inputPath, outputPath string, targetLUFS float64) error {
	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}
	_, err := r.run(ctx,
		"-i", inputPath,
		"-af", fmt.Sprintf("loudnorm=I=%g:TP=-1.5:LRA=11", targetLUFS),
		"-y", outputPath,
	)
	if err != nil {
		return err
	}
	return requireOutput(outputPath, "normalized audio")
}

// VideoOptions shape the still-image render.
type VideoOptions struct {
	Width  int
	Height int
	FPS    int
}

// CreateVideo loops a still image for the duration of the audio and muxes
// them into an MP4 suitable for upload.
func (r *Runner) CreateVideo(ctx context.Context, imagePath, audioPath, outputPath string, opts VideoOptions) error {
	for _, input := range []string{imagePath, audioPath} {
		if _, err := os.Stat(input); err != nil {
			return services.Wrap(services.ErrEncoding, "", "render", "missing input "+input, err)
		}
	}
	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}
	_, err := r.run(ctx,
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.Itoa(opts.FPS),
		"-y", outputPath,
	)
	if err != nil {
		return err
	}
	return requireOutput(outputPath, "rendered video")
}

// OverlayOptions shape the thumbnail text overlay.
type OverlayOptions struct {
	Title        string
	Subtitle     string
	TextColor    string
	FontFile     string
	TitleSize    int
	SubtitleSize int
}

// OverlayText draws title and subtitle text onto an image for the thumbnail.
func (r *Runner) OverlayText(ctx context.Context, imagePath, outputPath string, opts OverlayOptions) error {
	if _, err := os.Stat(imagePath); err != nil {
		return services.Wrap(services.ErrEncoding, "", "thumbnail", "missing input "+imagePath, err)
	}
	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}
	color := opts.TextColor
	if color == "" {
		color = "0xF6F6F0"
	}
	titleSize := opts.TitleSize
	if titleSize <= 0 {
		titleSize = 75
	}
	subtitleSize := opts.SubtitleSize
	if subtitleSize <= 0 {
		subtitleSize = 55
	}

	filters := []string{
		drawTextFilter(opts.Title, titleSize, color, "h*0.66", opts.FontFile),
	}
	if strings.TrimSpace(opts.Subtitle) != "" {
		filters = append(filters, drawTextFilter(opts.Subtitle, subtitleSize, color, "h*0.78", opts.FontFile))
	}

	_, err := r.run(ctx,
		"-i", imagePath,
		"-vf", strings.Join(filters, ","),
		"-y", outputPath,
	)
	if err != nil {
		return err
	}
	return requireOutput(outputPath, "thumbnail")
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// LeadingSilence measures silence at the head of an audio file using the
// silencedetect filter over the first window seconds. It returns the silence
// duration and whether leading silence was found at all. Silence starting
// after the first half second is not leading silence.
func (r *Runner) LeadingSilence(ctx context.Context, audioPath string, thresholdDB, window float64) (float64, bool, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return 0, false, services.Wrap(services.ErrEncoding, "", "silencedetect", "missing input "+audioPath, err)
	}
	// silencedetect reports on stderr and the null muxer exits zero, so the
	// combined output is parsed regardless of exit status.
	output, err := r.run(ctx,
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=0.3", thresholdDB),
		"-t", fmt.Sprintf("%g", window),
		"-f", "null", "-",
	)
	if err != nil {
		return 0, false, err
	}

	startMatch := silenceStartRe.FindStringSubmatch(output)
	if startMatch == nil {
		return 0, false, nil
	}
	start, err := strconv.ParseFloat(startMatch[1], 64)
	if err != nil || start >= 0.5 {
		return 0, false, nil
	}
	if endMatch := silenceEndRe.FindStringSubmatch(output); endMatch != nil {
		end, err := strconv.ParseFloat(endMatch[1], 64)
		if err == nil {
			return end - start, true, nil
		}
	}
	// Silence runs past the analyzed window.
	return window - start, true, nil
}

func (r *Runner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "", "ffmpeg", strings.Join(args[:min(len(args), 2)], " "), ctx.Err())
		}
		detail := strings.TrimSpace(string(output))
		return "", services.Wrap(services.ErrEncoding, "", "ffmpeg", detail, err)
	}
	return string(output), nil
}

func writeConcatList(inputs []string) (string, error) {
	f, err := os.CreateTemp("", "tracksmith-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			abs = input
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		if _, err := fmt.Fprintf(f, "file '%s'\n", escaped); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("write concat list: %w", err)
		}
	}
	return f.Name(), nil
}

func drawTextFilter(text string, size int, color, y, fontFile string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "drawtext=text='%s'", escapeDrawText(text))
	fmt.Fprintf(&b, ":fontsize=%d:fontcolor=%s", size, color)
	b.WriteString(":borderw=2:bordercolor=black@0.25")
	b.WriteString(":shadowx=2:shadowy=4:shadowcolor=black@0.6")
	fmt.Fprintf(&b, ":x=(w-text_w)/2:y=%s", y)
	if fontFile != "" {
		fmt.Fprintf(&b, ":fontfile=%s", fontFile)
	}
	return b.String()
}

func escapeDrawText(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		":", `\:`,
		"'", `\'`,
		`"`, `\"`,
		"=", `\=`,
	)
	return replacer.Replace(text)
}

func requireOutput(path, what string) error {
	if _, err := os.Stat(path); err != nil {
		return services.Wrap(services.ErrEncoding, "", "ffmpeg", what+" was not created at "+path, err)
	}
	return nil
}
