// Package review implements the quality-control step. Every ok track is
// checked for a present audio file, a minimum duration, and excessive
// leading silence; manual approved.txt / rejected.txt files in the project
// directory override the automated verdict. Reports land in output/ and the
// verdicts are persisted onto each track.
package review

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tracksmith/internal/fileutil"
	"tracksmith/internal/logging"
	"tracksmith/internal/project"
	"tracksmith/internal/services"
)

// Prober measures an audio file's duration in seconds.
type Prober func(ctx context.Context, path string) (float64, error)

// SilenceDetector measures leading silence. found is false when the file
// does not open with silence.
type SilenceDetector func(ctx context.Context, path string) (seconds float64, found bool, err error)

// Thresholds are the QC limits for one run.
type Thresholds struct {
	MinTrackSeconds          float64
	MaxLeadingSilenceSeconds float64
}

// Stage runs the review step for one project.
type Stage struct {
	store      *project.Store
	prober     Prober
	silence    SilenceDetector
	thresholds Thresholds
	logger     *slog.Logger
}

// NewStage builds the review stage. silence may be nil to skip the leading
// silence check.
func NewStage(store *project.Store, prober Prober, silence SilenceDetector, thresholds Thresholds, logger *slog.Logger) *Stage {
	if thresholds.MinTrackSeconds <= 0 {
		thresholds.MinTrackSeconds = 60
	}
	if thresholds.MaxLeadingSilenceSeconds <= 0 {
		thresholds.MaxLeadingSilenceSeconds = 3
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		store:      store,
		prober:     prober,
		silence:    silence,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Run evaluates every ok track, writes the QC reports, and records the
// approved and rejected sets. The step fails when no track is approved,
// since the render step would have nothing to work with.
func (s *Stage) Run(ctx context.Context, p *project.Project) error {
	log := logging.WithContext(ctx, s.logger)
	projectDir := s.store.Dir(p.ID)

	manualApproved, err := readIndexFile(filepath.Join(projectDir, "approved.txt"))
	if err != nil {
		return err
	}
	manualRejected, err := readIndexFile(filepath.Join(projectDir, "rejected.txt"))
	if err != nil {
		return err
	}

	var approved, rejected []int
	reviewed := 0
	for i := range p.Tracks {
		track := &p.Tracks[i]
		if track.Status != project.TrackOK || track.AudioPath == "" {
			continue
		}
		reviewed++

		qc := s.evaluate(ctx, log, track, projectDir, manualApproved, manualRejected)
		track.QC = qc
		if qc.Passed {
			approved = append(approved, track.TrackIndex)
		} else {
			rejected = append(rejected, track.TrackIndex)
		}
	}
	sort.Ints(approved)
	sort.Ints(rejected)

	summary := map[string]int{
		"total_tracks":   reviewed,
		"approved_count": len(approved),
		"rejected_count": len(rejected),
	}

	jsonPath, txtPath, err := s.writeReports(p, projectDir, approved, rejected, summary)
	if err != nil {
		return err
	}

	p.Review = &project.ReviewData{
		ReportJSONPath: jsonPath,
		ReportTextPath: txtPath,
		Approved:       approved,
		Rejected:       rejected,
		Summary:        summary,
	}
	if err := s.store.Save(p); err != nil {
		return err
	}

	log.Info("review complete",
		logging.String(logging.FieldEventType, "review_complete"),
		logging.Int("reviewed", reviewed),
		logging.Int("approved", len(approved)),
		logging.Int("rejected", len(rejected)))

	if len(approved) == 0 {
		return services.Wrap(services.ErrValidation, "review", "approve",
			fmt.Sprintf("no tracks approved (%d reviewed, %d rejected)", reviewed, len(rejected)), nil)
	}
	return nil
}

func (s *Stage) evaluate(ctx context.Context, log *slog.Logger, track *project.Track, projectDir string, manualApproved, manualRejected map[int]bool) *project.TrackQC {
	qc := &project.TrackQC{Passed: true, Measured: map[string]float64{}}

	if manualRejected[track.TrackIndex] {
		qc.Passed = false
		qc.Issues = append(qc.Issues, project.QCIssue{
			Code:    "manually_rejected",
			Message: "track rejected via rejected.txt",
		})
		return qc
	}
	if manualApproved[track.TrackIndex] {
		qc.Issues = append(qc.Issues, project.QCIssue{
			Code:    "manually_approved",
			Message: "track approved via approved.txt",
		})
		return qc
	}

	audioPath := filepath.Join(projectDir, track.AudioPath)
	if _, err := os.Stat(audioPath); err != nil {
		qc.Passed = false
		qc.Issues = append(qc.Issues, project.QCIssue{
			Code:    "missing_file",
			Message: "audio file not found: " + track.AudioPath,
		})
		return qc
	}

	duration, err := s.prober(ctx, audioPath)
	if err != nil {
		qc.Passed = false
		qc.Issues = append(qc.Issues, project.QCIssue{
			Code:    "duration_check_failed",
			Message: "failed to measure duration: " + err.Error(),
		})
		return qc
	}
	qc.Measured["duration_seconds"] = duration
	if duration < s.thresholds.MinTrackSeconds {
		qc.Passed = false
		qc.Issues = append(qc.Issues, project.QCIssue{
			Code:    "too_short",
			Message: fmt.Sprintf("duration %.2fs is below minimum %.2fs", duration, s.thresholds.MinTrackSeconds),
			Value:   duration,
		})
		return qc
	}

	if s.silence != nil {
		silence, found, err := s.silence(ctx, audioPath)
		if err != nil {
			// Silence detection failure is advisory, not a rejection.
			log.Warn("leading silence check failed",
				logging.Int("track_index", track.TrackIndex),
				logging.Error(err))
		} else if found {
			qc.Measured["leading_silence_seconds"] = silence
			if silence > s.thresholds.MaxLeadingSilenceSeconds {
				qc.Passed = false
				qc.Issues = append(qc.Issues, project.QCIssue{
					Code:    "leading_silence",
					Message: fmt.Sprintf("leading silence %.2fs exceeds maximum %.2fs", silence, s.thresholds.MaxLeadingSilenceSeconds),
					Value:   silence,
				})
			}
		}
	}
	return qc
}

func (s *Stage) writeReports(p *project.Project, projectDir string, approved, rejected []int, summary map[string]int) (string, string, error) {
	outputDir := filepath.Join(projectDir, "output")
	if err := fileutil.EnsureDir(outputDir); err != nil {
		return "", "", err
	}

	type trackReport struct {
		TrackIndex int                `json:"track_index"`
		Passed     bool               `json:"passed"`
		Issues     []project.QCIssue  `json:"issues,omitempty"`
		Measured   map[string]float64 `json:"measured,omitempty"`
	}
	var tracks []trackReport
	for _, track := range p.Tracks {
		if track.QC == nil {
			continue
		}
		tracks = append(tracks, trackReport{
			TrackIndex: track.TrackIndex,
			Passed:     track.QC.Passed,
			Issues:     track.QC.Issues,
			Measured:   track.QC.Measured,
		})
	}

	report := map[string]any{
		"project_id": p.ID,
		"channel_id": p.ChannelID,
		"summary":    summary,
		"qc_thresholds": map[string]float64{
			"min_track_seconds":           s.thresholds.MinTrackSeconds,
			"max_leading_silence_seconds": s.thresholds.MaxLeadingSilenceSeconds,
		},
		"tracks": tracks,
	}
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode qc report: %w", err)
	}
	jsonData = append(jsonData, '\n')
	jsonRel := filepath.Join("output", "qc_report.json")
	if err := fileutil.WriteFileAtomic(filepath.Join(projectDir, jsonRel), jsonData, 0o644); err != nil {
		return "", "", err
	}

	var b strings.Builder
	rule := strings.Repeat("=", 72)
	fmt.Fprintf(&b, "%s\nQC Report\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Project: %s\n", p.ID)
	fmt.Fprintf(&b, "Reviewed: %d  Approved: %d  Rejected: %d\n\n", summary["total_tracks"], len(approved), len(rejected))
	for _, tr := range tracks {
		verdict := "PASS"
		if !tr.Passed {
			verdict = "FAIL"
		}
		fmt.Fprintf(&b, "Track %d: %s\n", tr.TrackIndex, verdict)
		for key, value := range tr.Measured {
			fmt.Fprintf(&b, "  %s: %.2f\n", key, value)
		}
		for _, issue := range tr.Issues {
			fmt.Fprintf(&b, "  [%s] %s\n", issue.Code, issue.Message)
		}
	}
	fmt.Fprintf(&b, "\nApproved: %s\nRejected: %s\n", joinIndexes(approved), joinIndexes(rejected))

	txtRel := filepath.Join("output", "qc_report.txt")
	if err := fileutil.WriteFileAtomic(filepath.Join(projectDir, txtRel), []byte(b.String()), 0o644); err != nil {
		return "", "", err
	}
	return jsonRel, txtRel, nil
}

// readIndexFile parses one track index per line, ignoring blanks and #
// comments. Unparseable lines are skipped rather than failing the step.
func readIndexFile(path string) (map[int]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer file.Close()

	indexes := map[int]bool{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx, err := strconv.Atoi(line); err == nil {
			indexes[idx] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return indexes, nil
}

func joinIndexes(indexes []int) string {
	if len(indexes) == 0 {
		return "(none)"
	}
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ", ")
}
