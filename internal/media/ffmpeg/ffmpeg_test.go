package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestEscapeDrawText(t *testing.T) {
	got := escapeDrawText(`Night: 'Focus' = 100%`)
	want := `Night\: \'Focus\' \= 100%`
	if got != want {
		t.Fatalf("escapeDrawText = %q, want %q", got, want)
	}
}

func TestDrawTextFilter(t *testing.T) {
	filter := drawTextFilter("Deep Focus", 75, "0xF6F6F0", "h*0.66", "")
	for _, fragment := range []string{
		"drawtext=text='Deep Focus'",
		"fontsize=75",
		"fontcolor=0xF6F6F0",
		"x=(w-text_w)/2",
		"y=h*0.66",
	} {
		if !strings.Contains(filter, fragment) {
			t.Fatalf("filter missing %q: %s", fragment, filter)
		}
	}
	if strings.Contains(filter, "fontfile") {
		t.Fatalf("fontfile should be omitted when empty: %s", filter)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "track_00.mp3")
	second := filepath.Join(dir, "it's here.mp3")

	path, err := writeConcatList([]string{first, second})
	if err != nil {
		t.Fatalf("writeConcatList failed: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "file '") || !strings.Contains(lines[0], "track_00.mp3") {
		t.Fatalf("unexpected first entry: %s", lines[0])
	}
	if !strings.Contains(lines[1], `'\''`) {
		t.Fatalf("single quote not escaped: %s", lines[1])
	}
}

// stubBinary writes an executable script that prints the given stderr-style
// output and exits 0, standing in for ffmpeg.
func stubBinary(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binary requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nprintf '%s\\n' \"" + output + "\"\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestLeadingSilenceParsesDetectorOutput(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(stubBinary(t, "silence_start: 0.0 silence_end: 4.2"))
	silence, found, err := runner.LeadingSilence(context.Background(), audio, -50, 5)
	if err != nil {
		t.Fatalf("LeadingSilence failed: %v", err)
	}
	if !found || silence != 4.2 {
		t.Fatalf("got silence=%v found=%v", silence, found)
	}
}

func TestLeadingSilenceIgnoresLateSilence(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(stubBinary(t, "silence_start: 2.5 silence_end: 4.0"))
	_, found, err := runner.LeadingSilence(context.Background(), audio, -50, 5)
	if err != nil {
		t.Fatalf("LeadingSilence failed: %v", err)
	}
	if found {
		t.Fatal("silence after the head must not count as leading silence")
	}
}

func TestLeadingSilenceNoSilence(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(audio, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(stubBinary(t, "frame=1 fps=0"))
	_, found, err := runner.LeadingSilence(context.Background(), audio, -50, 5)
	if err != nil {
		t.Fatalf("LeadingSilence failed: %v", err)
	}
	if found {
		t.Fatal("expected no leading silence")
	}
}
