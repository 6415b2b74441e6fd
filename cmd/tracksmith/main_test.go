package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
projects_dir = %q
queue_dir = %q
channels_dir = %q
log_dir = %q

[logging]
level = "error"
format = "json"
`,
		filepath.Join(base, "projects"),
		filepath.Join(base, "queue"),
		filepath.Join(base, "channels"),
		filepath.Join(base, "logs"))
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewAndShowProject(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "new", "deep focus", "--tracks", "4")
	if err != nil {
		t.Fatalf("new failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created project") {
		t.Fatalf("unexpected output: %s", out)
	}

	listOut, err := runCommand(t, "--config", cfgPath, "projects", "--json")
	if err != nil {
		t.Fatalf("projects failed: %v\n%s", err, listOut)
	}
	if !strings.Contains(listOut, "deep-focus") {
		t.Fatalf("project id missing from listing: %s", listOut)
	}

	// Extract the id from the create output.
	var id string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Created project ") {
			id = strings.TrimPrefix(line, "Created project ")
		}
	}
	showOut, err := runCommand(t, "--config", cfgPath, "show", id, "--json")
	if err != nil {
		t.Fatalf("show failed: %v\n%s", err, showOut)
	}
	if !strings.Contains(showOut, `"theme": "deep focus"`) {
		t.Fatalf("unexpected show output: %s", showOut)
	}
	if !strings.Contains(showOut, `"track_count": 4`) {
		t.Fatalf("track count flag ignored: %s", showOut)
	}
}

func TestShowUnknownProject(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", cfgPath, "show", "missing"); err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestQueueAddAndList(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", cfgPath, "queue", "add", "rainy night", "--count", "2", "--to", "review")
	if err != nil {
		t.Fatalf("queue add failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "rainy night #1") || !strings.Contains(out, "rainy night #2") {
		t.Fatalf("batch suffixing missing: %s", out)
	}

	listOut, err := runCommand(t, "--config", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v\n%s", err, listOut)
	}
	if !strings.Contains(listOut, "pending 2") {
		t.Fatalf("unexpected queue list output: %s", listOut)
	}
}

func TestQueueAddRejectsBadStep(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", cfgPath, "queue", "add", "theme", "--to", "teleport"); err == nil {
		t.Fatal("expected rejection of unknown terminal step")
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if !strings.Contains(string(data), "[gemini]") {
		t.Fatalf("sample config incomplete: %s", data)
	}

	// A second init without --overwrite refuses to clobber.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestChannelsListEmpty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", cfgPath, "channels")
	if err != nil {
		t.Fatalf("channels failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No channel profiles") {
		t.Fatalf("unexpected output: %s", out)
	}
}
