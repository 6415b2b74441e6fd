// Package suno implements the music-generation client. Jobs are submitted
// and then polled; the provider has no callback channel in this deployment.
// Each API call is single-shot so the retry policy stays with the caller.
package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tracksmith/internal/fileutil"
	"tracksmith/internal/services"
)

const defaultBaseURL = "https://api.sunoapi.org"

// JobState is the lifecycle state of a submitted generation task.
type JobState string

const (
	StatePending  JobState = "pending"
	StateComplete JobState = "complete"
	StateFailed   JobState = "failed"
)

// SubmitRequest describes one generation job.
type SubmitRequest struct {
	Style        string
	Title        string
	Lyrics       string
	Instrumental bool
}

// Variant is one generated artifact within a task.
type Variant struct {
	ID              string
	Title           string
	AudioURL        string
	DurationSeconds float64
}

// JobStatus is the decoded poll result for a task.
type JobStatus struct {
	State    JobState
	Variants []Variant
	Message  string
	Raw      string
}

// Client talks to the Suno REST API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

// Config holds client construction settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// New builds a client.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "V4_5ALL"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Submit posts a generation job and returns the provider task id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if !req.Instrumental && strings.TrimSpace(req.Lyrics) == "" {
		return "", services.TagProvider(services.ProviderSuno,
			services.Wrap(services.ErrValidation, "generate", "submit", "lyrics are required for vocal tracks", nil))
	}

	payload := map[string]any{
		"customMode":   true,
		"instrumental": req.Instrumental,
		"model":        c.model,
		"style":        req.Style,
		"title":        req.Title,
	}
	if !req.Instrumental {
		payload["prompt"] = req.Lyrics
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/generate", payload, "submit")
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", c.wrapHTTP("submit", "decode response", err)
	}
	if env.Code != 200 {
		return "", services.TagProvider(services.ProviderSuno,
			services.Wrap(services.ErrProviderHTTP, "generate", "submit",
				fmt.Sprintf("api code %d: %s", env.Code, env.Msg), nil))
	}
	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || strings.TrimSpace(data.TaskID) == "" {
		return "", services.TagProvider(services.ProviderSuno,
			services.Wrap(services.ErrProviderHTTP, "generate", "submit", "response missing taskId", err))
	}
	return data.TaskID, nil
}

// Status polls the record-info endpoint for a task. A task is complete once
// at least one variant carries an audio URL.
func (c *Client) Status(ctx context.Context, taskID string) (JobStatus, error) {
	path := "/api/v1/generate/record-info?taskId=" + url.QueryEscape(taskID)
	body, err := c.do(ctx, http.MethodGet, path, nil, "status")
	if err != nil {
		return JobStatus{}, err
	}

	status := JobStatus{Raw: string(body)}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return JobStatus{}, c.wrapHTTP("status", "decode response", err)
	}
	if env.Code != 200 {
		status.State = StateFailed
		status.Message = env.Msg
		return status, nil
	}

	var data struct {
		Response struct {
			SunoData []struct {
				ID       string  `json:"id"`
				Title    string  `json:"title"`
				AudioURL string  `json:"audioUrl"`
				Duration float64 `json:"duration"`
			} `json:"sunoData"`
		} `json:"response"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return JobStatus{}, c.wrapHTTP("status", "decode task data", err)
	}

	hasAudio := false
	for _, entry := range data.Response.SunoData {
		variant := Variant{
			ID:              entry.ID,
			Title:           entry.Title,
			AudioURL:        entry.AudioURL,
			DurationSeconds: entry.Duration,
		}
		if strings.TrimSpace(variant.AudioURL) != "" {
			hasAudio = true
		}
		status.Variants = append(status.Variants, variant)
	}
	if hasAudio {
		status.State = StateComplete
	} else {
		status.State = StatePending
		status.Variants = nil
	}
	return status, nil
}

// Download fetches an audio URL to a local file, creating parent directories.
func (c *Client) Download(ctx context.Context, audioURL, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return c.wrapHTTP("download", "build request", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return c.wrapHTTP("download", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.NewStatusError(services.ProviderSuno, "download", resp.StatusCode, string(body))
	}

	if err := fileutil.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".download-*")
	if err != nil {
		return fmt.Errorf("suno download: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return c.wrapHTTP("download", "copy body", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("suno download: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return fmt.Errorf("suno download: finalize %s: %w", outputPath, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, operation string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("suno %s: encode request: %w", operation, err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("suno %s: build request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, c.wrapHTTP(operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, c.wrapHTTP(operation, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.NewStatusError(services.ProviderSuno, operation, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) wrapHTTP(operation, message string, err error) error {
	return services.TagProvider(services.ProviderSuno,
		services.Wrap(services.ErrProviderHTTP, "generate", operation, message, err))
}
