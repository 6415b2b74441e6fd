// Package gemini implements the planning client for the Gemini
// generateContent API. It produces job drafts, lyrics, and upload metadata
// from a project theme. Calls are single-shot; callers apply the retry
// policy.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tracksmith/internal/config"
	"tracksmith/internal/services"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// JobDraft is one planned track job returned by the model.
type JobDraft struct {
	Style  string `json:"style"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// Metadata is the planned upload metadata returned by the model.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// PlanRequest describes one planning call.
type PlanRequest struct {
	Theme         string
	JobCount      int
	VocalsEnabled bool
	StyleGuidance string
	EnergyLevel   string
	BannedTerms   []string
}

// Client talks to the Gemini REST API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

// New builds a client from configuration.
func New(cfg config.Gemini) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   model,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// GeneratePlan asks the model for JobCount track jobs matching the theme.
func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) ([]JobDraft, error) {
	prompt := buildPlanPrompt(req)
	text, err := c.complete(ctx, "generate_plan", prompt)
	if err != nil {
		return nil, err
	}

	var drafts []JobDraft
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &drafts); err != nil {
		return nil, services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrValidation, "plan", "generate_plan", "model returned unparseable JSON", err))
	}
	if len(drafts) != req.JobCount {
		return nil, services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrValidation, "plan", "generate_plan",
				fmt.Sprintf("expected %d jobs, got %d", req.JobCount, len(drafts)), nil))
	}
	for i := range drafts {
		drafts[i].Style = strings.TrimSpace(drafts[i].Style)
		drafts[i].Title = strings.TrimSpace(drafts[i].Title)
		drafts[i].Prompt = strings.TrimSpace(drafts[i].Prompt)
		if drafts[i].Style == "" || drafts[i].Title == "" || drafts[i].Prompt == "" {
			return nil, services.TagProvider(services.ProviderGemini,
				services.Wrap(services.ErrValidation, "plan", "generate_plan",
					fmt.Sprintf("job %d is missing style, title, or prompt", i), nil))
		}
	}
	return drafts, nil
}

// GenerateLyrics asks the model for original lyrics for one track.
func (c *Client) GenerateLyrics(ctx context.Context, style, title, theme string) (string, error) {
	prompt := fmt.Sprintf(`Generate original lyrics for a music track.

Style: %s
Title: %s
Theme: %s

Requirements:
- Original lyrics only, no quotes from existing songs
- No references to real artists and no brand names
- Simple chorus structure for listenability
- Max 5000 characters

Return only the lyrics text. Use [Verse] and [Chorus] tags if needed.`, style, title, theme)

	text, err := c.complete(ctx, "generate_lyrics", prompt)
	if err != nil {
		return "", err
	}
	lyrics := strings.TrimSpace(stripCodeFences(text))
	if lyrics == "" {
		return "", services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrValidation, "plan", "generate_lyrics", "model returned empty lyrics", nil))
	}
	if len(lyrics) > 5000 {
		lyrics = lyrics[:5000]
	}
	return lyrics, nil
}

// GenerateMetadata asks the model for upload title, description, and tags.
func (c *Client) GenerateMetadata(ctx context.Context, theme string, trackCount int) (Metadata, error) {
	prompt := fmt.Sprintf(`Generate video metadata for a music compilation.

Theme: %s
Number of tracks: %d

Generate:
1. A compelling title under 100 characters
2. A description including a "Chapters:" placeholder section
3. 5-10 relevant tags

Return JSON: {"title": "...", "description": "...", "tags": [...]}
Make sure the JSON is valid and parseable.`, theme, trackCount)

	text, err := c.complete(ctx, "generate_metadata", prompt)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &meta); err != nil {
		return Metadata{}, services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrValidation, "plan", "generate_metadata", "model returned unparseable JSON", err))
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Description = strings.TrimSpace(meta.Description)
	if meta.Title == "" || meta.Description == "" {
		return Metadata{}, services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrValidation, "plan", "generate_metadata", "metadata is missing title or description", nil))
	}
	if len(meta.Title) > 100 {
		meta.Title = meta.Title[:100]
	}
	return meta, nil
}

// HealthCheck verifies the API key works by fetching the configured model.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("gemini health check: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrProviderHTTP, "", "health_check", "request failed", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.NewStatusError(services.ProviderGemini, "health_check", resp.StatusCode, string(body))
	}
	return nil
}

// generateContent wire types.
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) complete(ctx context.Context, operation, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini %s: encode request: %w", operation, err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini %s: build request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrProviderHTTP, "plan", operation, "request failed", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrProviderHTTP, "plan", operation, "read response", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.NewStatusError(services.ProviderGemini, operation, resp.StatusCode, string(body))
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrProviderHTTP, "plan", operation, "decode response", err))
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", services.TagProvider(services.ProviderGemini,
			services.Wrap(services.ErrValidation, "plan", operation, "response has no candidates", nil))
	}
	var text strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}

func buildPlanPrompt(req PlanRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d music track jobs for a compilation with theme: %q.\n\n", req.JobCount, req.Theme)
	b.WriteString("For each job, generate:\n")
	b.WriteString("1. style: Music genre/style, max 1000 characters\n")
	b.WriteString("2. title: Track title, max 100 characters\n")
	b.WriteString("3. prompt: Musical description with mood, instrumentation, tempo, max 5000 characters\n")
	if req.VocalsEnabled {
		b.WriteString("   Include a description of the vocal style\n")
	} else {
		b.WriteString("   Instrumental only\n")
	}
	b.WriteString("\nRequirements:\n")
	b.WriteString("- Stay consistent with the theme\n")
	b.WriteString("- Use tight variations, re-using motifs for coherence\n")
	b.WriteString("- NO artist references, NO copyrighted lyrics, NO brand names\n")
	if req.EnergyLevel != "" {
		fmt.Fprintf(&b, "- Target energy level: %s\n", req.EnergyLevel)
	}
	if req.StyleGuidance != "" {
		fmt.Fprintf(&b, "- Style guidance: %s\n", req.StyleGuidance)
	}
	if len(req.BannedTerms) > 0 {
		fmt.Fprintf(&b, "- Avoid these terms entirely: %s\n", strings.Join(req.BannedTerms, ", "))
	}
	b.WriteString("\nReturn a JSON array: [{\"style\": \"...\", \"title\": \"...\", \"prompt\": \"...\"}, ...]\n")
	b.WriteString("Make sure the JSON is valid and parseable.")
	return b.String()
}

// stripCodeFences unwraps markdown code blocks the model sometimes emits
// around JSON payloads.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
