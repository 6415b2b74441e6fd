package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tracksmith/internal/config"
	"tracksmith/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.Gemini{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.5-flash",
	})
}

func modelResponse(text string) []byte {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestGeneratePlan(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in request: %s", r.URL.String())
		}
		text := "```json\n[{\"style\": \"Ambient\", \"title\": \"Still Water\", \"prompt\": \"Slow pads\"}," +
			"{\"style\": \"Jazz\", \"title\": \"Night Walk\", \"prompt\": \"Brushed drums\"}]\n```"
		w.Write(modelResponse(text))
	})

	drafts, err := client.GeneratePlan(context.Background(), PlanRequest{Theme: "focus", JobCount: 2})
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if len(drafts) != 2 || drafts[0].Style != "Ambient" || drafts[1].Title != "Night Walk" {
		t.Fatalf("unexpected drafts: %+v", drafts)
	}
}

func TestGeneratePlanRejectsWrongJobCount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelResponse(`[{"style": "Ambient", "title": "One", "prompt": "x"}]`))
	})

	_, err := client.GeneratePlan(context.Background(), PlanRequest{Theme: "focus", JobCount: 3})
	if services.KindOf(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGeneratePlanClassifiesRateLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.GeneratePlan(context.Background(), PlanRequest{Theme: "focus", JobCount: 1})
	if !errors.Is(err, services.ErrRateLimit) {
		t.Fatalf("expected rate limit marker, got %v", err)
	}
	if services.ProviderOf(err) != services.ProviderGemini {
		t.Fatalf("provider not tagged: %v", err)
	}
	if !services.IsRetriable(err) {
		t.Fatal("rate limit must be retriable")
	}
}

func TestGenerateMetadata(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelResponse(`{"title": "Deep Focus Mix", "description": "Chapters:\n00:00 Intro", "tags": ["focus", "study"]}`))
	})

	meta, err := client.GenerateMetadata(context.Background(), "focus", 6)
	if err != nil {
		t.Fatalf("GenerateMetadata failed: %v", err)
	}
	if meta.Title != "Deep Focus Mix" || len(meta.Tags) != 2 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"plain":                      "plain",
		"```json\n{\"a\": 1}\n```":   `{"a": 1}`,
		"```\n[1, 2]\n```":           "[1, 2]",
		"noise ```json\n{}\n``` end": "{}",
	}
	for input, want := range cases {
		if got := stripCodeFences(input); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", input, got, want)
		}
	}
}
