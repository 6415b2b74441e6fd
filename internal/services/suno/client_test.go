package suno

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tracksmith/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{APIKey: "test-key", BaseURL: server.URL})
}

func TestSubmit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["customMode"] != true || payload["instrumental"] != true {
			t.Errorf("unexpected payload: %v", payload)
		}
		if _, hasPrompt := payload["prompt"]; hasPrompt {
			t.Error("instrumental jobs must not send lyrics")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-42"},
		})
	}))

	taskID, err := client.Submit(context.Background(), SubmitRequest{
		Style:        "Ambient",
		Title:        "Still Water",
		Instrumental: true,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if taskID != "task-42" {
		t.Fatalf("unexpected task id: %s", taskID)
	}
}

func TestSubmitRequiresLyricsForVocals(t *testing.T) {
	client := New(Config{APIKey: "k"})
	_, err := client.Submit(context.Background(), SubmitRequest{Style: "Pop", Title: "Song"})
	if services.KindOf(err) != services.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitClassifiesAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))

	_, err := client.Submit(context.Background(), SubmitRequest{Style: "x", Title: "y", Instrumental: true})
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth marker, got %v", err)
	}
	if services.IsRetriable(err) {
		t.Fatal("auth failures must not be retriable")
	}
}

func TestStatusPendingWithoutAudio(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("taskId") != "task-42" {
			t.Errorf("task id not forwarded: %s", r.URL.String())
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"response": map[string]any{
					"sunoData": []map[string]any{{"id": "v1", "audioUrl": ""}},
				},
			},
		})
	}))

	status, err := client.Status(context.Background(), "task-42")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StatePending || len(status.Variants) != 0 {
		t.Fatalf("expected pending without variants, got %+v", status)
	}
}

func TestStatusComplete(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"response": map[string]any{
					"sunoData": []map[string]any{
						{"id": "v1", "title": "Still Water", "audioUrl": "https://cdn/v1.mp3", "duration": 182.5},
						{"id": "v2", "title": "Still Water", "audioUrl": "https://cdn/v2.mp3", "duration": 175.0},
					},
				},
			},
		})
	}))

	status, err := client.Status(context.Background(), "task-42")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StateComplete || len(status.Variants) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Variants[0].AudioURL != "https://cdn/v1.mp3" || status.Variants[1].DurationSeconds != 175.0 {
		t.Fatalf("variants not decoded: %+v", status.Variants)
	}
}

func TestStatusProviderRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 400, "msg": "task not found"})
	}))

	status, err := client.Status(context.Background(), "task-42")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StateFailed || status.Message != "task not found" {
		t.Fatalf("expected failed status, got %+v", status)
	}
}

func TestDownload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	}))
	defer server.Close()

	output := filepath.Join(t.TempDir(), "tracks", "track_00.mp3")
	if err := client.Download(context.Background(), server.URL+"/v1.mp3", output); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}
