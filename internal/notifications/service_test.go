package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tracksmith/internal/config"
	"tracksmith/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyUploadCompleted(context.Background(), "Deep Focus Mix", "vid"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "project created",
			send: func(svc notifications.Service) error {
				return svc.NotifyProjectCreated(context.Background(), "deep focus", "deepfocus")
			},
			expectTitle:   "Tracksmith - Project Created",
			expectMessage: "New project: deep focus (channel deepfocus)",
			expectTags:    "tracksmith,project,created",
		},
		{
			name: "generation completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyGenerationCompleted(context.Background(), "deep focus", 23, 25)
			},
			expectTitle:   "Tracksmith - Generation Complete",
			expectMessage: "Generated 23/25 tracks for: deep focus",
			expectTags:    "tracksmith,generate,completed",
		},
		{
			name: "upload completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyUploadCompleted(context.Background(), "Deep Focus Mix", "vid-123")
			},
			expectTitle:    "Tracksmith - Uploaded",
			expectMessage:  "Video live: Deep Focus Mix (id vid-123)",
			expectTags:     "tracksmith,upload,completed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("rate limit exceeded"), "generate")
			},
			expectTitle:    "Tracksmith - Error",
			expectMessage:  "Error with generate: rate limit exceeded",
			expectTags:     "tracksmith,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got captured
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				got.title = r.Header.Get("Title")
				got.tags = r.Header.Get("Tags")
				got.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				got.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
