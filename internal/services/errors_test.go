package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"tracksmith/internal/services"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected services.Kind
	}{
		{"auth", services.Wrap(services.ErrAuth, "upload", "token", "rejected", nil), services.KindAuth},
		{"rate limit", services.Wrap(services.ErrRateLimit, "generate", "submit", "", nil), services.KindRateLimit},
		{"timeout", services.Wrap(services.ErrTimeout, "plan", "complete", "", nil), services.KindTimeout},
		{"validation", services.Wrap(services.ErrValidation, "plan", "parse", "bad payload", nil), services.KindValidation},
		{"encoding", services.Wrap(services.ErrEncoding, "render", "concat", "", errors.New("exit 1")), services.KindEncoding},
		{"out of order", services.Wrap(services.ErrOutOfOrderStep, "render", "", "", nil), services.KindOutOfOrderStep},
		{"unknown", errors.New("something else"), services.KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.KindOf(tc.err); got != tc.expected {
				t.Fatalf("KindOf = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestIsRetriable(t *testing.T) {
	if services.IsRetriable(services.Wrap(services.ErrAuth, "s", "o", "", nil)) {
		t.Fatal("auth failures must never be retried")
	}
	if services.IsRetriable(services.Wrap(services.ErrValidation, "s", "o", "", nil)) {
		t.Fatal("validation failures must never be retried")
	}
	for _, marker := range []error{services.ErrRateLimit, services.ErrTimeout, services.ErrProviderHTTP} {
		if !services.IsRetriable(services.Wrap(marker, "s", "o", "", nil)) {
			t.Fatalf("expected %v to be retriable", marker)
		}
	}
}

func TestStatusErrorClassification(t *testing.T) {
	cases := []struct {
		status   int
		expected services.Kind
	}{
		{401, services.KindAuth},
		{403, services.KindAuth},
		{429, services.KindRateLimit},
		{500, services.KindProviderHTTP},
		{503, services.KindProviderHTTP},
		{400, services.KindValidation},
		{504, services.KindTimeout},
	}
	for _, tc := range cases {
		err := services.NewStatusError(services.ProviderSuno, "submit", tc.status, "body")
		if got := services.KindOf(err); got != tc.expected {
			t.Fatalf("status %d classified as %q, want %q", tc.status, got, tc.expected)
		}
		if got := services.ProviderOf(err); got != services.ProviderSuno {
			t.Fatalf("provider lost through wrapping: %q", got)
		}
	}
}

func TestClassifyTruncatesRaw(t *testing.T) {
	huge := strings.Repeat("z", services.RawDiagnosticLimit*2)
	err := services.TagProvider(services.ProviderGemini, fmt.Errorf("%w: %s", services.ErrProviderHTTP, huge))

	details := services.Classify(err)
	if details.Kind != services.KindProviderHTTP {
		t.Fatalf("unexpected kind: %q", details.Kind)
	}
	if details.Provider != services.ProviderGemini {
		t.Fatalf("unexpected provider: %q", details.Provider)
	}
	if len(details.Raw) > services.RawDiagnosticLimit+len("... (truncated)") {
		t.Fatalf("raw diagnostic not truncated: %d chars", len(details.Raw))
	}
	if !strings.HasSuffix(details.Raw, "(truncated)") {
		t.Fatal("expected truncation marker")
	}
}
