package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		transient bool
	}{
		{http.StatusUnauthorized, KindAuth, false},
		{http.StatusForbidden, KindAuth, false},
		{http.StatusBadRequest, KindInvalidRequest, false},
		{http.StatusNotFound, KindInvalidRequest, false},
		{http.StatusUnprocessableEntity, KindInvalidRequest, false},
		{http.StatusTooManyRequests, KindRateLimited, true},
		{http.StatusRequestTimeout, KindTimeout, true},
		{http.StatusInternalServerError, KindUnavailable, true},
		{http.StatusServiceUnavailable, KindUnavailable, true},
		{http.StatusTeapot, KindUnknown, true},
	}

	for _, tt := range tests {
		kind := classifyStatus(tt.status)
		if kind != tt.kind {
			t.Errorf("status %d: expected kind %s, got %s", tt.status, tt.kind, kind)
		}
		e := &Error{Provider: "anthropic", Operation: "prd-extract", Kind: kind}
		if e.Transient() != tt.transient {
			t.Errorf("status %d: expected transient=%v", tt.status, tt.transient)
		}
	}
}

func TestIsTransient(t *testing.T) {
	transient := &Error{Provider: "openai", Kind: KindRateLimited}
	permanent := &Error{Provider: "openai", Kind: KindAuth}

	if !IsTransient(transient) {
		t.Error("rate_limited must be transient")
	}
	if !IsPermanent(permanent) {
		t.Error("auth must be permanent")
	}

	// Classification survives wrapping.
	wrapped := fmt.Errorf("step failed: %w", permanent)
	if !IsPermanent(wrapped) {
		t.Error("wrapped permanent error lost its classification")
	}

	// Unclassified errors get the benefit of the doubt.
	if !IsTransient(errors.New("connection reset")) {
		t.Error("unclassified error must be treated as transient")
	}
}

func TestErrorMessageNamesProviderAndOperation(t *testing.T) {
	e := &Error{
		Provider:  "anthropic",
		Operation: "design-analysis",
		Kind:      KindUnavailable,
		Message:   "api error, status 503",
		Err:       errors.New("boom"),
	}
	msg := e.Error()
	for _, want := range []string{"anthropic", "design-analysis", "unavailable", "503"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestRetryAfterFromHeader(t *testing.T) {
	h := http.Header{}
	if d := retryAfterFromHeader(h); d != 0 {
		t.Errorf("missing header: expected 0, got %s", d)
	}

	h.Set("Retry-After", "7")
	if d := retryAfterFromHeader(h); d != 7*time.Second {
		t.Errorf("expected 7s, got %s", d)
	}

	h.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	if d := retryAfterFromHeader(h); d != 0 {
		t.Errorf("http-date form must be ignored, got %s", d)
	}

	h.Set("Retry-After", "-3")
	if d := retryAfterFromHeader(h); d != 0 {
		t.Errorf("negative value must be ignored, got %s", d)
	}
}
