package commands

import (
	"errors"
	"strings"
	"testing"

	"github.com/specforge/specforge/pkg/provider"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/workspace"
)

func TestExplainAuthError(t *testing.T) {
	err := &provider.Error{Provider: "anthropic", Operation: "prd-extract",
		Kind: provider.KindAuth, Message: "api error, status 401"}

	out := Explain(err)
	for _, want := range []string{"error:", "provider/auth", "ANTHROPIC_API_KEY"} {
		if !strings.Contains(out, want) {
			t.Errorf("explanation missing %q:\n%s", want, out)
		}
	}
}

func TestExplainLockError(t *testing.T) {
	err := &workspace.LockError{Path: "/ws/.specforge.lock", Op: "acquire",
		Err: errors.New("workspace is locked by another live process")}

	out := Explain(err)
	if !strings.Contains(out, "kind: lock") || !strings.Contains(out, "--wait") {
		t.Errorf("unexpected explanation:\n%s", out)
	}
}

func TestExplainSessionErrorSurvivesWrapping(t *testing.T) {
	err := &session.Error{SessionID: "sess-1", Path: "/ws/sessions/sess-1/session_state.yaml",
		Op: "load", Err: errors.New("corrupted")}

	out := Explain(err)
	if !strings.Contains(out, "kind: session") {
		t.Errorf("unexpected explanation:\n%s", out)
	}
	if !strings.Contains(out, "sess-1") {
		t.Errorf("explanation must name the session:\n%s", out)
	}
}

func TestExplainUnclassified(t *testing.T) {
	out := Explain(errors.New("something odd"))
	if strings.Contains(out, "kind:") {
		t.Errorf("unclassified error must not invent a kind:\n%s", out)
	}
	if !strings.Contains(out, "something odd") {
		t.Errorf("explanation must carry the cause:\n%s", out)
	}
}
