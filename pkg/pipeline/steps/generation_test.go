package steps

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/specforge/specforge/pkg/provider"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/telemetry"
	"github.com/specforge/specforge/pkg/workspace"
)

// stubInvoker records requests and answers with canned text.
type stubInvoker struct {
	mu   sync.Mutex
	text string
	err  error
	reqs []*provider.Request
}

func (s *stubInvoker) Invoke(_ context.Context, req *provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &provider.Response{Text: s.text, Provider: "anthropic", InputTokens: 10, OutputTokens: 5}, nil
}

func (s *stubInvoker) lastRequest() *provider.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reqs) == 0 {
		return nil
	}
	return s.reqs[len(s.reqs)-1]
}

func testSetup(t *testing.T) (*workspace.Layout, string) {
	t.Helper()

	layout, err := workspace.NewLayout(t.TempDir())
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}
	sessionID := "sess-test"
	for _, step := range session.Steps() {
		if err := os.MkdirAll(layout.StepDir(sessionID, string(step)), 0o755); err != nil {
			t.Fatalf("mkdir step dir: %v", err)
		}
	}
	return layout, sessionID
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestNewPipelineCoversAllSteps(t *testing.T) {
	layout, sessionID := testSetup(t)

	steps := NewPipeline(layout, sessionID, &stubInvoker{}, telemetry.NopLogger(), 1024)
	if len(steps) != len(session.Steps()) {
		t.Fatalf("expected %d steps, got %d", len(session.Steps()), len(steps))
	}
	for i, want := range session.Steps() {
		if got := steps[i].Name(); got != want {
			t.Errorf("step %d: got %s, want %s", i, got, want)
		}
	}
}

func TestGenerationStepWritesArtifact(t *testing.T) {
	layout, sessionID := testSetup(t)
	doc := writeInput(t, t.TempDir(), "source.md", "build a thing")

	inv := &stubInvoker{text: "# PRD\n\nthe requirements"}
	steps := NewPipeline(layout, sessionID, inv, telemetry.NopLogger(), 1024)

	result, err := steps[0].Execute(context.Background(), map[string]string{"doc": doc})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	out := result.Outputs["prd"]
	if out == "" {
		t.Fatalf("no prd output recorded: %+v", result.Outputs)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "# PRD\n\nthe requirements" {
		t.Errorf("artifact content wrong: %q", data)
	}
	if result.Provider != "anthropic" {
		t.Errorf("unexpected provider %q", result.Provider)
	}
	if result.CostEstimate <= 0 {
		t.Errorf("expected a positive cost estimate, got %v", result.CostEstimate)
	}

	// The prompt carried the source material and the step's identity.
	req := inv.lastRequest()
	if req.Operation != string(session.StepPRDExtract) {
		t.Errorf("unexpected operation %q", req.Operation)
	}
	if !strings.Contains(req.Prompt, "build a thing") {
		t.Errorf("prompt missing source content: %q", req.Prompt)
	}
	if req.System == "" {
		t.Error("system prompt must be set")
	}
	if req.MaxTokens != 1024 {
		t.Errorf("unexpected max tokens %d", req.MaxTokens)
	}
}

func TestGenerationStepMissingInput(t *testing.T) {
	layout, sessionID := testSetup(t)

	steps := NewPipeline(layout, sessionID, &stubInvoker{text: "x"}, telemetry.NopLogger(), 1024)

	// design-analysis requires the prd artifact.
	_, err := steps[1].Execute(context.Background(), map[string]string{"doc": "whatever"})
	if err == nil || !strings.Contains(err.Error(), "prd") {
		t.Fatalf("expected missing-input error naming prd, got %v", err)
	}
}

func TestGenerationStepProviderErrorPropagates(t *testing.T) {
	layout, sessionID := testSetup(t)
	doc := writeInput(t, t.TempDir(), "source.md", "content")

	pErr := &provider.Error{Provider: "anthropic", Kind: provider.KindAuth, Message: "bad key"}
	steps := NewPipeline(layout, sessionID, &stubInvoker{err: pErr}, telemetry.NopLogger(), 1024)

	_, err := steps[0].Execute(context.Background(), map[string]string{"doc": doc})
	if !provider.IsPermanent(err) {
		t.Fatalf("provider error classification lost: %v", err)
	}

	// No partial artifact may exist.
	stepDir := layout.StepDir(sessionID, string(session.StepPRDExtract))
	entries, rerr := os.ReadDir(stepDir)
	if rerr != nil {
		t.Fatalf("read step dir: %v", rerr)
	}
	if len(entries) != 0 {
		t.Errorf("step dir must stay empty on failure, found %d entries", len(entries))
	}
}

func TestAssemblyStepStitchesArtifacts(t *testing.T) {
	layout, sessionID := testSetup(t)
	dir := t.TempDir()

	prior := map[string]string{
		"prd":        writeInput(t, dir, "prd.md", "requirements body"),
		"design":     writeInput(t, dir, "design.md", "design body"),
		"validation": writeInput(t, dir, "validation.md", "validation body"),
		"docs":       writeInput(t, dir, "docs.md", "docs body"),
	}

	steps := NewPipeline(layout, sessionID, &stubInvoker{}, telemetry.NopLogger(), 1024)
	assembly := steps[len(steps)-1]

	result, err := assembly.Execute(context.Background(), prior)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Provider != "local" {
		t.Errorf("assembly must not name a generation provider, got %q", result.Provider)
	}

	data, err := os.ReadFile(result.Outputs["final"])
	if err != nil {
		t.Fatalf("read final document: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"Product Requirements", "requirements body",
		"Design Analysis", "design body",
		"Validation Report", "validation body",
		"Developer Documentation", "docs body",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("final document missing %q", want)
		}
	}

	// Section order follows the pipeline order.
	if strings.Index(text, "requirements body") > strings.Index(text, "design body") {
		t.Error("sections out of order")
	}
}

func TestAssemblyStepMissingArtifact(t *testing.T) {
	layout, sessionID := testSetup(t)

	steps := NewPipeline(layout, sessionID, &stubInvoker{}, telemetry.NopLogger(), 1024)
	assembly := steps[len(steps)-1]

	_, err := assembly.Execute(context.Background(), map[string]string{"prd": "x"})
	if err == nil {
		t.Fatal("expected error for missing artifacts")
	}
}

func TestAssemblyStepObservesCancellation(t *testing.T) {
	layout, sessionID := testSetup(t)
	dir := t.TempDir()

	prior := map[string]string{
		"prd":        writeInput(t, dir, "prd.md", "requirements body"),
		"design":     writeInput(t, dir, "design.md", "design body"),
		"validation": writeInput(t, dir, "validation.md", "validation body"),
		"docs":       writeInput(t, dir, "docs.md", "docs body"),
	}

	steps := NewPipeline(layout, sessionID, &stubInvoker{}, telemetry.NopLogger(), 1024)
	assembly := steps[len(steps)-1]

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := assembly.Execute(ctx, prior)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	final := filepath.Join(layout.StepDir(sessionID, string(session.StepAssembly)), "final.md")
	if _, err := os.Stat(final); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("cancelled assembly must not write the final document")
	}
}
