package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specforge/specforge/pkg/fsstore"
	"github.com/specforge/specforge/pkg/pipeline"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/telemetry"
	"github.com/specforge/specforge/pkg/workspace"
)

// assemblySections lists the artifacts stitched into the final document,
// with their headings, in order.
var assemblySections = []struct {
	input string
	title string
}{
	{"prd", "Product Requirements"},
	{"design", "Design Analysis"},
	{"validation", "Validation Report"},
	{"docs", "Developer Documentation"},
}

// assemblyStep is the final, local step: it concatenates the generated
// artifacts into one document. No provider call is involved.
type assemblyStep struct {
	layout    *workspace.Layout
	sessionID string
	log       *telemetry.Logger
}

// Name implements pipeline.Step.
func (a *assemblyStep) Name() session.Step { return session.StepAssembly }

// Execute stitches the four generated artifacts into final.md.
func (a *assemblyStep) Execute(ctx context.Context, prior map[string]string) (*pipeline.StepResult, error) {
	var b strings.Builder
	b.WriteString("# Specification Package\n")

	for _, sec := range assemblySections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, ok := prior[sec.input]
		if !ok || path == "" {
			return nil, fmt.Errorf("step %s: required input %q is missing", session.StepAssembly, sec.input)
		}
		data, err := fsstore.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("step %s: read input %q: %w", session.StepAssembly, sec.input, err)
		}
		b.WriteString("\n# ")
		b.WriteString(sec.title)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimRight(string(data), "\n"))
		b.WriteString("\n")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := filepath.Join(a.layout.StepDir(a.sessionID, string(session.StepAssembly)), "final.md")
	if err := fsstore.WriteAtomic(out, []byte(b.String()), nil); err != nil {
		return nil, fmt.Errorf("step %s: write output: %w", session.StepAssembly, err)
	}

	a.log.WithStep(string(session.StepAssembly)).Debug("final document assembled")

	return &pipeline.StepResult{
		Outputs:  map[string]string{"final": out},
		Provider: "local",
	}, nil
}
