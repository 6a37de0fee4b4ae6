package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/specforge/specforge/pkg/fsstore"
	"github.com/specforge/specforge/pkg/pipeline"
	"github.com/specforge/specforge/pkg/provider"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/telemetry"
	"github.com/specforge/specforge/pkg/workspace"
)

// invoker is the provider surface the steps need; satisfied by
// *provider.Selector.
type invoker interface {
	Invoke(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// generationStep is a provider-backed pipeline step driven by a
// promptSpec. All four generation steps are instances of it.
type generationStep struct {
	spec      promptSpec
	layout    *workspace.Layout
	sessionID string
	providers invoker
	log       *telemetry.Logger
	maxTokens int
}

// Name implements pipeline.Step.
func (g *generationStep) Name() session.Step { return g.spec.step }

// Execute reads the step's input artifacts, invokes the provider chain,
// and writes the generated artifact atomically into the step directory.
func (g *generationStep) Execute(ctx context.Context, prior map[string]string) (*pipeline.StepResult, error) {
	sections := make(map[string]string, len(g.spec.inputs))
	for _, name := range g.spec.inputs {
		path, ok := prior[name]
		if !ok || path == "" {
			return nil, fmt.Errorf("step %s: required input %q is missing", g.spec.step, name)
		}
		data, err := fsstore.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("step %s: read input %q: %w", g.spec.step, name, err)
		}
		sections[name] = string(data)
	}

	resp, err := g.providers.Invoke(ctx, &provider.Request{
		Operation: string(g.spec.step),
		System:    g.spec.system,
		Prompt:    renderPrompt(g.spec, sections),
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	out := filepath.Join(g.layout.StepDir(g.sessionID, string(g.spec.step)), g.spec.outputFile)
	if err := fsstore.WriteAtomic(out, []byte(resp.Text), nil); err != nil {
		return nil, fmt.Errorf("step %s: write output: %w", g.spec.step, err)
	}

	g.log.WithStep(string(g.spec.step)).WithProvider(resp.Provider).
		WithField("tokens_out", resp.OutputTokens).Debug("artifact written")

	return &pipeline.StepResult{
		Outputs:      map[string]string{g.spec.outputName: out},
		Provider:     resp.Provider,
		CostEstimate: costEstimate(resp),
	}, nil
}

// costEstimate is a rough token-weighted usage figure; output tokens cost
// more than input tokens across both backends.
func costEstimate(resp *provider.Response) float64 {
	return float64(resp.InputTokens) + 4*float64(resp.OutputTokens)
}

// NewPipeline builds the five steps bound to one session, in execution
// order.
func NewPipeline(layout *workspace.Layout, sessionID string, providers invoker,
	log *telemetry.Logger, maxTokens int) []pipeline.Step {

	log = log.NewComponentLogger("steps").WithSessionID(sessionID)

	out := make([]pipeline.Step, 0, len(generationSpecs)+1)
	for _, spec := range generationSpecs {
		out = append(out, &generationStep{
			spec:      spec,
			layout:    layout,
			sessionID: sessionID,
			providers: providers,
			log:       log,
			maxTokens: maxTokens,
		})
	}
	out = append(out, &assemblyStep{
		layout:    layout,
		sessionID: sessionID,
		log:       log,
	})
	return out
}
