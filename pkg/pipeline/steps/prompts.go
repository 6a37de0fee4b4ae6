package steps

import (
	"strings"

	"github.com/specforge/specforge/pkg/session"
)

// promptSpec describes one generation step: which prior artifacts it
// consumes, the prompts it sends, and the artifact it produces.
type promptSpec struct {
	// step is the pipeline position.
	step session.Step

	// inputs are the logical names of the prior artifacts the step
	// consumes, in prompt order. Missing inputs are a hard error.
	inputs []string

	// system is the system prompt.
	system string

	// instruction is prepended to the rendered input sections.
	instruction string

	// outputName is the logical name under which the artifact is
	// recorded in the session outputs.
	outputName string

	// outputFile is the file name written into the step directory.
	outputFile string
}

// generationSpecs defines the four provider-backed steps. The assembly
// step is local and lives in assembly.go.
var generationSpecs = []promptSpec{
	{
		step:   session.StepPRDExtract,
		inputs: []string{"doc"},
		system: "You are a requirements analyst. You extract product requirements " +
			"from source documents into a precise, structured PRD.",
		instruction: "Extract a structured product requirements document from the " +
			"following source material. Use markdown with sections for goals, " +
			"functional requirements, and constraints.",
		outputName: "prd",
		outputFile: "prd.md",
	},
	{
		step:   session.StepDesignAnalysis,
		inputs: []string{"prd"},
		system: "You are a software architect. You derive design decisions and " +
			"system structure from product requirements.",
		instruction: "Produce a design analysis for the requirements below: " +
			"component breakdown, data flow, and the key design decisions with " +
			"their rationale.",
		outputName: "design",
		outputFile: "design.md",
	},
	{
		step:   session.StepValidation,
		inputs: []string{"prd", "design"},
		system: "You are a meticulous reviewer. You check designs against their " +
			"requirements and report gaps.",
		instruction: "Validate the design against the requirements. List every " +
			"requirement that is unaddressed, contradicted, or ambiguous, and " +
			"state explicitly when the design is consistent.",
		outputName: "validation",
		outputFile: "validation.md",
	},
	{
		step:   session.StepDocGeneration,
		inputs: []string{"prd", "design", "validation"},
		system: "You are a technical writer. You turn requirements and design " +
			"notes into clear developer documentation.",
		instruction: "Write developer documentation covering the system described " +
			"below. Incorporate the validation findings where they affect usage.",
		outputName: "docs",
		outputFile: "docs.md",
	},
}

// renderPrompt builds the user prompt: the instruction followed by one
// titled section per input artifact.
func renderPrompt(spec promptSpec, sections map[string]string) string {
	var b strings.Builder
	b.WriteString(spec.instruction)
	for _, name := range spec.inputs {
		b.WriteString("\n\n## ")
		b.WriteString(name)
		b.WriteString("\n\n")
		b.WriteString(sections[name])
	}
	return b.String()
}
