package commands

import (
	"errors"
	"fmt"

	"github.com/specforge/specforge/pkg/config"
	"github.com/specforge/specforge/pkg/fsstore"
	"github.com/specforge/specforge/pkg/pipeline"
	"github.com/specforge/specforge/pkg/provider"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/workspace"
)

// Explain renders a fatal error as a one-line cause, its classification,
// and a recovery suggestion.
func Explain(err error) string {
	kind, suggestion := classify(err)
	out := fmt.Sprintf("error: %v", err)
	if kind != "" {
		out += fmt.Sprintf("\nkind: %s", kind)
	}
	if suggestion != "" {
		out += fmt.Sprintf("\nsuggestion: %s", suggestion)
	}
	return out
}

func classify(err error) (kind, suggestion string) {
	var lockErr *workspace.LockError
	if errors.As(err, &lockErr) {
		return "lock", "another specforge process holds this workspace; wait for it to finish or re-run with --wait"
	}

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case provider.KindAuth:
			return "provider/auth", fmt.Sprintf("check %s and %s",
				config.EnvAnthropicAPIKey, config.EnvOpenAIAPIKey)
		case provider.KindRateLimited:
			return "provider/rate-limited", "the provider is throttling; resume the session later"
		case provider.KindInvalidRequest:
			return "provider/invalid-request", "check the configured model identifiers in config.yaml"
		default:
			return "provider/" + string(provErr.Kind), "resume the session to retry from the last checkpoint"
		}
	}

	var valErr *fsstore.ValidationError
	if errors.As(err, &valErr) {
		return "validation", "the file on disk does not match the expected schema; inspect it before editing"
	}

	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		return "session", "inspect the session state file named above; sessions are never repaired automatically"
	}

	var wfErr *pipeline.WorkflowError
	if errors.As(err, &wfErr) {
		return "workflow", "fix the cause, then resume the session; completed steps will not re-run"
	}

	return "", ""
}
