// Package workspace owns the on-disk layout of a SpecForge project
// directory and the single-instance lock that guards it.
//
// The layout is human-readable and git-friendly:
//
//	<workspace>/
//	  sessions/
//	    <session-id>/
//	      session_state.yaml
//	      error.yaml            # present only if the session ever failed
//	      prd-extract/ ... assembly/
//	  metrics.log
//	  config.yaml
//
// The lock is a file whose modification time is refreshed periodically by
// the holder. A lock whose mtime is older than the stale threshold is
// inferred to belong to a crashed process and may be cleared by the next
// caller, so crashes never permanently block a workspace.
package workspace
