// Package config loads and validates the workspace configuration file and
// discovers provider credentials from the environment. Sessions capture an
// immutable snapshot of the run-relevant settings at creation time, so
// edits to config.yaml never retroactively change a running or resumable
// session.
package config
