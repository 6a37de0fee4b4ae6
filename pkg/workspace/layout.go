package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Well-known file names inside a workspace.
const (
	sessionsDirName  = "sessions"
	stateFileName    = "session_state.yaml"
	errorFileName    = "error.yaml"
	metricsFileName  = "metrics.log"
	configFileName   = "config.yaml"
	lockFileName     = ".specforge.lock"
)

// Layout resolves paths inside a workspace directory. It performs no I/O
// beyond directory creation helpers; callers decide when files come to exist.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at the given workspace directory.
func NewLayout(root string) (*Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", root, err)
	}
	return &Layout{root: abs}, nil
}

// Root returns the absolute workspace root directory.
func (l *Layout) Root() string { return l.root }

// SessionsDir returns the directory holding all session directories.
func (l *Layout) SessionsDir() string {
	return filepath.Join(l.root, sessionsDirName)
}

// SessionDir returns the directory for one session.
func (l *Layout) SessionDir(sessionID string) string {
	return filepath.Join(l.SessionsDir(), sessionID)
}

// SessionStatePath returns the session state file for one session.
func (l *Layout) SessionStatePath(sessionID string) string {
	return filepath.Join(l.SessionDir(sessionID), stateFileName)
}

// SessionErrorPath returns the postmortem error record for one session.
func (l *Layout) SessionErrorPath(sessionID string) string {
	return filepath.Join(l.SessionDir(sessionID), errorFileName)
}

// StepDir returns the output directory of one pipeline step within a session.
func (l *Layout) StepDir(sessionID, step string) string {
	return filepath.Join(l.SessionDir(sessionID), step)
}

// MetricsLogPath returns the append-only execution facts log.
func (l *Layout) MetricsLogPath() string {
	return filepath.Join(l.root, metricsFileName)
}

// ConfigPath returns the user configuration file.
func (l *Layout) ConfigPath() string {
	return filepath.Join(l.root, configFileName)
}

// LockPath returns the workspace lock file.
func (l *Layout) LockPath() string {
	return filepath.Join(l.root, lockFileName)
}

// EnsureRoot creates the workspace root and sessions directory if absent.
func (l *Layout) EnsureRoot() error {
	if err := os.MkdirAll(l.SessionsDir(), 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", l.root, err)
	}
	return nil
}
