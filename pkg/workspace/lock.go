package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Default lock timing. The stale threshold is twice the heartbeat interval:
// a holder that missed two consecutive heartbeats is presumed dead.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	defaultPollInterval      = 250 * time.Millisecond
)

// LockError reports a workspace locking failure. A busy workspace is not a
// LockError; Acquire signals that case with a nil handle so the caller can
// decide between waiting and aborting.
type LockError struct {
	// Path is the lock file involved.
	Path string

	// Op is the operation that failed (acquire, release, heartbeat).
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *LockError) Error() string {
	return fmt.Sprintf("workspace lock %s: %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LockError) Unwrap() error { return e.Err }

// lockInfo is the content of the lock file, recorded for operators
// inspecting a stuck workspace. Staleness detection uses the file's mtime,
// not this content.
type lockInfo struct {
	PID        int       `yaml:"pid"`
	Hostname   string    `yaml:"hostname"`
	AcquiredAt time.Time `yaml:"acquired_at"`
}

// Lock provides single-instance mutual exclusion over a workspace
// directory. While held, a background heartbeat refreshes the lock file's
// mtime; other processes treat a lock whose mtime is older than the stale
// threshold as abandoned.
type Lock struct {
	path      string
	heartbeat time.Duration
	stale     time.Duration

	mu   sync.Mutex
	held *Handle
}

// Handle represents a held lock and must be passed back to Release.
type Handle struct {
	lock *Lock
	stop chan struct{}
	done chan struct{}
}

// LockOption configures a Lock.
type LockOption func(*Lock)

// WithHeartbeatInterval overrides the heartbeat interval. The stale
// threshold follows at twice the interval unless overridden separately.
func WithHeartbeatInterval(d time.Duration) LockOption {
	return func(l *Lock) {
		l.heartbeat = d
		l.stale = 2 * d
	}
}

// WithStaleThreshold overrides the staleness threshold.
func WithStaleThreshold(d time.Duration) LockOption {
	return func(l *Lock) { l.stale = d }
}

// NewLock creates a lock for the given workspace layout.
func NewLock(layout *Layout, opts ...LockOption) *Lock {
	l := &Lock{
		path:      layout.LockPath(),
		heartbeat: DefaultHeartbeatInterval,
		stale:     2 * DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire attempts to take the workspace lock. It returns a non-nil Handle
// on success and (nil, nil) when the lock is held by another live process.
// A stale lock is cleared and acquisition retried once. Errors are returned
// only for real filesystem failures.
func (l *Lock) Acquire() (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held != nil {
		return nil, &LockError{Path: l.path, Op: "acquire", Err: errors.New("lock already held by this process")}
	}

	ok, err := l.tryCreate()
	if err != nil {
		return nil, err
	}
	if !ok {
		stale, serr := l.isStale()
		if serr != nil {
			return nil, serr
		}
		if !stale {
			return nil, nil
		}
		// The previous holder crashed without releasing. Clear and retry once.
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			return nil, &LockError{Path: l.path, Op: "acquire", Err: rerr}
		}
		if ok, err = l.tryCreate(); err != nil {
			return nil, err
		}
		if !ok {
			// Another process won the race for the cleared lock.
			return nil, nil
		}
	}

	h := &Handle{
		lock: l,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	l.held = h
	go h.heartbeatLoop()
	return h, nil
}

// Release releases a held lock, stopping the heartbeat and removing the
// lock file.
func (l *Lock) Release(h *Handle) error {
	if h == nil || h.lock != l {
		return &LockError{Path: l.path, Op: "release", Err: errors.New("handle does not belong to this lock")}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held != h {
		return &LockError{Path: l.path, Op: "release", Err: errors.New("lock not held")}
	}

	close(h.stop)
	<-h.done
	l.held = nil

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &LockError{Path: l.path, Op: "release", Err: err}
	}
	return nil
}

// IsLocked reports whether a lock file exists, live or stale.
func (l *Lock) IsLocked() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// IsStale reports whether a lock file exists and its heartbeat has not been
// refreshed within the stale threshold.
func (l *Lock) IsStale() bool {
	stale, err := l.isStale()
	return err == nil && stale
}

func (l *Lock) isStale() (bool, error) {
	fi, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &LockError{Path: l.path, Op: "stat", Err: err}
	}
	return time.Since(fi.ModTime()) > l.stale, nil
}

// WaitFor blocks until the lock becomes acquirable or the timeout elapses.
// It watches the workspace directory for lock removal via fsnotify, with a
// periodic poll as a fallback, and observes ctx cancellation. It reports
// whether the lock is worth retrying; it does not acquire it.
func (l *Lock) WaitFor(ctx context.Context, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if werr := watcher.Add(filepath.Dir(l.path)); werr == nil {
			events = watcher.Events
		}
	}

	poll := time.NewTicker(defaultPollInterval)
	defer poll.Stop()

	for {
		if !l.IsLocked() || l.IsStale() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case ev := <-events:
			if ev.Name == l.path && ev.Op.Has(fsnotify.Remove|fsnotify.Rename) {
				return true
			}
		case <-poll.C:
		}
	}
}

// tryCreate attempts an exclusive create of the lock file. It returns false
// without error when the file already exists.
func (l *Lock) tryCreate() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, &LockError{Path: l.path, Op: "acquire", Err: err}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, &LockError{Path: l.path, Op: "acquire", Err: err}
	}

	hostname, _ := os.Hostname()
	info := lockInfo{PID: os.Getpid(), Hostname: hostname, AcquiredAt: time.Now().UTC()}
	data, merr := yaml.Marshal(info)
	if merr == nil {
		_, merr = f.Write(data)
	}
	if cerr := f.Close(); merr == nil {
		merr = cerr
	}
	if merr != nil {
		_ = os.Remove(l.path)
		return false, &LockError{Path: l.path, Op: "acquire", Err: merr}
	}
	return true, nil
}

// heartbeatLoop refreshes the lock file mtime until the handle is released.
func (h *Handle) heartbeatLoop() {
	defer close(h.done)

	ticker := time.NewTicker(h.lock.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			now := time.Now()
			// Best effort: a missed beat only narrows the staleness margin.
			_ = os.Chtimes(h.lock.path, now, now)
		}
	}
}
