// Package lockfile implements keysync.lock — an exclusive lock on a locale
// store directory. The merge step is the only mutation of durable state,
// so it is bracketed by Acquire/Release for the duration of
// load → merge → save; concurrent reconciliation passes are otherwise the
// caller's responsibility to serialize.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// LockFileName is the lock file created inside the store directory.
const LockFileName = "keysync.lock"

// Lock is a held store lock.
type Lock struct {
	path string
}

// info is the lock file payload, enough to diagnose and to detect
// staleness.
type info struct {
	PID      int       `yaml:"pid"`
	Acquired time.Time `yaml:"acquired"`
}

// Acquire takes the exclusive lock for dir, creating the lock file with
// O_EXCL. A lock left behind by a dead process is removed and retried
// once.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			data, merr := yaml.Marshal(info{PID: os.Getpid(), Acquired: time.Now().UTC()})
			if merr == nil {
				_, merr = f.Write(data)
			}
			f.Close()
			if merr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing lock file %s: %w", path, merr)
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file %s: %w", path, err)
		}
		if attempt == 0 && stale(path) {
			os.Remove(path)
			continue
		}
		return nil, fmt.Errorf("store is locked by another process (%s)", path)
	}
	return nil, fmt.Errorf("store is locked by another process (%s)", path)
}

// Release removes the lock file. Safe to call on all exit paths.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file %s: %w", path, err)
	}
	return nil
}

// Path returns the lock file path, or "" after release.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// stale reports whether the lock file belongs to a process that no longer
// exists. Unreadable or malformed lock files are not treated as stale.
func stale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var li info
	if err := yaml.Unmarshal(data, &li); err != nil || li.PID <= 0 {
		return false
	}
	if li.PID == os.Getpid() {
		return false
	}
	proc, err := os.FindProcess(li.PID)
	if err != nil {
		return true
	}
	// Signal 0 probes for existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) != nil
}
