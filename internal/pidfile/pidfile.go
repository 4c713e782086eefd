// Package pidfile records which process serves a channel type so that
// "linestatus stop" can find it.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"9fans.net/go/plan9/client"
	"golang.org/x/sys/unix"
)

var (
	// ErrNotRunning means no pid file exists.
	ErrNotRunning = errors.New("not running")
	// ErrStale means the pid file names a process that is gone.
	ErrStale = errors.New("not running (stale PID file)")
)

// RunningError is returned by Create when a live process owns the file.
type RunningError struct {
	Pid int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("already running (PID %d)", e.Pid)
}

// Path returns the pid file for channelType, in the 9P namespace directory
// when there is one and /tmp otherwise.
func Path(channelType string) string {
	name := fmt.Sprintf("linestatus-%s.pid", channelType)
	ns := client.Namespace()
	if ns == "" {
		return filepath.Join(os.TempDir(), name)
	}
	return filepath.Join(ns, name)
}

// Read returns the pid stored at path, or 0 if there is none.
func Read(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// IsRunning checks if a process with the given PID is running
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// Signal 0 only checks for existence
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Create writes the current pid to path. A stale file is replaced; a file
// owned by a live process yields *RunningError.
func Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	content := fmt.Sprintf("%d\n", os.Getpid())

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return err
		}
		if existing := Read(path); existing != 0 && IsRunning(existing) {
			return &RunningError{Pid: existing}
		}
		os.Remove(path)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Remove deletes path if it still names the current process.
func Remove(path string) error {
	if Read(path) != os.Getpid() {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Lookup returns the live pid recorded at path. A stale file is removed.
func Lookup(path string) (int, error) {
	pid := Read(path)
	if pid == 0 {
		return 0, ErrNotRunning
	}
	if !IsRunning(pid) {
		os.Remove(path)
		return 0, ErrStale
	}
	return pid, nil
}

// Signal sends sig to the process recorded at path.
func Signal(path string, sig unix.Signal) (int, error) {
	pid, err := Lookup(path)
	if err != nil {
		return 0, err
	}
	if err := unix.Kill(pid, sig); err != nil {
		return pid, fmt.Errorf("failed to send %v: %w", sig, err)
	}
	return pid, nil
}
