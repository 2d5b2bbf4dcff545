// Package lockfile provides process-safe mutual exclusion on the playbook
// file via an OS-level advisory lock co-located with it (playbook.lock). A
// user-space mutex is insufficient here because multiple host processes —
// different sessions, overlapping lifecycles — may run against the same
// playbook simultaneously.
package lockfile

import (
	"fmt"
	"os"
	"syscall"
)

// Lock wraps an open file descriptor held under an advisory flock.
type Lock struct {
	file *os.File
}

// AcquireExclusive opens (creating if needed) the lock file at path and
// blocks until an exclusive lock is held. Exclusive locks guard any
// read-modify-write sequence (onSessionEnd, onPreCompact, migration).
func AcquireExclusive(path string) (*Lock, error) {
	return acquire(path, syscall.LOCK_EX)
}

// AcquireShared opens the lock file at path and blocks until a shared
// lock is held. onPromptSubmit takes a shared lock for the duration of
// the load; selection itself is pure and needs no lock.
func AcquireShared(path string) (*Lock, error) {
	return acquire(path, syscall.LOCK_SH)
}

func acquire(path string, how int) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	return &Lock{file: f}, nil
}

// Release unlocks and closes the underlying file descriptor. Safe to call
// on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("releasing lock: %w", unlockErr)
	}
	return closeErr
}
