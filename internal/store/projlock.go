package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// Project advisory lock defaults.
const (
	// DefaultLockTimeout bounds how long an operation waits for the
	// project lock before failing with LockTimeout.
	DefaultLockTimeout = 10 * time.Second

	// DefaultStaleGrace is how old a lock file must be before a lock held
	// by a dead process may be stolen.
	DefaultStaleGrace = 60 * time.Second

	lockPollInterval = 50 * time.Millisecond
)

// ProjectLock is the project-wide advisory lock, held while an operation
// straddles the database and filesystem (context/notes writes). Purely
// database-bound operations rely on SQLite's own serialization instead.
type ProjectLock struct {
	f    *os.File
	path string
}

// AcquireProjectLock acquires the lock file with exclusive advisory
// semantics, polling up to timeout. A lock whose holder has died (or whose
// file has outlived the stale grace period) is stolen. The lock file
// records "pid <pid>\nacquired <ts>" for staleness detection by peers.
func AcquireProjectLock(lockPath string, timeout time.Duration) (*ProjectLock, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // G304: lockPath derived from trusted state dir
		if err != nil {
			return nil, fmt.Errorf("open project lock %s: %w", lockPath, err)
		}

		flockErr := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if flockErr == nil {
			if err := writeLockInfo(f); err != nil {
				_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
				_ = f.Close()
				return nil, err
			}
			return &ProjectLock{f: f, path: lockPath}, nil
		}
		_ = f.Close()

		// flock releases automatically when a process dies, so a held lock
		// normally means a live holder. The staleness check covers the
		// remaining case: a lock file inherited by an unrelated long-lived
		// process (e.g. a forked child that kept the fd).
		if stealStaleLock(lockPath, DefaultStaleGrace) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, models.E(models.KindLockTimeout,
				"could not acquire project lock within %s", timeout).
				WithContext("lock_path", lockPath)
		}
		time.Sleep(lockPollInterval)
	}
}

// Release unlocks and closes the lock file. Nil-safe; idempotent.
func (l *ProjectLock) Release() {
	if l == nil || l.f == nil {
		return
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	_ = l.f.Close()
	l.f = nil
}

func writeLockInfo(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate project lock: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek project lock: %w", err)
	}
	info := fmt.Sprintf("pid %d\nacquired %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(info); err != nil {
		return fmt.Errorf("write project lock info: %w", err)
	}
	return nil
}

// stealStaleLock removes the lock file if its recorded holder is provably
// dead and the file is older than grace. A lock whose PID cannot be read is
// left alone: the file may have been replaced between the stat and the read,
// and removing it would let a peer acquire a fresh inode while the original
// holder still believes it holds the lock. Returns true if the file was
// removed and acquisition should be retried immediately.
func stealStaleLock(lockPath string, grace time.Duration) bool {
	info, err := os.Stat(lockPath)
	if err != nil || time.Since(info.ModTime()) < grace {
		return false
	}

	pid, ok := readLockPID(lockPath)
	if !ok || processAlive(pid) {
		return false
	}

	return os.Remove(lockPath) == nil
}

func readLockPID(lockPath string) (int, bool) {
	b, err := os.ReadFile(lockPath) //nolint:gosec // G304: lockPath derived from trusted state dir
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(b), "\n") {
		if rest, found := strings.CutPrefix(line, "pid "); found {
			pid, err := strconv.Atoi(strings.TrimSpace(rest))
			return pid, err == nil
		}
	}
	return 0, false
}

// processAlive probes liveness with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
