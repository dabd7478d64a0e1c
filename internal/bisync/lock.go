package bisync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/exhorder/rclonesync/internal/bilib"
	"github.com/exhorder/rclonesync/internal/synclog"
)

// RunLock is an advisory single-run guard: a file at a conventional path
// containing the caller identifier, a unique token, and the acquisition
// time. It is not OS-level mandatory; it coordinates cooperating
// invocations of this tool against the same remote.
type RunLock struct {
	path  string
	token uuid.UUID
}

// LockPath returns the conventional lock file path for a session name.
func LockPath(workDir, sessionName string) string {
	return filepath.Join(workDir, sessionName+"_LOCK")
}

// AcquireLock polls for up to 5 seconds (1-second intervals) to create the
// lock file exclusively. If the file still exists after the timeout,
// acquisition fails and the caller should treat the run as aborted
// (rerunnable) rather than critical: a held lock says nothing about the
// trustworthiness of the snapshots.
func AcquireLock(path string) (*RunLock, error) {
	token := uuid.New()
	deadline := time.Now().Add(lockAcquireTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, bilib.PermSecure)
		if err == nil {
			fmt.Fprintf(f, "%s %s %s\n", token, os.Args[0], time.Now().In(synclog.TZ).Format(time.RFC3339))
			f.Close()
			return &RunLock{path: path, token: token}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s held by another run", path)
		}
		time.Sleep(lockPollInterval)
	}
}

// Release removes the lock file. It is safe to call on every code path,
// including after a failed or cancelled run, so the lock is always
// released at process exit.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}

// PermSecureMode is the mode lock and snapshot files are created with:
// readable/writable by the owner only. Aliased from bilib.PermSecure so
// callers within this package don't need to import bilib just for the
// constant.
const PermSecureMode = bilib.PermSecure
