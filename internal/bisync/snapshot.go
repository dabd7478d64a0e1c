package bisync

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/exhorder/rclonesync/internal/bilib"
	"github.com/exhorder/rclonesync/internal/synclog"
)

// Store holds the naming convention for a remote's snapshot and transient
// files, producing listings via the Transfer Driver and loading/persisting
// them via the Listing Loader.
type Store struct {
	WorkDir string
	Session string // bilib.CanonicalPath(remote name)
	DryRun  bool
}

func (s *Store) path(suffix string) string {
	return filepath.Join(s.WorkDir, s.Session+suffix)
}

// LocalSnapshotPath, RemoteSnapshotPath: last good snapshot per side.
func (s *Store) LocalSnapshotPath() string  { return s.snapshotPath("_localLSL") }
func (s *Store) RemoteSnapshotPath() string { return s.snapshotPath("_remoteLSL") }

// In dry-run mode the store reads/writes sibling _DRYRUN copies so a real
// run's persisted state is never touched.
func (s *Store) snapshotPath(base string) string {
	if s.DryRun {
		return s.path(base + "_DRYRUN")
	}
	return s.path(base)
}

func (s *Store) LocalNewPath() string  { return s.path("_localLSL_new") }
func (s *Store) RemoteNewPath() string { return s.path("_remoteLSL_new") }

func (s *Store) LocalChkPath() string  { return s.path("_localChkLSL") }
func (s *Store) RemoteChkPath() string { return s.path("_remoteChkLSL") }

func (s *Store) localErrorPath() string  { return s.path("_localLSL_ERROR") }
func (s *Store) remoteErrorPath() string { return s.path("_remoteLSL_ERROR") }

// PrepareDryRun copies the existing persisted snapshots to the sibling
// _DRYRUN paths this store will then operate against, so a dry-run never
// mutates the real snapshots even indirectly.
func (s *Store) PrepareDryRun() error {
	if !s.DryRun {
		return nil
	}
	for _, base := range []string{"_localLSL", "_remoteLSL"} {
		src := s.path(base)
		dst := s.path(base + "_DRYRUN")
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := bilib.CopyFile(src, dst); err != nil {
			return err
		}
		if err := os.Chmod(dst, PermSecureMode); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a snapshot for this session has ever been
// written; callers use this to decide between a normal run and a refusal
// pending --first-sync.
func (s *Store) Exists() bool {
	return bilib.FileExists(s.LocalSnapshotPath())
}

// Load reads the persisted snapshot for one side; an empty (not-yet-
// created) snapshot is returned as an empty Listing rather than an error,
// callers must check Exists first if that distinction matters.
func (s *Store) Load(path string) (*Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewListing(), nil
		}
		return nil, err
	}
	defer f.Close()
	return ParseListing(f)
}

// Save writes listing to path atomically: it is written to a temp file in
// the same directory then renamed over path, so a reader never observes a
// partially written snapshot.
func (s *Store) Save(path string, listing *Listing) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, PermSecureMode)
	if err != nil {
		return err
	}
	if err := WriteListing(f, listing); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ListSide invokes the Transfer Driver's list primitive for one side and
// loads the result as a Listing.
func ListSide(ctx context.Context, d Driver, root, excludeFile string) (*Listing, error) {
	text, ok := d.List(ctx, root, excludeFile)
	if !ok {
		return nil, Critical(nil, "listing "+root+" failed")
	}
	return ParseListing(strings.NewReader(text))
}

// RemoveTransient deletes the "new" transient listings at the end of a
// successful run.
func (s *Store) RemoveTransient() {
	for _, p := range []string{s.LocalNewPath(), s.RemoteNewPath(), s.LocalChkPath(), s.RemoteChkPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			synclog.Debugf("snapshot: could not remove transient file %s: %v", p, err)
		}
	}
}

// Invalidate renames both snapshots to their _ERROR suffix so the next run
// refuses to proceed without an explicit --first-sync.
func (s *Store) Invalidate() {
	pairs := [][2]string{
		{s.LocalSnapshotPath(), s.localErrorPath()},
		{s.RemoteSnapshotPath(), s.remoteErrorPath()},
	}
	for _, p := range pairs {
		if _, err := os.Stat(p[0]); err != nil {
			continue
		}
		if err := os.Rename(p[0], p[1]); err != nil {
			synclog.Errorf("snapshot: failed to quarantine %s: %v", p[0], err)
		}
	}
}
