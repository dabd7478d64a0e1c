// Package bisync implements the three-way reconciliation engine: given a
// prior snapshot, a current local listing, and a current remote listing,
// it computes per-path deltas on both sides, classifies each path into a
// sync action, enforces the safety invariants, drives a Transfer Driver,
// and updates snapshots atomically for the next run.
package bisync

import (
	"context"
	"os"

	"github.com/exhorder/rclonesync/internal/bilib"
	"github.com/exhorder/rclonesync/internal/synclog"
)

// Run executes one bisync pass for opt, using d as the Transfer Driver.
// It is the single entry point cmd/rclonesync calls; everything it needs
// is carried in opt and d rather than package-level state.
func Run(ctx context.Context, d Driver, opt Options) error {
	opt = opt.WithDefaults()

	if err := ensureWorkDir(opt.WorkDir); err != nil {
		return Abort(err, "working directory is not usable")
	}

	// Snapshot files are keyed by the remote name alone
	// ("<workdir>/R_localLSL"); CanonicalPath makes that name
	// filesystem-safe when it contains rclone's "remote:path" colon
	// notation.
	session := bilib.CanonicalPath(opt.RemoteName)
	store := &Store{WorkDir: opt.WorkDir, Session: session, DryRun: opt.DryRun}
	if err := store.PrepareDryRun(); err != nil {
		return Abort(err, "preparing dry-run snapshot copies")
	}

	lockPath := LockPath(opt.WorkDir, session)
	lock, err := AcquireLock(lockPath)
	if err != nil {
		return Abort(err, "could not acquire run lock")
	}
	defer func() {
		if err := lock.Release(); err != nil {
			synclog.Errorf("failed to release run lock %s: %v", lockPath, err)
		}
	}()

	if !store.Exists() {
		if !opt.FirstSync {
			return Abort(nil, "no prior snapshot for this remote; rerun with --first-sync")
		}
		return runFirstSync(ctx, d, opt, store)
	}

	if opt.CheckAccess {
		if err := CheckAccess(ctx, d, opt.LocalRoot, opt.RemoteRoot, opt.CheckFilename); err != nil {
			store.Invalidate()
			return err
		}
	}

	nowLocal, err := ListSide(ctx, d, opt.LocalRoot, opt.FiltersFile)
	if err != nil {
		store.Invalidate()
		return err
	}
	nowRemote, err := ListSide(ctx, d, opt.RemoteRoot, opt.FiltersFile)
	if err != nil {
		store.Invalidate()
		return err
	}
	if nowLocal.Len() == 0 && nowRemote.Len() == 0 {
		return Abort(nil, "both current listings are empty; refusing to proceed")
	}
	if err := store.Save(store.LocalNewPath(), nowLocal); err != nil {
		synclog.Debugf("could not persist transient local listing: %v", err)
	}
	if err := store.Save(store.RemoteNewPath(), nowRemote); err != nil {
		synclog.Debugf("could not persist transient remote listing: %v", err)
	}

	priorLocal, err := store.Load(store.LocalSnapshotPath())
	if err != nil {
		store.Invalidate()
		return Critical(err, "loading local snapshot")
	}
	priorRemote, err := store.Load(store.RemoteSnapshotPath())
	if err != nil {
		store.Invalidate()
		return Critical(err, "loading remote snapshot")
	}

	localDelta := ComputeDelta("local", priorLocal, nowLocal)
	remoteDelta := ComputeDelta("remote", priorRemote, nowRemote)
	synclog.Infof("local: %d changed path(s), %d deletion(s)", len(localDelta.Paths), localDelta.DeletedCount)
	synclog.Infof("remote: %d changed path(s), %d deletion(s)", len(remoteDelta.Paths), remoteDelta.DeletedCount)

	// The safety guard runs after both sides' changes have been logged,
	// so the operator can see what would have happened before deciding
	// whether to force past it.
	if err := excessDeletionGuard("local", localDelta.DeletedCount, priorLocal.Len(), opt.MaxDelete, opt.Force); err != nil {
		return err
	}
	if err := excessDeletionGuard("remote", remoteDelta.DeletedCount, priorRemote.Len(), opt.MaxDelete, opt.Force); err != nil {
		return err
	}

	if err := Reconcile(ctx, d, opt.LocalRoot, opt.RemoteRoot, nowLocal, nowRemote, localDelta, remoteDelta); err != nil {
		store.Invalidate()
		return err
	}

	synclog.Infof("syncing local -> remote")
	if !d.SyncTree(ctx, opt.LocalRoot, opt.RemoteRoot, opt.FiltersFile) {
		store.Invalidate()
		return Critical(nil, "local->remote sync failed")
	}
	if !d.RemoveEmptyDirs(ctx, opt.LocalRoot) {
		store.Invalidate()
		return Critical(nil, "removing empty local directories failed")
	}
	if !d.RemoveEmptyDirs(ctx, opt.RemoteRoot) {
		store.Invalidate()
		return Critical(nil, "removing empty remote directories failed")
	}

	if err := refreshSnapshots(ctx, d, opt, store); err != nil {
		store.Invalidate()
		return err
	}

	store.RemoveTransient()
	synclog.Infof("bisync complete")
	return nil
}

// runFirstSync implements the glossary's First-sync mode: it initializes
// snapshots from the current state of both sides, copying remote-unique
// files to local, without attempting reconciliation.
func runFirstSync(ctx context.Context, d Driver, opt Options, store *Store) error {
	synclog.Infof("first sync: initializing snapshots for %s <-> %s", opt.LocalRoot, opt.RemoteRoot)

	nowLocal, err := ListSide(ctx, d, opt.LocalRoot, opt.FiltersFile)
	if err != nil {
		return err
	}
	nowRemote, err := ListSide(ctx, d, opt.RemoteRoot, opt.FiltersFile)
	if err != nil {
		return err
	}

	var failed error
	nowRemote.Each(func(e Entry) {
		if failed != nil || nowLocal.Has(e.Path) {
			return
		}
		synclog.Infof("first sync: fetching remote-only %s", e.Path)
		if !d.Copy(ctx, sidePath(opt.RemoteRoot, e.Path), sidePath(opt.LocalRoot, e.Path), false) {
			failed = Critical(nil, "first sync: copy remote->local failed for "+e.Path)
		}
	})
	if failed != nil {
		return failed
	}

	synclog.Infof("first sync: syncing local -> remote")
	if !d.SyncTree(ctx, opt.LocalRoot, opt.RemoteRoot, opt.FiltersFile) {
		return Critical(nil, "first sync: local->remote sync failed")
	}

	return refreshSnapshots(ctx, d, opt, store)
}

// refreshSnapshots re-lists both sides and persists the result as the new
// snapshots. The authoritative source is always the post-sync actual
// state, never patched in-memory deltas.
func refreshSnapshots(ctx context.Context, d Driver, opt Options, store *Store) error {
	finalLocal, err := ListSide(ctx, d, opt.LocalRoot, opt.FiltersFile)
	if err != nil {
		return err
	}
	finalRemote, err := ListSide(ctx, d, opt.RemoteRoot, opt.FiltersFile)
	if err != nil {
		return err
	}
	if err := store.Save(store.LocalSnapshotPath(), finalLocal); err != nil {
		return Critical(err, "saving local snapshot")
	}
	if err := store.Save(store.RemoteSnapshotPath(), finalRemote); err != nil {
		return Critical(err, "saving remote snapshot")
	}
	return nil
}

func ensureWorkDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	probe := dir + "/.write_probe"
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(probe)
}
