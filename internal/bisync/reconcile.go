package bisync

import (
	"context"
	"strings"

	"github.com/exhorder/rclonesync/internal/synclog"
)

// sidePath joins a root ("local/dir" or "remote:dir") with a listing path.
func sidePath(root, path string) string {
	root = strings.TrimRight(root, "/")
	return root + "/" + path
}

// changed reports whether a Delta represents a modification (as opposed to
// new/deleted): any of newer, older, or size. "Older" is treated identically
// to "newer" in the action matrix, the distinction is only for the log
// message, and a size-only change (same mtime, different size) is handled
// the same way since it is still "this side changed".
func changed(d Delta) bool {
	return d.Is(FlagNewer) || d.Is(FlagOlder) || d.Is(FlagSize)
}

func changeLabel(d Delta) string {
	switch {
	case d.Is(FlagOlder):
		return "older"
	case d.Is(FlagNewer):
		return "newer"
	default:
		return "size-changed"
	}
}

// Reconcile walks the remote deltas first, applying the remote-to-local
// action for each path, then walks the local deltas for the
// locally-deleted-but-remotely-changed rescue case. It returns as soon as a
// single Driver call fails, halting immediately on a critical failure
// while accepting whatever progress was already made.
func Reconcile(ctx context.Context, d Driver, localRoot, remoteRoot string, nowLocal, nowRemote *Listing, localDelta, remoteDelta *DeltaSet) error {
	var failed error
	remoteDelta.Each(func(rd Delta) {
		if failed != nil {
			return
		}
		path := rd.Path
		_, localHasDelta := localDelta.Get(path)
		localPresentNow := nowLocal.Has(path)

		localPath := sidePath(localRoot, path)
		remotePath := sidePath(remoteRoot, path)

		switch {
		case rd.Is(FlagNew):
			if !localPresentNow {
				synclog.Infof("new on remote: %s -> local", path)
				if !d.Copy(ctx, remotePath, localPath, false) {
					failed = Critical(nil, "copy remote->local failed for "+path)
				}
				return
			}
			synclog.Infof("conflict (new on both sides): %s", path)
			if !d.Copy(ctx, remotePath, localPath+"_REMOTE", false) {
				failed = Critical(nil, "conflict copy remote->local_REMOTE failed for "+path)
				return
			}
			if !d.Move(ctx, localPath, localPath+"_LOCAL") {
				failed = Critical(nil, "conflict rename local->local_LOCAL failed for "+path)
			}

		case changed(rd):
			switch {
			case !localHasDelta:
				synclog.Infof("%s on remote: %s -> local (forced)", changeLabel(rd), path)
				if !d.Copy(ctx, remotePath, localPath, true) {
					failed = Critical(nil, "forced copy remote->local failed for "+path)
				}
			case localPresentNow:
				synclog.Infof("conflict (%s on remote, changed on local): %s", changeLabel(rd), path)
				if !d.Copy(ctx, remotePath, localPath+"_REMOTE", true) {
					failed = Critical(nil, "conflict copy remote->local_REMOTE failed for "+path)
					return
				}
				if !d.Move(ctx, localPath, localPath+"_LOCAL") {
					failed = Critical(nil, "conflict rename local->local_LOCAL failed for "+path)
				}
			default:
				// Locally deleted but modified on remote: remote wins.
				synclog.Infof("remote changed, locally deleted: %s -> local (restored)", path)
				if !d.Copy(ctx, remotePath, localPath, true) {
					failed = Critical(nil, "restore copy remote->local failed for "+path)
				}
			}

		case rd.Is(FlagDeleted):
			if !localHasDelta && localPresentNow {
				synclog.Infof("deleted on remote: removing local %s", path)
				if !d.Delete(ctx, localPath) {
					failed = Critical(nil, "delete local failed for "+path)
				}
				return
			}
			if localHasDelta {
				synclog.Infof("deleted on remote, changed on local: keeping local %s", path)
			}
		}
	})
	if failed != nil {
		return failed
	}

	localDelta.Each(func(ld Delta) {
		if failed != nil || !ld.Is(FlagDeleted) {
			return
		}
		path := ld.Path
		if _, ok := remoteDelta.Get(path); !ok {
			return
		}
		if !nowRemote.Has(path) {
			return
		}
		synclog.Infof("deleted on local, modified on remote: %s -> local (restored)", path)
		localPath := sidePath(localRoot, path)
		remotePath := sidePath(remoteRoot, path)
		if !d.Copy(ctx, remotePath, localPath, true) {
			failed = Critical(nil, "restore copy remote->local failed for "+path)
		}
	})
	return failed
}
