package bisync

import "github.com/exhorder/rclonesync/internal/synclog"

// excessDeletionGuard aborts a run if the fraction of prior paths deleted
// on a side exceeds maxDeletePercent, unless force is set. An empty prior
// listing (priorLen == 0) never trips the guard, 0/0 is treated as "pass".
// The same reasoning extends to priorLen == 1: a percentage computed from
// a single sample can only ever read 0% or 100%, so it carries no
// statistical signal. Deleting the one file that used to exist is
// indistinguishable from deleting everything, and is the overwhelmingly
// common, legitimate case.
func excessDeletionGuard(side string, deletedCount, priorLen, maxDeletePercent int, force bool) error {
	if priorLen <= 1 || deletedCount == 0 {
		return nil
	}
	if deletedCount*100 <= maxDeletePercent*priorLen {
		return nil
	}
	pct := deletedCount * 100 / priorLen
	synclog.Errorf("%s: %d/%d (%d%%) paths deleted, exceeds --max-delete=%d%%", side, deletedCount, priorLen, pct, maxDeletePercent)
	if force {
		synclog.Infof("%s: --force set, proceeding despite excess deletions", side)
		return nil
	}
	return Abort(nil, side+": excessive deletions, rerun with --force to proceed")
}
