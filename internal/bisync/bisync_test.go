package bisync

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fakeDriver is an in-memory double for Driver, modeling two named trees of
// path -> Entry. It exercises exactly the same Driver interface the real
// os/exec-backed ExecDriver implements, so the reconciliation engine can be
// tested end-to-end without a real rclone binary on PATH, the same way
// fs/sync and fs/operations are tested against the in-process "local"
// backend rather than live cloud providers.
type fakeDriver struct {
	trees map[string]map[string]Entry
	fail  map[string]bool // primitive name -> force failure, for critical-path tests
}

func newFakeDriver(localRoot, remoteRoot string) *fakeDriver {
	return &fakeDriver{
		trees: map[string]map[string]Entry{
			localRoot:  {},
			remoteRoot: {},
		},
		fail: map[string]bool{},
	}
}

func (f *fakeDriver) resolve(full string) (map[string]Entry, string) {
	for root, tree := range f.trees {
		prefix := root + "/"
		if strings.HasPrefix(full, prefix) {
			return tree, strings.TrimPrefix(full, prefix)
		}
		if full == root {
			return tree, ""
		}
	}
	panic("fakeDriver: unknown root in path " + full)
}

func (f *fakeDriver) List(ctx context.Context, root, excludeFile string) (string, bool) {
	if f.fail["list"] {
		return "", false
	}
	tree := f.trees[root]
	l := NewListing()
	for _, e := range tree {
		l.Set(e)
	}
	var buf strings.Builder
	if err := WriteListing(&buf, l); err != nil {
		return "", false
	}
	return buf.String(), true
}

func (f *fakeDriver) Copy(ctx context.Context, src, dst string, force bool) bool {
	if f.fail["copy"] {
		return false
	}
	srcTree, srcPath := f.resolve(src)
	dstTree, dstPath := f.resolve(dst)
	e, ok := srcTree[srcPath]
	if !ok {
		return false
	}
	e.Path = dstPath
	dstTree[dstPath] = e
	return true
}

func (f *fakeDriver) Move(ctx context.Context, src, dst string) bool {
	if f.fail["move"] {
		return false
	}
	srcTree, srcPath := f.resolve(src)
	dstTree, dstPath := f.resolve(dst)
	e, ok := srcTree[srcPath]
	if !ok {
		return false
	}
	delete(srcTree, srcPath)
	e.Path = dstPath
	dstTree[dstPath] = e
	return true
}

func (f *fakeDriver) Delete(ctx context.Context, path string) bool {
	if f.fail["delete"] {
		return false
	}
	tree, p := f.resolve(path)
	delete(tree, p)
	return true
}

func (f *fakeDriver) SyncTree(ctx context.Context, src, dst, excludeFile string) bool {
	if f.fail["sync"] {
		return false
	}
	srcTree := f.trees[src]
	dstTree := f.trees[dst]
	for p, e := range srcTree {
		dstTree[p] = e
	}
	for p := range dstTree {
		if _, ok := srcTree[p]; !ok {
			delete(dstTree, p)
		}
	}
	return true
}

func (f *fakeDriver) RemoveEmptyDirs(ctx context.Context, root string) bool {
	return !f.fail["rmdirs"]
}

func setPrior(t *testing.T, store *Store, local, remote *Listing) {
	t.Helper()
	require.NoError(t, store.Save(store.LocalSnapshotPath(), local))
	require.NoError(t, store.Save(store.RemoteSnapshotPath(), remote))
}

func listingOf(entries ...Entry) *Listing {
	l := NewListing()
	for _, e := range entries {
		l.Set(e)
	}
	return l
}

const (
	localRoot  = "local"
	remoteRoot = "remote"
)

func newHarness(t *testing.T) (*fakeDriver, *Store, Options) {
	t.Helper()
	workDir := t.TempDir()
	d := newFakeDriver(localRoot, remoteRoot)
	store := &Store{WorkDir: workDir, Session: "remote"}
	opt := Options{
		RemoteName: "remote",
		LocalRoot:  localRoot,
		RemoteRoot: remoteRoot,
		WorkDir:    workDir,
		MaxDelete:  DefaultMaxDelete,
	}.WithDefaults()
	return d, store, opt
}

var t1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
var t2 = t1.Add(time.Hour)
var t3 = t1.Add(2 * time.Hour)

// An empty run: no changes on either side.
func TestScenarioEmptyRun(t *testing.T) {
	d, store, opt := newHarness(t)
	both := listingOf(Entry{Path: "a", Size: 10, MTime: t1}, Entry{Path: "b", Size: 20, MTime: t2})
	d.trees[localRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	d.trees[localRoot]["b"] = Entry{Path: "b", Size: 20, MTime: t2}
	d.trees[remoteRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	d.trees[remoteRoot]["b"] = Entry{Path: "b", Size: 20, MTime: t2}
	setPrior(t, store, both, both)

	require.NoError(t, Run(context.Background(), d, opt))

	assert := require.New(t)
	assert.Len(d.trees[localRoot], 2)
	assert.Len(d.trees[remoteRoot], 2)

	after, err := store.Load(store.LocalSnapshotPath())
	require.NoError(t, err)
	assert.True(after.Equal(both))
}

// A one-sided new local file propagates to remote.
func TestScenarioOneSidedNewLocal(t *testing.T) {
	d, store, opt := newHarness(t)
	prior := listingOf(Entry{Path: "a", Size: 10, MTime: t1})
	d.trees[localRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	d.trees[localRoot]["c"] = Entry{Path: "c", Size: 5, MTime: t3}
	d.trees[remoteRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	setPrior(t, store, prior, prior)

	require.NoError(t, Run(context.Background(), d, opt))

	_, ok := d.trees[remoteRoot]["c"]
	require.True(t, ok, "new local file must propagate to remote")
	_, ok = d.trees[localRoot]["c"]
	require.True(t, ok, "local copy must remain")
}

// A conflict: both sides create the same path independently.
func TestScenarioConflictBothNew(t *testing.T) {
	d, store, opt := newHarness(t)
	empty := NewListing()
	d.trees[localRoot]["d"] = Entry{Path: "d", Size: 7, MTime: t1}
	d.trees[remoteRoot]["d"] = Entry{Path: "d", Size: 8, MTime: t2}
	setPrior(t, store, empty, empty)

	require.NoError(t, Run(context.Background(), d, opt))

	_, hasPlain := d.trees[localRoot]["d"]
	require.False(t, hasPlain, "the bare path must not survive a conflict")
	_, hasLocal := d.trees[localRoot]["d_LOCAL"]
	require.True(t, hasLocal)
	_, hasRemote := d.trees[localRoot]["d_REMOTE"]
	require.True(t, hasRemote)

	// the local->remote sync must propagate both conflict artifacts
	_, ok := d.trees[remoteRoot]["d_LOCAL"]
	require.True(t, ok)
	_, ok = d.trees[remoteRoot]["d_REMOTE"]
	require.True(t, ok)
	_, ok = d.trees[remoteRoot]["d"]
	require.False(t, ok)
}

// A remote delete with local unchanged: the deletion propagates to local.
func TestScenarioRemoteDeleteLocalUnchanged(t *testing.T) {
	d, store, opt := newHarness(t)
	prior := listingOf(Entry{Path: "e", Size: 3, MTime: t1})
	d.trees[localRoot]["e"] = Entry{Path: "e", Size: 3, MTime: t1}
	// remote: e already deleted
	setPrior(t, store, prior, prior)

	require.NoError(t, Run(context.Background(), d, opt))

	require.Empty(t, d.trees[localRoot])
	require.Empty(t, d.trees[remoteRoot])
}

// A remote delete with local changed: local change wins, restored
// to remote.
func TestScenarioRemoteDeleteLocalChanged(t *testing.T) {
	d, store, opt := newHarness(t)
	prior := listingOf(Entry{Path: "f", Size: 3, MTime: t1})
	d.trees[localRoot]["f"] = Entry{Path: "f", Size: 4, MTime: t2}
	// remote: f already deleted
	setPrior(t, store, prior, prior)

	require.NoError(t, Run(context.Background(), d, opt))

	local, ok := d.trees[localRoot]["f"]
	require.True(t, ok, "local change must survive a concurrent remote delete")
	require.Equal(t, int64(4), local.Size)

	remote, ok := d.trees[remoteRoot]["f"]
	require.True(t, ok, "local change must be propagated back to remote")
	require.Equal(t, int64(4), remote.Size)
}

// The excess-deletion guard trips and blocks all mutation.
func TestScenarioExcessDeletionGuard(t *testing.T) {
	d, store, opt := newHarness(t)
	prior := NewListing()
	for i := 0; i < 10; i++ {
		p := string(rune('a' + i))
		e := Entry{Path: p, Size: 1, MTime: t1}
		prior.Set(e)
		d.trees[remoteRoot][p] = e
	}
	// local now has only 4 of the 10 -> 60% deleted
	for i := 0; i < 4; i++ {
		p := string(rune('a' + i))
		d.trees[localRoot][p] = Entry{Path: p, Size: 1, MTime: t1}
	}
	setPrior(t, store, prior, prior)

	remoteBefore := len(d.trees[remoteRoot])
	err := Run(context.Background(), d, opt)

	require.Error(t, err)
	require.Equal(t, SevAbort, SeverityOf(err))
	require.Equal(t, remoteBefore, len(d.trees[remoteRoot]), "no mutating call may have been issued")

	// snapshots must remain untouched (still the original prior content)
	after, err2 := store.Load(store.LocalSnapshotPath())
	require.NoError(t, err2)
	require.True(t, after.Equal(prior))
}

// Idempotence: running twice with no intervening changes is a no-op the
// second time and produces byte-identical snapshots.
func TestIdempotence(t *testing.T) {
	d, store, opt := newHarness(t)
	both := listingOf(Entry{Path: "a", Size: 10, MTime: t1})
	d.trees[localRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	d.trees[remoteRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	setPrior(t, store, both, both)

	require.NoError(t, Run(context.Background(), d, opt))
	first, err := store.Load(store.LocalSnapshotPath())
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), d, opt))
	second, err := store.Load(store.LocalSnapshotPath())
	require.NoError(t, err)

	require.True(t, first.Equal(second))
}

// A critical failure mid-pass halts immediately, accepts whatever progress
// was already made, and invalidates both snapshots so the next run refuses
// to proceed without --first-sync.
func TestCriticalFailureInvalidatesSnapshots(t *testing.T) {
	d, store, opt := newHarness(t)
	prior := listingOf(Entry{Path: "a", Size: 10, MTime: t1})
	d.trees[localRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	d.trees[remoteRoot]["a"] = Entry{Path: "a", Size: 10, MTime: t1}
	d.trees[remoteRoot]["c"] = Entry{Path: "c", Size: 5, MTime: t3}
	setPrior(t, store, prior, prior)

	d.fail["copy"] = true // the new-on-remote path will try to Copy and fail

	err := Run(context.Background(), d, opt)
	require.Error(t, err)
	require.Equal(t, SevCritical, SeverityOf(err))

	require.True(t, fileExists(store.localErrorPath()))
	require.True(t, fileExists(store.remoteErrorPath()))
	require.False(t, fileExists(store.LocalSnapshotPath()))
}
