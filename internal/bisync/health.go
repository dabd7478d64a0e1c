package bisync

import (
	"context"
	"strings"

	"github.com/exhorder/rclonesync/internal/synclog"
)

// CheckAccess lists the sentinel file (conventionally RCLONE_TEST) on both
// sides and requires that both listings are non-empty and contain the same
// set of paths. Any mismatch is critical: an empty listing here usually
// means a remote is unmounted or unreachable, and reconciling against that
// would read as "everything was deleted".
func CheckAccess(ctx context.Context, d Driver, localRoot, remoteRoot, sentinel string) error {
	localText, ok := d.List(ctx, localRoot, "")
	if !ok {
		return Critical(nil, "health check: failed to list local root")
	}
	remoteText, ok := d.List(ctx, remoteRoot, "")
	if !ok {
		return Critical(nil, "health check: failed to list remote root")
	}

	localPaths, err := sentinelPaths(localText, sentinel)
	if err != nil {
		return Critical(err, "health check: parsing local listing")
	}
	remotePaths, err := sentinelPaths(remoteText, sentinel)
	if err != nil {
		return Critical(err, "health check: parsing remote listing")
	}

	if len(localPaths) == 0 || len(remotePaths) == 0 {
		return Critical(nil, "health check: sentinel file missing on one side")
	}
	if !sameSet(localPaths, remotePaths) {
		return Critical(nil, "health check: sentinel paths differ between local and remote")
	}
	synclog.Infof("health check: %d sentinel file(s) matched on both sides", len(localPaths))
	return nil
}

func sentinelPaths(listingText, sentinel string) (map[string]bool, error) {
	listing, err := ParseListing(strings.NewReader(listingText))
	if err != nil {
		return nil, err
	}
	paths := make(map[string]bool)
	listing.Each(func(e Entry) {
		if e.Path == sentinel || strings.HasSuffix(e.Path, "/"+sentinel) {
			paths[e.Path] = true
		}
	})
	return paths, nil
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
