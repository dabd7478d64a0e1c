package bisync

import "github.com/exhorder/rclonesync/internal/synclog"

// Flag is a bitmask of the ways a single path changed between a prior
// snapshot and the current listing on one side.
type Flag uint8

const (
	FlagNew Flag = 1 << iota
	FlagDeleted
	FlagNewer
	FlagOlder
	FlagSize
)

// Delta is the change classification for one path on one side.
type Delta struct {
	Path  string
	Flags Flag
}

func (d Delta) Is(f Flag) bool { return d.Flags&f != 0 }

// DeltaSet is a path-sorted set of Deltas plus the count of paths deleted,
// used by the excess-deletion safety guard.
type DeltaSet struct {
	Paths        []string
	byPath       map[string]Delta
	DeletedCount int
}

func (ds *DeltaSet) Get(path string) (Delta, bool) {
	d, ok := ds.byPath[path]
	return d, ok
}

func (ds *DeltaSet) Each(fn func(Delta)) {
	for _, p := range ds.Paths {
		fn(ds.byPath[p])
	}
}

func (ds *DeltaSet) add(d Delta) {
	if ds.byPath == nil {
		ds.byPath = make(map[string]Delta)
	}
	ds.Paths = append(ds.Paths, d.Path)
	ds.byPath[d.Path] = d
}

// ComputeDelta is a pure function of (prior, now) that produces the
// path-sorted set of changes on one side. prior and now are both
// path-sorted Listings, so a single merge-style pass over both produces a
// path-sorted result without an explicit final sort.
func ComputeDelta(side string, prior, now *Listing) *DeltaSet {
	ds := &DeltaSet{byPath: make(map[string]Delta)}
	i, j := 0, 0
	for i < len(prior.Paths) || j < len(now.Paths) {
		switch {
		case j >= len(now.Paths) || (i < len(prior.Paths) && prior.Paths[i] < now.Paths[j]):
			// present in prior only -> deleted
			p := prior.Paths[i]
			ds.add(Delta{Path: p, Flags: FlagDeleted})
			ds.DeletedCount++
			synclog.Debugf("%s: %s deleted", side, p)
			i++
		case i >= len(prior.Paths) || now.Paths[j] < prior.Paths[i]:
			// present in now only -> new
			p := now.Paths[j]
			ds.add(Delta{Path: p, Flags: FlagNew})
			synclog.Debugf("%s: %s is new", side, p)
			j++
		default:
			// present in both -> compare
			p := prior.Paths[i]
			pe, _ := prior.Get(p)
			ne, _ := now.Get(p)
			var flags Flag
			switch {
			case pe.MTime.Before(ne.MTime):
				flags |= FlagNewer
			case pe.MTime.After(ne.MTime):
				flags |= FlagOlder
			}
			if pe.Size != ne.Size {
				flags |= FlagSize
			}
			if flags != 0 {
				ds.add(Delta{Path: p, Flags: flags})
				synclog.Debugf("%s: %s changed (flags=%b)", side, p, flags)
			}
			i++
			j++
		}
	}
	return ds
}
