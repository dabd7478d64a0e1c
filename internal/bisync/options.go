package bisync

import "time"

// Default flag values.
const (
	DefaultMaxDelete     = 50
	DefaultCheckFilename = "RCLONE_TEST"
	lockPollInterval     = time.Second
	lockAcquireTimeout   = 5 * time.Second
)

// Options holds every flag the CLI surface accepts, threaded explicitly
// through the engine instead of living as package-level state.
type Options struct {
	RemoteName string // identifies the remote side, used in snapshot filenames
	LocalRoot  string
	RemoteRoot string // e.g. "myremote:path"
	WorkDir    string

	FirstSync     bool
	CheckAccess   bool
	CheckFilename string
	Force         bool
	MaxDelete     int // percent; negative means "unset, use DefaultMaxDelete" so 0 stays available to mean "forbid all deletions"
	FiltersFile   string
	DryRun        bool
	Verbose       int

	UseRC  bool // drive rclone rcd instead of spawning a subprocess per call
	RCAddr string
}

// WithDefaults returns a copy of o with unset fields set to their
// documented defaults. MaxDelete is left untouched unless negative, so an
// explicit --max-delete=0 (forbid all deletions) is not coerced away.
func (o Options) WithDefaults() Options {
	if o.CheckFilename == "" {
		o.CheckFilename = DefaultCheckFilename
	}
	if o.MaxDelete < 0 {
		o.MaxDelete = DefaultMaxDelete
	}
	return o
}
