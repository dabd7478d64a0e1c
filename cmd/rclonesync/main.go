// Command rclonesync bidirectionally reconciles a local directory tree
// with a remote cloud-storage tree, using the rclone binary (or a running
// rclone rcd daemon, with --use-rc) as its transfer utility.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/exhorder/rclonesync/internal/bilib"
	"github.com/exhorder/rclonesync/internal/bisync"
	"github.com/exhorder/rclonesync/internal/synclog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	var opt bisync.Options
	var verboseCount int
	var noColor bool

	cmd := &cobra.Command{
		Use:   "rclonesync <remote-name> <local-root>",
		Short: "Bidirectionally sync a local directory tree with a remote",
		Long: `rclonesync reconciles independent changes made to a local directory tree
and a remote cloud-storage tree since the previous successful run, using
rclone as the underlying transfer utility.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opt.RemoteName = args[0]
			opt.LocalRoot = bilib.FsPath(args[1])
			opt.RemoteRoot = args[0]

			synclog.SetColor(!noColor)
			synclog.SetLevel(synclog.Verbose(verboseCount))
			opt.Verbose = verboseCount

			if opt.WorkDir == "" {
				home, err := homedir.Dir()
				if err != nil {
					return bisync.Abort(err, "resolving home directory for default --workdir")
				}
				opt.WorkDir = filepath.Join(home, ".cache", "rclonesync")
			}

			if opt.FiltersFile != "" {
				if _, err := os.Stat(opt.FiltersFile); err != nil {
					return bisync.Abort(err, "--exclude-list-file must exist before the run starts")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var driver bisync.Driver
			if opt.UseRC {
				driver = bisync.NewRCDriver(opt.RCAddr, opt.DryRun)
			} else {
				driver = bisync.NewExecDriver("rclone", opt.DryRun)
			}

			return bisync.Run(ctx, driver, opt)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opt.FirstSync, "first-sync", false, "initialize snapshots from current state instead of reconciling")
	flags.BoolVar(&opt.CheckAccess, "check-access", false, "require a sentinel file on both sides before syncing")
	flags.StringVar(&opt.CheckFilename, "check-filename", bisync.DefaultCheckFilename, "sentinel filename used by --check-access")
	flags.BoolVar(&opt.Force, "force", false, "bypass the excess-deletion safety guard")
	flags.StringVar(&opt.FiltersFile, "exclude-list-file", "", "path to a file of patterns to exclude from every list/sync")
	flags.BoolVar(&opt.DryRun, "dry-run", false, "do not apply any changes; operate on copied snapshots")
	flags.CountVarP(&verboseCount, "verbose", "v", "logging verbosity; -vv enables debug output (a single -v keeps the default level)")
	flags.StringVar(&opt.WorkDir, "workdir", "", "directory holding snapshot state (default ~/.cache/rclonesync)")
	flags.IntVar(&opt.MaxDelete, "max-delete", -1, fmt.Sprintf("abort if more than this percent of a side's prior files were deleted (default %d; 0 forbids all deletions)", bisync.DefaultMaxDelete))
	flags.BoolVar(&noColor, "no-color", false, "disable ANSI-colored log output")
	flags.BoolVar(&opt.UseRC, "use-rc", false, "drive a running rclone rcd daemon instead of spawning a subprocess per call")
	flags.StringVar(&opt.RCAddr, "rc-addr", "http://localhost:5572", "address of the rclone rcd daemon when --use-rc is set")

	return cmd
}

func exitCodeFor(err error) int {
	switch bisync.SeverityOf(err) {
	case bisync.SevAbort:
		fmt.Fprintln(os.Stderr, "rclonesync: aborted:", err)
		return 1
	case bisync.SevCritical:
		fmt.Fprintln(os.Stderr, "rclonesync: critical:", err)
		return 2
	default:
		fmt.Fprintln(os.Stderr, "rclonesync:", err)
		return 1
	}
}
