package bisync

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/exhorder/rclonesync/internal/synclog"
)

// Driver is the transfer abstraction: six primitives backed by an
// external transfer utility, every one returning a simple success/failure.
// The driver never surfaces the utility's own output beyond List; it does
// not parse the utility's output beyond exit status.
type Driver interface {
	// List returns a text listing of root, honoring excludeFile if set.
	List(ctx context.Context, root, excludeFile string) (string, bool)
	Copy(ctx context.Context, src, dst string, force bool) bool
	Move(ctx context.Context, src, dst string) bool
	Delete(ctx context.Context, path string) bool
	SyncTree(ctx context.Context, src, dst, excludeFile string) bool
	RemoveEmptyDirs(ctx context.Context, root string) bool
}

// ExecDriver shells out to the rclone binary, one subprocess per call,
// treating it as an external collaborator rather than linking its
// packages directly.
type ExecDriver struct {
	Binary string // defaults to "rclone"
	DryRun bool
}

// NewExecDriver returns a Driver backed by the named rclone binary
// ("rclone" if empty).
func NewExecDriver(binary string, dryRun bool) *ExecDriver {
	if binary == "" {
		binary = "rclone"
	}
	return &ExecDriver{Binary: binary, DryRun: dryRun}
}

func (d *ExecDriver) run(ctx context.Context, args ...string) (string, bool) {
	if d.DryRun {
		args = append(args, "--dry-run")
	}
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		synclog.Errorf("rclone %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		return stdout.String(), false
	}
	return stdout.String(), true
}

func withExclude(args []string, excludeFile string) []string {
	if excludeFile != "" {
		args = append(args, "--exclude-from", excludeFile)
	}
	return args
}

// List implements Driver.
func (d *ExecDriver) List(ctx context.Context, root, excludeFile string) (string, bool) {
	args := []string{"lsl", root}
	args = withExclude(args, excludeFile)
	return d.run(ctx, args...)
}

// Copy implements Driver.
func (d *ExecDriver) Copy(ctx context.Context, src, dst string, force bool) bool {
	args := []string{"copyto", src, dst}
	if force {
		args = append(args, "--ignore-times")
	}
	_, ok := d.run(ctx, args...)
	return ok
}

// Move implements Driver.
func (d *ExecDriver) Move(ctx context.Context, src, dst string) bool {
	_, ok := d.run(ctx, "moveto", src, dst)
	return ok
}

// Delete implements Driver.
func (d *ExecDriver) Delete(ctx context.Context, path string) bool {
	_, ok := d.run(ctx, "deletefile", path)
	return ok
}

// SyncTree implements Driver.
func (d *ExecDriver) SyncTree(ctx context.Context, src, dst, excludeFile string) bool {
	args := []string{"sync", src, dst}
	args = withExclude(args, excludeFile)
	_, ok := d.run(ctx, args...)
	return ok
}

// RemoveEmptyDirs implements Driver.
func (d *ExecDriver) RemoveEmptyDirs(ctx context.Context, root string) bool {
	_, ok := d.run(ctx, "rmdirs", root, "--leave-root")
	return ok
}
