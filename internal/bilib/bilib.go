// Package bilib collects small path and file utilities shared across the
// bisync engine: path canonicalization and normalization, session naming,
// file copying, and test helpers.
package bilib

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PermSecure is the file mode used for files that must not be world- or
// group-readable: lock files and snapshot files.
const PermSecure = 0600

// FsPath canonicalizes a local filesystem root into a slash-delimited,
// normalized absolute path suitable for use as a Listing root.
func FsPath(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	abs = filepath.ToSlash(abs)
	return norm.NFC.String(abs)
}

// IsLocalPath reports whether remote names a local filesystem path rather
// than a configured remote (no "name:" prefix).
func IsLocalPath(remote string) bool {
	if strings.HasPrefix(remote, ":") {
		return false
	}
	colon := strings.Index(remote, ":")
	if colon <= 1 {
		// Windows drive letters ("C:") look like a one-character
		// remote name; on Windows, treat a single-letter prefix as local.
		return colon <= 0 || os.PathSeparator == '\\'
	}
	return false
}

var hexString = regexp.MustCompile(`^[0-9a-f]{8,}$`)

// HasHexString reports whether s contains a long lowercase hex run, the
// shape bisync uses for session-name disambiguation suffixes.
func HasHexString(s string) bool {
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '/' }) {
		if hexString.MatchString(part) {
			return true
		}
	}
	return false
}

// StripHexString removes a trailing "_<hex>" disambiguation suffix.
func StripHexString(s string) string {
	idx := strings.LastIndex(s, "_")
	if idx < 0 {
		return s
	}
	if hexString.MatchString(s[idx+1:]) {
		return s[:idx]
	}
	return s
}

// CanonicalPath produces a name-safe rendering of a path or remote string,
// suitable for embedding in a snapshot filename.
func CanonicalPath(s string) string {
	s = filepath.ToSlash(s)
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_", " ", "_")
	return replacer.Replace(s)
}

// SessionName derives the stable identifier for a (local, remote) pair,
// used to name its snapshot files.
func SessionName(path1, path2 string) string {
	return CanonicalPath(path1) + "-" + CanonicalPath(path2)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CopyFile copies src to dst, preserving neither mode bits beyond the
// umask-restricted default nor timestamps: callers that need those
// preserved for snapshot files pass PermSecure explicitly via os.Chmod.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyDir recursively copies src into dst, creating dst if needed.
func CopyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return CopyFile(path, target)
	})
}

// CaptureOutput runs fn with os.Stdout redirected to a pipe and returns
// whatever it wrote, for tests that capture subcommand output without
// plumbing an io.Writer through every call.
func CaptureOutput(fn func()) []byte {
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		fn()
		return nil
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()

	fn()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

// ToNames extracts and sorts the path component of a slice of entries that
// expose a Path() string, used to diff a result set against a golden set
// independent of ordering.
func ToNames[T interface{ Path() string }](items []T) []string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Path())
	}
	sort.Strings(names)
	return names
}
