package bisync

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/exhorder/rclonesync/internal/synclog"
)

// timestampLayout is the whole-second part of the on-disk timestamp,
// "<YYYY-MM-DD> <HH:MM:SS>"; the ".<fractional>" suffix that follows it,
// of arbitrary length, is parsed and written separately.
const timestampLayout = "2006-01-02 15:04:05"

// Entry is one file record: a path relative to its side's root, its size in
// bytes, and its modification time at sub-second precision.
type Entry struct {
	Path  string
	Size  int64
	MTime time.Time
}

// Listing is an ordered path -> Entry mapping. Paths is always kept sorted
// ascending; this is an invariant the rest of the engine (and its logs)
// relies on for determinism.
type Listing struct {
	Paths   []string
	entries map[string]Entry
}

// NewListing returns an empty, ready-to-use Listing.
func NewListing() *Listing {
	return &Listing{entries: make(map[string]Entry)}
}

// Get returns the entry at path and whether it is present.
func (l *Listing) Get(path string) (Entry, bool) {
	e, ok := l.entries[path]
	return e, ok
}

// Has reports whether path is present in the listing.
func (l *Listing) Has(path string) bool {
	_, ok := l.entries[path]
	return ok
}

// Len returns the number of entries.
func (l *Listing) Len() int {
	return len(l.Paths)
}

// Set inserts or overwrites the entry for path, keeping Paths sorted.
func (l *Listing) Set(e Entry) {
	if l.entries == nil {
		l.entries = make(map[string]Entry)
	}
	if _, exists := l.entries[e.Path]; !exists {
		idx := sort.SearchStrings(l.Paths, e.Path)
		l.Paths = append(l.Paths, "")
		copy(l.Paths[idx+1:], l.Paths[idx:])
		l.Paths[idx] = e.Path
	}
	l.entries[e.Path] = e
}

// Each calls fn for every entry in path-sorted order.
func (l *Listing) Each(fn func(Entry)) {
	for _, p := range l.Paths {
		fn(l.entries[p])
	}
}

// Equal reports whether two listings hold identical entries: two
// successive no-op runs must produce byte-identical snapshots.
func (l *Listing) Equal(o *Listing) bool {
	if l.Len() != o.Len() {
		return false
	}
	equal := true
	l.Each(func(e Entry) {
		oe, ok := o.Get(e.Path)
		if !ok || oe.Size != e.Size || !oe.MTime.Equal(e.MTime) {
			equal = false
		}
	})
	return equal
}

// ParseListing reads one record per non-blank line, skips and logs
// unmatched lines, and returns a path-sorted Listing. On any read error it
// returns a non-nil error; the caller treats that as critical.
func ParseListing(r io.Reader) (*Listing, error) {
	listing := NewListing()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, ok := parseLine(line)
		if !ok {
			synclog.Errorf("listing: skipping unparsable line %d: %q", lineNo, line)
			continue
		}
		listing.Set(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return listing, nil
}

// parseLine parses "<size> <date> <time>.<fractional> <path>". Leading
// spaces are skipped, since rclone lsl right-aligns the size column.
func parseLine(line string) (Entry, bool) {
	line = strings.TrimLeft(line, " ")
	fields := strings.SplitN(line, " ", 4)
	if len(fields) != 4 {
		return Entry{}, false
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || size < 0 {
		return Entry{}, false
	}
	timeField := fields[2]
	dotIdx := strings.IndexByte(timeField, '.')
	if dotIdx < 0 {
		return Entry{}, false
	}
	whole := timeField[:dotIdx]
	frac := timeField[dotIdx+1:]
	t, err := time.ParseInLocation(timestampLayout, fields[1]+" "+whole, synclog.TZ)
	if err != nil {
		return Entry{}, false
	}
	fracNanos, err := fractionToNanos(frac)
	if err != nil {
		return Entry{}, false
	}
	t = t.Add(time.Duration(fracNanos))
	path := fields[3]
	if path == "" {
		return Entry{}, false
	}
	return Entry{Path: path, Size: size, MTime: t}, true
}

func fractionToNanos(frac string) (int64, error) {
	if frac == "" {
		return 0, nil
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit in fraction %q", frac)
		}
	}
	// Pad or truncate to 9 digits (nanosecond precision).
	for len(frac) < 9 {
		frac += "0"
	}
	frac = frac[:9]
	n, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WriteListing serializes a Listing in on-disk format, one record per
// line, path-sorted, each terminated with a newline.
func WriteListing(w io.Writer, l *Listing) error {
	bw := bufio.NewWriter(w)
	var writeErr error
	l.Each(func(e Entry) {
		if writeErr != nil {
			return
		}
		ts := e.MTime.In(synclog.TZ)
		line := fmt.Sprintf("%d %s.%09d %s\n",
			e.Size,
			ts.Format(timestampLayout),
			ts.Nanosecond(),
			e.Path)
		if _, err := bw.WriteString(line); err != nil {
			writeErr = err
		}
	})
	if writeErr != nil {
		return writeErr
	}
	return bw.Flush()
}
