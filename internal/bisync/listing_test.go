package bisync

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhorder/rclonesync/internal/synclog"
)

func TestParseListingRoundTrip(t *testing.T) {
	l := NewListing()
	l.Set(Entry{Path: "b/file.txt", Size: 20, MTime: time.Date(2024, 3, 2, 10, 0, 0, 500000000, synclog.TZ)})
	l.Set(Entry{Path: "a file with spaces.txt", Size: 10, MTime: time.Date(2024, 3, 1, 9, 30, 0, 123456789, synclog.TZ)})

	var buf strings.Builder
	require.NoError(t, WriteListing(&buf, l))

	reloaded, err := ParseListing(strings.NewReader(buf.String()))
	require.NoError(t, err)

	assert.True(t, l.Equal(reloaded), "round trip should reproduce the same listing")
	assert.Equal(t, []string{"a file with spaces.txt", "b/file.txt"}, reloaded.Paths)
}

func TestParseListingSkipsUnparsableLines(t *testing.T) {
	text := "not a valid line\n10 2024-01-01 00:00:00.000000000 ok/path\n\n"
	l, err := ParseListing(strings.NewReader(text))
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
	e, ok := l.Get("ok/path")
	require.True(t, ok)
	assert.Equal(t, int64(10), e.Size)
}

func TestListingSetKeepsPathsSorted(t *testing.T) {
	l := NewListing()
	for _, p := range []string{"c", "a", "b"} {
		l.Set(Entry{Path: p, Size: 1, MTime: time.Now()})
	}
	assert.Equal(t, []string{"a", "b", "c"}, l.Paths)
}
