package since

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestParse_Relative(t *testing.T) {
	cases := map[string]time.Time{
		"30m":  now.Add(-30 * time.Minute),
		"2h":   now.Add(-2 * time.Hour),
		"1d":   now.Add(-24 * time.Hour),
		"1W":   now.Add(-7 * 24 * time.Hour),
		" 3d ": now.Add(-72 * time.Hour),
	}
	for in, want := range cases {
		got, err := Parse(in, now)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParse_Absolute(t *testing.T) {
	cases := map[string]time.Time{
		"2024-12-01":           time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		"2024-12-01 10:00":     time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC),
		"2024-12-01T10:00:30Z": time.Date(2024, 12, 1, 10, 0, 30, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := Parse(in, now)
		require.NoError(t, err, in)
		require.True(t, want.Equal(got), "%s: got %s", in, got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "sometime soon"} {
		_, err := Parse(in, now)
		require.Error(t, err, in)
	}
}

func TestDescribe(t *testing.T) {
	require.Equal(t, "since 1 day ago", Describe("1d", now.Add(-24*time.Hour), now))
	require.Equal(t, "since 2 hours ago", Describe("2h", now.Add(-2*time.Hour), now))
	require.Contains(t, Describe("2025-03-03", now.Add(-7*24*time.Hour), now), "ago")
}

func TestWindow(t *testing.T) {
	w, err := NewWindow("2d", "1d", now)
	require.NoError(t, err)
	require.True(t, w.Contains(now.Add(-36*time.Hour)))
	require.False(t, w.Contains(now.Add(-72*time.Hour)))
	require.False(t, w.Contains(now.Add(-24*time.Hour)), "until is exclusive")
	require.True(t, w.Contains(time.Time{}))

	_, err = NewWindow("1d", "2d", now)
	require.Error(t, err)

	open, err := NewWindow("", "", now)
	require.NoError(t, err)
	require.True(t, open.IsZero())
}
