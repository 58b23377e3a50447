// Package since parses the --since and --until time filters.
package since

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

var relative = regexp.MustCompile(`^(\d+)([mhdw])$`)

var units = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

var unitNames = map[string]string{"m": "minute", "h": "hour", "d": "day", "w": "week"}

// Parse turns s into a cutoff time. Relative values (30m, 2h, 1d, 1w) count
// back from now; anything else is handed to dateparse, with UTC assumed when
// the value has no zone.
func Parse(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if m := relative.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "invalid date %q", s)
		}
		return now.Add(-time.Duration(n) * units[m[2]]), nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q: use 1d, 2h, 30m, 1w or a date like 2024-12-01T10:00", s)
	}
	return t, nil
}

// Describe renders a parsed filter for status output.
func Describe(s string, t, now time.Time) string {
	if m := relative.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s))); m != nil {
		unit := unitNames[m[2]]
		if m[1] != "1" {
			unit += "s"
		}
		return fmt.Sprintf("since %s %s ago", m[1], unit)
	}
	return fmt.Sprintf("since %s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.RelTime(t, now, "ago", "from now"))
}

// Window is an optional [From, Until) time range. Zero bounds are open.
type Window struct {
	From  time.Time
	Until time.Time
}

// Contains reports whether t falls inside w. A zero t is always inside.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.Until.IsZero() && !t.Before(w.Until) {
		return false
	}
	return true
}

func (w Window) IsZero() bool {
	return w.From.IsZero() && w.Until.IsZero()
}

// NewWindow parses optional since and until values.
func NewWindow(sinceStr, untilStr string, now time.Time) (Window, error) {
	var w Window
	var err error
	if sinceStr != "" {
		if w.From, err = Parse(sinceStr, now); err != nil {
			return w, errors.Wrap(err, "--since")
		}
	}
	if untilStr != "" {
		if w.Until, err = Parse(untilStr, now); err != nil {
			return w, errors.Wrap(err, "--until")
		}
	}
	if !w.From.IsZero() && !w.Until.IsZero() && !w.From.Before(w.Until) {
		return w, errors.New("--since must be before --until")
	}
	return w, nil
}
