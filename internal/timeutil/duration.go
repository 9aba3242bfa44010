// Package timeutil handles the duration formats used by the remote
// time-tracking service and the display layer.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseISODuration parses an ISO-8601 duration of the form "PT#H#M#S" into
// a time.Duration, truncated to whole seconds. Absent components count as
// zero. Malformed or empty input yields 0; the remote service reports
// missing durations that way and callers sum these values.
func ParseISODuration(s string) time.Duration {
	if s == "" || s == "PT0S" {
		return 0
	}

	rest, ok := strings.CutPrefix(s, "PT")
	if !ok {
		return 0
	}

	var hours, minutes, seconds float64

	if h, tail, found := cutComponent(rest, 'H'); found {
		hours = h
		rest = tail
	}
	if m, tail, found := cutComponent(rest, 'M'); found {
		minutes = m
		rest = tail
	}
	if sec, _, found := cutComponent(rest, 'S'); found {
		seconds = sec
	}

	total := int64(hours*3600 + minutes*60 + seconds)
	if total < 0 {
		return 0
	}
	return time.Duration(total) * time.Second
}

// cutComponent splits "1H30M45S"-style input at the given designator and
// parses the numeric part before it. Returns found=false if the designator
// is absent or the number does not parse.
func cutComponent(s string, designator byte) (float64, string, bool) {
	idx := strings.IndexByte(s, designator)
	if idx < 0 {
		return 0, s, false
	}
	v, err := strconv.ParseFloat(s[:idx], 64)
	if err != nil {
		return 0, s[idx+1:], false
	}
	return v, s[idx+1:], true
}

// FormatISODuration renders a duration as "PT#H#M#S", the inverse of
// ParseISODuration up to whole-second precision.
func FormatISODuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var sb strings.Builder
	sb.WriteString("PT")
	if h > 0 {
		fmt.Fprintf(&sb, "%dH", h)
	}
	if m > 0 {
		fmt.Fprintf(&sb, "%dM", m)
	}
	if s > 0 || (h == 0 && m == 0) {
		fmt.Fprintf(&sb, "%dS", s)
	}
	return sb.String()
}

// FormatDetailed renders a duration as "1h 1m 1s", omitting zero
// components. Negative durations clamp to zero; output is never empty.
func FormatDetailed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// FormatClock renders a duration as "HH:MM:SS".
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
