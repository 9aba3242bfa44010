// Package billing performs the local billing arithmetic for tracked time.
package billing

import (
	"fmt"
	"time"

	"github.com/kyokaz/trackd/internal/timeutil"
)

// Summary holds the billing figures for one span of tracked time.
type Summary struct {
	Hours  float64
	Amount float64
	Rate   float64
}

// Calculate converts a duration into billable hours and amount at the
// given hourly rate.
func Calculate(d time.Duration, rate float64) Summary {
	if d < 0 {
		d = 0
	}
	hours := d.Seconds() / 3600.0
	return Summary{
		Hours:  hours,
		Amount: hours * rate,
		Rate:   rate,
	}
}

// SessionLine renders a one-line completed-session summary,
// e.g. "Session complete: 1h 1m 1s • 1.02h • $25.42 @ $25.00/hr".
func (s Summary) SessionLine(d time.Duration, showElapsed, showBillable bool) string {
	line := "Session complete: " + timeutil.FormatDetailed(d)
	if showElapsed {
		line += fmt.Sprintf(" • %.2fh", s.Hours)
	}
	if showBillable {
		line += fmt.Sprintf(" • $%.2f @ $%.2f/hr", s.Amount, s.Rate)
	}
	return line
}

// MonthLine renders the per-project month summary,
// e.g. "This Month: 12h 30m (8 sessions)\nBillable: $312.50 (12.50h @ $25.00/hr)".
func (s Summary) MonthLine(d time.Duration, entries int, showBillable bool) string {
	line := fmt.Sprintf("This Month: %s (%d sessions)", timeutil.FormatDetailed(d), entries)
	if showBillable {
		line += fmt.Sprintf("\nBillable: $%.2f (%.2fh @ $%.2f/hr)", s.Amount, s.Hours, s.Rate)
	}
	return line
}
