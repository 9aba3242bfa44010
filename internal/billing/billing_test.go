package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	s := Calculate(3661*time.Second, 25.0)
	assert.InDelta(t, 1.0169, s.Hours, 0.001)
	assert.InDelta(t, 25.42, s.Amount, 0.01)
	assert.Equal(t, 25.0, s.Rate)
}

func TestCalculate_ZeroAndNegative(t *testing.T) {
	assert.Equal(t, 0.0, Calculate(0, 50.0).Amount)
	assert.Equal(t, 0.0, Calculate(-time.Hour, 50.0).Amount)
}

func TestCalculate_ExactHour(t *testing.T) {
	s := Calculate(time.Hour, 80.0)
	assert.Equal(t, 1.0, s.Hours)
	assert.Equal(t, 80.0, s.Amount)
}

func TestSessionLine(t *testing.T) {
	d := 3661 * time.Second
	s := Calculate(d, 25.0)

	full := s.SessionLine(d, true, true)
	assert.Contains(t, full, "1h 1m 1s")
	assert.Contains(t, full, "1.02h")
	assert.Contains(t, full, "$25.42 @ $25.00/hr")

	bare := s.SessionLine(d, false, false)
	assert.Equal(t, "Session complete: 1h 1m 1s", bare)
}

func TestMonthLine(t *testing.T) {
	d := 2*time.Hour + 30*time.Minute
	s := Calculate(d, 40.0)

	line := s.MonthLine(d, 5, true)
	assert.Contains(t, line, "This Month: 2h 30m (5 sessions)")
	assert.Contains(t, line, "Billable: $100.00 (2.50h @ $40.00/hr)")

	noBill := s.MonthLine(d, 5, false)
	assert.NotContains(t, noBill, "Billable")
}
