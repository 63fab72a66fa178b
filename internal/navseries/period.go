package navseries

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar offset used for lookback windows.
type Period struct {
	Years  int
	Months int
	Days   int
}

// ParsePeriod parses strings such as "1y", "6m", "90d" or "1y6m".
func ParsePeriod(s string) (Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Period{}, fmt.Errorf("empty period")
	}

	var p Period
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'y' || r == 'm' || r == 'd':
			if num == "" {
				return Period{}, fmt.Errorf("invalid period %q: missing count before %q", s, r)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
			}
			switch r {
			case 'y':
				p.Years += n
			case 'm':
				p.Months += n
			case 'd':
				p.Days += n
			}
			num = ""
		default:
			return Period{}, fmt.Errorf("invalid period %q: unexpected %q", s, r)
		}
	}
	if num != "" {
		return Period{}, fmt.Errorf("invalid period %q: missing unit after %s", s, num)
	}
	if p.IsZero() {
		return Period{}, fmt.Errorf("invalid period %q: zero length", s)
	}
	return p, nil
}

// IsZero reports whether the period has no length
func (p Period) IsZero() bool { return p.Years == 0 && p.Months == 0 && p.Days == 0 }

// Before returns t moved back by the period
func (p Period) Before(t time.Time) time.Time { return t.AddDate(-p.Years, -p.Months, -p.Days) }

// ApproxYears returns the period length in years (365-day years, 12-month years)
func (p Period) ApproxYears() float64 {
	return float64(p.Years) + float64(p.Months)/12 + float64(p.Days)/365
}

// String formats the period in the ParsePeriod grammar
func (p Period) String() string {
	var b strings.Builder
	if p.Years != 0 {
		fmt.Fprintf(&b, "%dy", p.Years)
	}
	if p.Months != 0 {
		fmt.Fprintf(&b, "%dm", p.Months)
	}
	if p.Days != 0 {
		fmt.Fprintf(&b, "%dd", p.Days)
	}
	return b.String()
}
