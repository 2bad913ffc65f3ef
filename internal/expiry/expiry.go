package expiry

import (
	"fmt"
	"strconv"
	"time"
)

var defaultLoc = time.UTC

// SetDefaultLocation sets the time location used for expiry calculations
// (fallback UTC).
func SetDefaultLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// FromIssue returns the expiry string "YY/MM" for an issue date plus
// validity years. The schema stores expiry as this five-character string,
// not a parsed date.
func FromIssue(issue time.Time, years int) string {
	t := issue.In(defaultLoc)
	y := (t.Year() + years) % 100
	m := int(t.Month())
	return fmt.Sprintf("%02d/%02d", y, m)
}

// Validate checks that s is "YY/MM" with month 01..12.
func Validate(s string) error {
	if len(s) != 5 || s[2] != '/' {
		return fmt.Errorf("expiry must be YY/MM")
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("expiry must be digits: YY/MM")
		}
	}
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	if mm < 1 || mm > 12 {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}

// EndOfMonth parses "YY/MM" into the last instant of that month in loc.
func EndOfMonth(s string, loc *time.Location) (time.Time, error) {
	if err := Validate(s); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = defaultLoc
	}
	yy, _ := strconv.Atoi(s[:2])
	mm, _ := strconv.Atoi(s[3:])
	firstNext := time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond), nil
}

// IsExpired reports whether at is strictly after the end of the expiry month.
func IsExpired(s string, at time.Time, loc *time.Location) (bool, error) {
	end, err := EndOfMonth(s, loc)
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}
