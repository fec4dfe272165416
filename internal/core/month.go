package core

import (
	"errors"
	"fmt"
	"time"
)

// Month identifies a calendar month. The zero value is not a valid month.
type Month struct {
	Year  int
	Month time.Month
}

var ErrInvalidMonthKey = errors.New("invalid month key")

// NewMonth builds a Month from a year and a 1-12 month number.
func NewMonth(year, month int) Month {
	return Month{Year: year, Month: time.Month(month)}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "2006-01" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthOf(t), nil
}

func (m Month) Validate() error {
	if m.Year < 1 {
		return errors.New("invalid year")
	}
	if m.Month < time.January || m.Month > time.December {
		return ErrInvalidMonth
	}
	return nil
}

// Key returns the "2006-01" form used for cache keys and storage.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) String() string {
	return m.Key()
}

// FirstDay returns midnight UTC on the first day of the month.
func (m Month) FirstDay() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Range returns the half-open interval [start, end) covering the month.
func (m Month) Range() (time.Time, time.Time) {
	start := m.FirstDay()
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls within the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) Next() Month {
	return MonthOf(m.FirstDay().AddDate(0, 1, 0))
}

func (m Month) Prev() Month {
	return MonthOf(m.FirstDay().AddDate(0, -1, 0))
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) After(o Month) bool {
	return o.Before(m)
}

// MonthsOfYear returns January through December of year.
func MonthsOfYear(year int) []Month {
	out := make([]Month, 0, 12)
	for mo := time.January; mo <= time.December; mo++ {
		out = append(out, Month{Year: year, Month: mo})
	}
	return out
}
