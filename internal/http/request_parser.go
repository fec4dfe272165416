// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating query parameters.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetflow/internal/core"
)

// ParseMonthParams extracts the month a request asks about. It accepts
// month=YYYY-MM, or year and month as separate numbers, and defaults each
// missing part to the current month.
func ParseMonthParams(query url.Values, now time.Time) (core.Month, error) {
	current := core.MonthOf(now)
	month := strings.TrimSpace(query.Get("month"))

	if strings.Contains(month, "-") {
		m, err := core.ParseMonth(month)
		if err != nil {
			return core.Month{}, fmt.Errorf("invalid month %q: want YYYY-MM", month)
		}
		return m, nil
	}

	year, err := ParseYearParam(query, now)
	if err != nil {
		return core.Month{}, err
	}
	m := core.NewMonth(year, int(current.Month))
	if month != "" {
		n, err := strconv.Atoi(month)
		if err != nil {
			return core.Month{}, fmt.Errorf("invalid month %q: must be a number", month)
		}
		m = core.NewMonth(year, n)
	}
	if err := m.Validate(); err != nil {
		return core.Month{}, err
	}
	return m, nil
}

// ParseYearParam extracts year, defaulting to the current year.
func ParseYearParam(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q: must be a number", v)
	}
	if y < 1 || y > 9999 {
		return 0, fmt.Errorf("invalid year %d: must be between 1 and 9999", y)
	}
	return y, nil
}

// ParseCategoryParam returns the sanitized category parameter.
func ParseCategoryParam(query url.Values) string {
	return sanitizeInput(query.Get("category"))
}

// ParseBoolParam reports whether a flag parameter is set to a true value.
func ParseBoolParam(query url.Values, key string) bool {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
