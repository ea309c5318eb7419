// Package history maintains an employee's month-by-month cost history and the
// aggregates derived from it.
package history

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Scan360AI/rnd-credit-manager/internal/apperr"
)

// MonthKey is a calendar month in "MM/YYYY" form.
type MonthKey struct {
	Year  int
	Month int
}

// ParseMonthKey parses "MM/YYYY". A single-digit month ("1/2024") is accepted.
func ParseMonthKey(s string) (MonthKey, error) {
	mm, yyyy, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return MonthKey{}, apperr.Invalid("month", "expected MM/YYYY")
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return MonthKey{}, apperr.Invalid("month", "month out of range")
	}
	year, err := strconv.Atoi(yyyy)
	if err != nil || len(yyyy) != 4 {
		return MonthKey{}, apperr.Invalid("month", "year must have four digits")
	}
	return MonthKey{Year: year, Month: month}, nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%02d/%04d", k.Month, k.Year)
}

// Next returns the following calendar month.
func (k MonthKey) Next() MonthKey {
	if k.Month == 12 {
		return MonthKey{Year: k.Year + 1, Month: 1}
	}
	return MonthKey{Year: k.Year, Month: k.Month + 1}
}

// Before orders keys chronologically.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// ordinal is a sortable integer for the month.
func (k MonthKey) ordinal() int { return k.Year*12 + k.Month - 1 }

// Canonical re-formats a loosely written key ("1/2024") as "01/2024".
func Canonical(s string) (string, error) {
	k, err := ParseMonthKey(s)
	if err != nil {
		return "", err
	}
	return k.String(), nil
}
