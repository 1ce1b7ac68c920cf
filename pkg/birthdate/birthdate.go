// Package birthdate turns partially known dates of birth into a stored date
// plus an estimated flag, and derives ages back from them.
//
// Lost precision is encoded by sentinel values: an unknown month stores
// July 1 and an unknown day stores the 15th, both with Estimated set.
package birthdate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unknown is the literal forms send for a date part nobody knows.
const Unknown = "Unknown"

const (
	unknownMonth = time.July
	unknownDay   = 1
	midMonthDay  = 15
)

var ErrInvalidInput = errors.New("invalid birthdate input")

type Birthdate struct {
	Date      time.Time `json:"date"`
	Estimated bool      `json:"estimated"`
}

// Normalize resolves a (year, month, day) triple where month may be a number,
// a month name, an abbreviation, "Unknown" or blank, and day may be blank,
// "Unknown" or zero.
func Normalize(year, month, day string) (Birthdate, error) {
	year = strings.TrimSpace(year)
	if year == "" {
		return Birthdate{}, fmt.Errorf("no year passed for estimated birthdate: %w", ErrInvalidInput)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Birthdate{}, fmt.Errorf("year %q is not a number: %w", year, ErrInvalidInput)
	}

	m, ok := ParseMonth(month)
	if !ok {
		return Birthdate{Date: date(y, unknownMonth, unknownDay), Estimated: true}, nil
	}

	if dayUnknown(day) {
		return Birthdate{Date: date(y, m, midMonthDay), Estimated: true}, nil
	}

	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return Birthdate{}, fmt.Errorf("day %q is not a number: %w", day, ErrInvalidInput)
	}
	exact := date(y, m, d)
	if exact.Day() != d || exact.Month() != m {
		return Birthdate{}, fmt.Errorf("%04d-%02d-%02d is not a calendar date: %w", y, m, d, ErrInvalidInput)
	}
	return Birthdate{Date: exact}, nil
}

// FromAge is the policy when only an approximate age is known.
func FromAge(age int, ref time.Time) Birthdate {
	return Birthdate{Date: date(ref.Year()-age, unknownMonth, unknownDay), Estimated: true}
}

// ParseMonth accepts 1-12, "March" or "Mar" in any case. "Unknown", blank
// and anything else is reported as unresolved.
func ParseMonth(month string) (time.Month, bool) {
	month = strings.TrimSpace(month)
	if month == "" || month == Unknown {
		return 0, false
	}
	if n, err := strconv.Atoi(month); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n), true
		}
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(month, name) || strings.EqualFold(month, name[:3]) {
			return m, true
		}
	}
	return 0, false
}

func dayUnknown(day string) bool {
	day = strings.TrimSpace(day)
	if day == "" || day == Unknown {
		return true
	}
	n, err := strconv.Atoi(day)
	return err == nil && n == 0
}

// Age counts full calendar years at ref. A birthdate estimated to July 1 for
// a record created in ref's year is rounded up before July, so someone who
// says they are 25 in March stays 25.
func (b Birthdate) Age(ref, created time.Time) int {
	if b.Date.IsZero() {
		return 0
	}
	age := ref.Year() - b.Date.Year()
	if ref.Month() < b.Date.Month() || (ref.Month() == b.Date.Month() && ref.Day() < b.Date.Day()) {
		age--
	}
	if b.Estimated && b.isUnknownMonth() && ref.Month() < unknownMonth && created.Year() == ref.Year() {
		age++
	}
	return age
}

// AgeInMonths does not adjust for the day of month.
func (b Birthdate) AgeInMonths(ref time.Time) int {
	years := ref.Year() - b.Date.Year()
	months := int(ref.Month()) - int(b.Date.Month())
	return years*12 + months
}

func (b Birthdate) Format() string {
	if b.Estimated {
		if b.isUnknownMonth() {
			return b.Date.Format("??/???/2006")
		}
		if b.Date.Day() == midMonthDay {
			return b.Date.Format("??/Jan/2006")
		}
	}
	return b.Date.Format("02/Jan/2006")
}

// Parts is the inverse of Normalize as peers expect it: an estimate on a
// sentinel date reports an unknown day, and July 1 an unknown month too.
// Other estimated dates keep their day; see Sentinel.
func (b Birthdate) Parts() (year, month, day string) {
	year = strconv.Itoa(b.Date.Year())
	month = strconv.Itoa(int(b.Date.Month()))
	day = strconv.Itoa(b.Date.Day())
	if b.Sentinel() {
		day = Unknown
		if b.isUnknownMonth() {
			month = Unknown
		}
	}
	return year, month, day
}

// Sentinel reports whether the estimate is encoded in the date itself, so
// Parts alone carries it. An estimate forced onto any other day is not.
func (b Birthdate) Sentinel() bool {
	return b.Estimated && (b.isUnknownMonth() || b.Date.Day() == midMonthDay)
}

func (b Birthdate) isUnknownMonth() bool {
	return b.Date.Month() == unknownMonth && b.Date.Day() == unknownDay
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
