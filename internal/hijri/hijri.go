// Package hijri converts Gregorian dates to the tabular (arithmetic) Islamic
// calendar and formats the results for calendar cells and headers.
//
// The tabular calendar uses a fixed 30-year cycle with eleven leap years
// (2, 5, 7, 10, 13, 16, 18, 21, 24, 26, 29) and the civil epoch of
// 16 July 622 (Julian). It does not follow moon sighting, so dates may
// differ by a day or two from locally announced months.
package hijri

import (
	"strconv"
	"time"

	"hilalcal/internal/model"
)

// civilEpochJDN is the Julian Day Number of 1 Muharram 1 AH.
const civilEpochJDN = 1948440

// Style selects between abbreviated and full month names.
type Style int

const (
	Short Style = iota
	Long
)

var shortMonths = [12]string{
	"Muh.",
	"Saf.",
	"Rab. I",
	"Rab. II",
	"Jum. I",
	"Jum. II",
	"Raj.",
	"Sha.",
	"Ram.",
	"Shaw.",
	"Dhu’l-Q.",
	"Dhu’l-H.",
}

var longMonths = [12]string{
	"Muharram",
	"Safar",
	"Rabi al-Awwal",
	"Rabi al-Thani",
	"Jumada al-Awwal",
	"Jumada al-Thani",
	"Rajab",
	"Shaʿban",
	"Ramadan",
	"Shawwal",
	"Dhu al-Qaʿdah",
	"Dhu al-Hijjah",
}

// ToLunarDate returns the Hijri date for the calendar day of t in t's own
// location. The time of day is ignored.
func ToLunarDate(t time.Time) model.LunarDate {
	y, m, d := t.Date()
	return fromJDN(julianDayNumber(y, int(m), d))
}

// julianDayNumber converts a proleptic Gregorian date to its Julian Day
// Number using integer arithmetic only.
func julianDayNumber(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// fromJDN applies the tabular Islamic calendar to a Julian Day Number.
// Valid for any JDN on or after the epoch.
func fromJDN(jdn int) model.LunarDate {
	l := jdn - civilEpochJDN + 10632
	n := (l - 1) / 10631
	l = l - 10631*n + 354
	j := ((10985-l)/5316)*((50*l)/17719) + (l/5670)*((43*l)/15238)
	l = l - ((30-j)/15)*((17719*j)/50) - (j/16)*((15238*j)/43) + 29
	month := (24 * l) / 709
	day := l - (709*month)/24
	year := 30*n + j - 30

	return model.LunarDate{
		Day:        day,
		MonthIndex: month - 1,
		Year:       year,
	}
}

// MonthName returns the month name for a zero-based index, or "" when the
// index is out of range.
func MonthName(index int, style Style) string {
	if index < 0 || index >= len(shortMonths) {
		return ""
	}
	if style == Long {
		return longMonths[index]
	}
	return shortMonths[index]
}

// CellLabel is the compact overlay shown in a month-grid cell: the day
// number, or the abbreviated month name on the first day of a month.
func CellLabel(ld model.LunarDate) string {
	if ld.Day == 1 {
		if name := MonthName(ld.MonthIndex, Short); name != "" {
			return name
		}
	}
	return strconv.Itoa(ld.Day)
}

// Format renders a full date such as "1 Ramadan 1446". An unknown month
// leaves its slot blank.
func Format(ld model.LunarDate) string {
	return strconv.Itoa(ld.Day) + " " + MonthName(ld.MonthIndex, Long) + " " + strconv.Itoa(ld.Year)
}

// MonthLength returns the number of days (29 or 30) in the given Hijri
// month under the tabular scheme.
func MonthLength(year, monthIndex int) int {
	if monthIndex%2 == 0 {
		return 30
	}
	if monthIndex == 11 && IsLeapYear(year) {
		return 30
	}
	return 29
}

// IsLeapYear reports whether the Hijri year has 355 days.
func IsLeapYear(year int) bool {
	return (14+11*year)%30 < 11
}
