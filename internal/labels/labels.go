// Package labels holds the pure display helpers shared by the catalog and
// order history: weekday names, session title parsing and rupiah amounts.
package labels

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"
)

// Weekdays are indexed 0=Monday through 5=Saturday. Sessions never run on Sunday.
var weekdays = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// MaxWeekday is the highest valid session weekday index.
const MaxWeekday = len(weekdays) - 1

// WeekdayName returns the English name for day, or the number itself when
// it is out of range.
func WeekdayName(day int) string {
	if day < 0 || day > MaxWeekday {
		return fmt.Sprint(day)
	}
	return weekdays[day]
}

// WeekdayNames maps every entry of days through WeekdayName.
func WeekdayNames(days []int) []string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, WeekdayName(d))
	}
	return names
}

// ValidWeekday reports whether day is a bookable weekday index.
func ValidWeekday(day int) bool {
	return day >= 0 && day <= MaxWeekday
}

var daySuffix = regexp.MustCompile(`(?i)^(.*?)(?:\s*-\s*(?:mon(?:day)?|tue(?:sday)?|wed(?:nesday)?|thu(?:r(?:sday)?)?|fri(?:day)?|sat(?:urday)?))?$`)

// BaseTitle strips a trailing "- Mon" style weekday suffix so the per-day
// copies of a class group under one title.
func BaseTitle(title string) string {
	title = norm.NFC.String(strings.TrimSpace(title))
	m := daySuffix.FindStringSubmatch(title)
	if m == nil {
		return title
	}
	return strings.TrimSpace(m[1])
}

// BookingTitle is the name snapshot stored for a session booking:
// "Yoga Flow (Monday)". A nil day leaves the title as is.
func BookingTitle(title string, day *int) string {
	base := BaseTitle(title)
	if day == nil {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, WeekdayName(*day))
}

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders amount rounded to whole rupiah with dot grouping,
// e.g. "Rp1.250.000".
func FormatRupiah(amount decimal.Decimal) string {
	n := amount.Round(0).IntPart()
	if n < 0 {
		return "-Rp" + rupiahPrinter.Sprintf("%d", -n)
	}
	return "Rp" + rupiahPrinter.Sprintf("%d", n)
}
