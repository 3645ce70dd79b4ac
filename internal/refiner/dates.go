package refiner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnknownDate is the sentinel for dates that could not be canonicalized.
// An unrecognized string maps here, never to a guessed date.
const UnknownDate = "unknown"

// ethiopianYearOffset approximates Ethiopian-to-Gregorian year conversion.
// The true offset is 7 or 8 depending on the time of year; newspaper
// metadata does not carry enough information to disambiguate.
const ethiopianYearOffset = 8

// ethiopianMonths maps Tigrinya month names, including the OCR spelling
// variants seen in the corpus, to Ethiopian calendar month numbers.
var ethiopianMonths = map[string]int{
	"መስከረም": 1, "መስክሬም": 1, "ሜስከረም": 1, "መስክሪም": 1,
	"ጥቅምት": 2,
	"ህዳር":  3,
	"ታህሳስ": 4,
	"ጥር": 5, "ጥሪ": 5, "ትሪ": 5,
	"የካቲት": 6,
	"መጋቢት": 7,
	"ሚያዝያ": 8,
	"ግንቦት": 9,
	"ሰኔ":   10,
	"ሓምለ": 11, "ሐምሌ": 11,
	"ነሓሰ": 12, "ነሐሴ": 12,
}

var (
	isoDatePattern       = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	gregorianPattern     = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)
	ethiopianDatePattern = regexp.MustCompile(`(\S+)\s+(\d{1,2})\s*(?:ቀን)?\s*(\d{4})\s*(?:ዓመት)?`)
	yearOnlyPattern      = regexp.MustCompile(`(\d{4})\s*ዓመት`)
)

// NormalizeDate canonicalizes a raw date string to ISO 8601, a bare year
// for year-only mentions, or UnknownDate. It never guesses.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnknownDate
	}

	if m := isoDatePattern.FindStringSubmatch(raw); m != nil {
		if iso, err := isoDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); err == nil {
			return iso
		}
		return UnknownDate
	}

	// Day-first numeric form, dd/mm/yyyy or dd-mm-yyyy.
	if m := gregorianPattern.FindStringSubmatch(raw); m != nil {
		if iso, err := isoDate(atoi(m[3]), atoi(m[2]), atoi(m[1])); err == nil {
			return iso
		}
	}

	// Tigrinya month name with day and Ethiopian year,
	// e.g. "መስከረም 15 ቀን 2015 ዓመት".
	if m := ethiopianDatePattern.FindStringSubmatch(raw); m != nil {
		if month, ok := ethiopianMonths[strings.TrimSpace(m[1])]; ok {
			year := atoi(m[3]) + ethiopianYearOffset
			if iso, err := isoDate(year, month, atoi(m[2])); err == nil {
				return iso
			}
		}
	}

	if m := yearOnlyPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	return UnknownDate
}

// isoDate formats a validated calendar date. time.Date normalizes
// overflow (Feb 30 becomes Mar 2), so a round-trip mismatch means the
// components were not a real date.
func isoDate(year, month, day int) (string, error) {
	if year < 1000 || year > 9999 {
		return "", fmt.Errorf("year %d out of range", year)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return "", fmt.Errorf("%d-%d-%d is not a valid date", year, month, day)
	}
	return t.Format("2006-01-02"), nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
