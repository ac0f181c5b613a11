package discovery

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const kmPerMile = 1.60934

const monthNames = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var months = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// datePattern matches one textual date shape and rewrites the match into a
// string the date parser understands.
type datePattern struct {
	re        *regexp.Regexp
	normalize func(m []string) (string, bool)
}

var datePatterns = []datePattern{
	{
		// February 15, 2025 / Feb 15th 2025 at 7:30am
		re: regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})(?:,?\s+(?:at\s+)?(\d{1,2}(?::\d{2})?\s*[ap]\.?m\.?))?`),
		normalize: func(m []string) (string, bool) {
			return monthDayYear(m[1], m[2], m[3], m[4])
		},
	},
	{
		// 15 February 2025
		re: regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthNames + `\.?,?\s+(\d{4})\b`),
		normalize: func(m []string) (string, bool) {
			return monthDayYear(m[2], m[1], m[3], "")
		},
	},
	{
		// 2025-02-15
		re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		normalize: func(m []string) (string, bool) {
			return m[0], true
		},
	},
	{
		// 02/15/2025, month first
		re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`),
		normalize: func(m []string) (string, bool) {
			month, _ := strconv.Atoi(m[1])
			day, _ := strconv.Atoi(m[2])
			if month < 1 || month > 12 || day < 1 || day > 31 {
				return "", false
			}
			return fmt.Sprintf("%02d/%02d/%s", month, day, m[3]), true
		},
	},
}

func monthDayYear(month, day, year, clock string) (string, bool) {
	name, ok := months[strings.ToLower(month)[:3]]
	if !ok {
		return "", false
	}
	s := fmt.Sprintf("%s %s, %s", name, day, year)
	if clock != "" {
		clock = strings.ToLower(strings.NewReplacer(".", "", " ", "").Replace(clock))
		if !strings.Contains(clock, ":") {
			clock = clock[:len(clock)-2] + ":00" + clock[len(clock)-2:]
		}
		if strings.Index(clock, ":") == 1 {
			clock = "0" + clock
		}
		s += " " + clock
	}
	return s, true
}

// ExtractDate returns the first date found in text, or nil when no pattern
// yields a valid date. Times are interpreted as UTC.
func ExtractDate(text string) *time.Time {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		s, ok := p.normalize(m)
		if !ok {
			continue
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}

type distanceToken struct {
	re *regexp.Regexp
	km float64
}

// Checked in order; "half marathon" must precede "marathon".
var distanceTokens = []distanceToken{
	{regexp.MustCompile(`(?i)\b5k\b`), 5.0},
	{regexp.MustCompile(`(?i)\b10k\b`), 10.0},
	{regexp.MustCompile(`(?i)\b15k\b`), 15.0},
	{regexp.MustCompile(`(?i)\b30k\b`), 30.0},
	{regexp.MustCompile(`(?i)\bhalf[\s-]marathon\b`), 21.1},
	{regexp.MustCompile(`(?i)\bmarathon\b`), 42.2},
	{regexp.MustCompile(`(?i)\b10 mile\b`), 16.1},
	{regexp.MustCompile(`(?i)\b5 mile\b`), 8.05},
}

var numericDistance = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(km|kilometers?|miles?)\b`)

// ExtractDistance returns the race distance in kilometers found in text,
// or nil when none is mentioned.
func ExtractDistance(text string) *float64 {
	for _, tok := range distanceTokens {
		if tok.re.MatchString(text) {
			km := tok.km
			return &km
		}
	}

	m := numericDistance.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "mile") {
		value = math.Round(value*kmPerMile*1e5) / 1e5
	}
	return &value
}
