// Package dates parses the date formats used across Indian court portals and
// reformats them into a single display layout.
package dates

import (
	"regexp"
	"strings"
	"time"
)

// Layout is the canonical output layout (dd-mm-yyyy).
const Layout = "02-01-2006"

var (
	spaceRe   = regexp.MustCompile(`\s+`)
	dayNameRe = regexp.MustCompile(`(?i)(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),?\s*`)
	ordinalRe = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)

	ist = time.FixedZone("IST", 5*3600+1800)
)

// Common date formats in Indian court systems
var layouts = []string{
	"02-01-2006",
	"2-1-2006",
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"02-Jan-2006",
	"02-January-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"2006-01-02",
	"Jan 02, 2006",
	"January 02, 2006",
	"January 2, 2006",
}

// Parse parses a portal date. Day names and ordinal suffixes are tolerated.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := parseLayouts(s); ok {
		return t, true
	}

	s = dayNameRe.ReplaceAllString(s, "")
	s = ordinalRe.ReplaceAllString(s, "$1")
	return parseLayouts(strings.TrimSpace(s))
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Reformat renders s in Layout when it can be parsed and returns the trimmed
// input unchanged otherwise.
func Reformat(s string) string {
	if t, ok := Parse(s); ok {
		return t.Format(Layout)
	}
	return strings.TrimSpace(s)
}

// FromISO converts an RFC 3339 timestamp to an IST calendar date in Layout.
// Values that are not timestamps are returned verbatim.
func FromISO(s string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.000"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(ist).Format(Layout)
		}
	}
	return s
}
