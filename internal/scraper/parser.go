// Package scraper holds the HTML extraction helpers shared by the portal
// adapters. Extraction is tolerant: missing tables and cells yield empty
// results instead of errors.
package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	versusRe    = regexp.MustCompile(`(?i)\s*\bVs\b\.?\s*`)
	numberingRe = regexp.MustCompile(`^\s*\d+\s*[).]?\s*`)
	labelRe     = regexp.MustCompile(`[:\s]+`)
)

// Parse builds a document from an HTML fragment.
func Parse(fragment string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(fragment))
}

// Collapse trims s and collapses runs of whitespace to one space.
func Collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Text returns the collapsed text of a selection.
func Text(s *goquery.Selection) string {
	return Collapse(s.Text())
}

// NormalizeLabel strips colons and whitespace, so "Case Status :" becomes
// "CaseStatus".
func NormalizeLabel(s string) string {
	return labelRe.ReplaceAllString(strings.TrimSpace(s), "")
}

// CleanParty collapses whitespace and normalizes the separator between the
// opposing parties to " Vs ".
func CleanParty(s string) string {
	return Collapse(versusRe.ReplaceAllString(s, " Vs "))
}

// StripNumbering removes a leading list marker such as "1)" or "2.".
func StripNumbering(s string) string {
	return strings.TrimSpace(numberingRe.ReplaceAllString(s, ""))
}

// Lines returns the non-empty text nodes below s, in document order.
func Lines(s *goquery.Selection) []string {
	var out []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := Collapse(c.Text()); t != "" {
					out = append(out, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(s)
	return out
}

// BreakLines returns the text of s split on <br> elements, without empty
// lines.
func BreakLines(s *goquery.Selection) []string {
	clone := s.Clone()
	clone.Find("br").ReplaceWithHtml("\n")

	var out []string
	for _, line := range strings.Split(clone.Text(), "\n") {
		if line = Collapse(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Cells returns the collapsed text of every td in a row.
func Cells(row *goquery.Selection) []string {
	var out []string
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		out = append(out, Text(td))
	})
	return out
}

// Rows returns the tr elements of a table after skipping the first skip rows.
func Rows(table *goquery.Selection, skip int) []*goquery.Selection {
	var out []*goquery.Selection
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i >= skip {
			out = append(out, tr)
		}
	})
	return out
}

// Headers returns the collapsed th texts of a table.
func Headers(table *goquery.Selection) []string {
	var out []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		out = append(out, Text(th))
	})
	return out
}

// TableAfterHeading returns the first table that follows an h2 whose text
// matches heading, or an empty selection.
func TableAfterHeading(doc *goquery.Document, heading *regexp.Regexp) *goquery.Selection {
	seen := false
	var found *goquery.Selection
	doc.Find("h2, table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "h2" {
			if heading.MatchString(Text(s)) {
				seen = true
			}
			return true
		}
		if seen {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return doc.Selection.Slice(0, 0)
	}
	return found
}

// JSCallArgs extracts the arguments of the first call to fn in an inline
// handler such as onclick="viewHistory('a','b')". Quotes are stripped.
func JSCallArgs(handler, fn string) ([]string, bool) {
	re := regexp.MustCompile(regexp.QuoteMeta(fn) + `\((.*?)\)`)
	m := re.FindStringSubmatch(handler)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[1], ",")
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.Trim(strings.TrimSpace(p), `'"`)
	}
	return args, true
}

// Resolve resolves ref against base. Unparseable input yields base+ref.
func Resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return base + ref
	}
	return b.ResolveReference(r).String()
}
