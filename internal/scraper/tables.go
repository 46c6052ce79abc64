package scraper

import (
	"github.com/PuerkitoBio/goquery"
)

// LabelTable describes a two-column (or paired) label/value table. Labels
// maps the normalized label text to the canonical field name; rows with a
// label outside the map are ignored.
type LabelTable struct {
	Selector string
	Labels   map[string]string
	// Pairs reads every (label, value) cell pair of a row instead of only
	// the first two cells.
	Pairs bool
}

// Extract reads the table selected from doc.
func (t LabelTable) Extract(doc *goquery.Selection) map[string]string {
	return t.ExtractFrom(doc.Find(t.Selector).First())
}

// ExtractFrom reads an already selected table.
func (t LabelTable) ExtractFrom(table *goquery.Selection) map[string]string {
	out := map[string]string{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := Cells(tr)
		for i := 0; i+1 < len(cells); i += 2 {
			if field, ok := t.Labels[NormalizeLabel(cells[i])]; ok {
				if _, dup := out[field]; !dup {
					out[field] = cells[i+1]
				}
			}
			if !t.Pairs {
				break
			}
		}
	})
	return out
}
