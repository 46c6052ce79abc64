package highcourt

import (
	"context"
	"regexp"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/dates"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

var (
	detailsHeading  = regexp.MustCompile(`(?i)Case Details`)
	statusHeading   = regexp.MustCompile(`(?i)Case Status`)
	categoryHeading = regexp.MustCompile(`(?i)Category`)

	detailLabels = scraper.LabelTable{
		Pairs: true,
		Labels: map[string]string{
			"FilingNumber":       record.FilingNumber,
			"FilingDate":         record.FilingDate,
			"RegistrationNumber": record.RegistrationNumber,
			"RegistrationDate":   record.RegistrationDate,
			"CNRNumber":          record.CNRNumber,
		},
	}

	statusLabels = scraper.LabelTable{
		Labels: map[string]string{
			"FirstHearingDate": record.FirstHearingDate,
			"NextHearingDate":  record.NextHearingDate,
			"DecisionDate":     record.DecisionDate,
			"NatureofDisposal": record.NatureofDisposal,
			"Coram":            record.CourtNumberandJudge,
			"StageofCase":      record.CaseStatus,
		},
	}

	categoryLabels = scraper.LabelTable{
		Labels: map[string]string{
			"Category":    "Category",
			"SubCategory": "SubCategory",
		},
	}

	partyNumberingRe = regexp.MustCompile(`^\d+\s*\)\s*`)
)

func (a *Adapter) parseDetail(ctx context.Context, doc *goquery.Document, rec *record.Case) []portal.OrderRef {
	details := scraper.TableAfterHeading(doc, detailsHeading)
	if details.Length() == 0 {
		portal.ReportGap(ctx, "Case Details")
	}
	rec.Apply(detailLabels.ExtractFrom(details))
	rec.Apply(statusLabels.ExtractFrom(scraper.TableAfterHeading(doc, statusHeading)))

	category := categoryLabels.ExtractFrom(scraper.TableAfterHeading(doc, categoryHeading))
	rec.Category = record.CategoryDetails{
		Category:    record.Str(category["Category"]),
		SubCategory: record.Str(category["SubCategory"]),
	}

	rec.Petitioners = parties(doc.Find("span.Petitioner_Advocate_table"))
	rec.Respondents = parties(doc.Find("span.Respondent_Advocate_table"))
	rec.Subordinate = subordinate(doc.Find("span.Lower_court_table").First())

	switch a.variant {
	case HC2:
		rec.History = scannedHistory(doc)
	default:
		rec.History = history(doc.Find("table.history_table").First())
	}
	rec.Transfers = []record.Transfer{}

	return a.orders(doc.Find("table.order_table").First())
}

// parties keeps the first line of each party span, without its "1)"
// marker. Advocates follow on later lines.
func parties(spans *goquery.Selection) []string {
	out := []string{}
	spans.Each(func(_ int, span *goquery.Selection) {
		lines := scraper.BreakLines(span)
		if len(lines) == 0 {
			return
		}
		out = append(out, partyNumberingRe.ReplaceAllString(lines[0], ""))
	})
	return out
}

func subordinate(span *goquery.Selection) record.SubordinateCourt {
	labels := span.Find("span[style*='width:150px']")
	values := span.Find("label[style*='text-align:left']")

	fields := map[string]string{}
	for i := 0; i < labels.Length() && i < values.Length(); i++ {
		fields[scraper.NormalizeLabel(scraper.Text(labels.Eq(i)))] = scraper.Text(values.Eq(i))
	}
	return record.SubordinateCourt{
		CourtNumberAndName: record.Str(fields["CourtNumberandName"]),
		CaseNumberAndYear:  record.Str(fields["CaseNumberandYear"]),
		DecisionDate:       record.Str(dates.Reformat(fields["DecisionDate"])),
	}
}

// history reads the first history table, keeping rows with exactly the
// five header columns.
func history(table *goquery.Selection) []record.HistoryEntry {
	out := []record.HistoryEntry{}
	for _, row := range scraper.Rows(table, 1) {
		tds := row.Find("td")
		if tds.Length() != 5 {
			continue
		}
		out = append(out, record.HistoryEntry{
			Judge:          record.Str(scraper.Text(tds.Eq(1))),
			BusinessOnDate: dates.Reformat(businessDate(tds.Eq(2))),
			HearingDate:    dates.Reformat(scraper.Text(tds.Eq(3))),
			Purpose:        scraper.Text(tds.Eq(4)),
			InputType:      record.InputAutomatic,
		})
	}
	return out
}

// scannedHistory reads every history table carrying the cause list and
// purpose columns, skipping the order rows some benches interleave.
func scannedHistory(doc *goquery.Document) []record.HistoryEntry {
	out := []record.HistoryEntry{}
	doc.Find("table.history_table").Each(func(_ int, table *goquery.Selection) {
		if !hasHeaders(scraper.Headers(table), "Cause List Type", "Purpose of hearing") {
			return
		}
		for _, row := range scraper.Rows(table, 1) {
			tds := row.Find("td")
			if tds.Length() < 5 {
				continue
			}
			causeList := scraper.Text(tds.Eq(0))
			judge := scraper.Text(tds.Eq(1))
			purpose := scraper.Text(tds.Eq(4))
			if isOrderRow(causeList, judge, purpose) {
				continue
			}
			out = append(out, record.HistoryEntry{
				CauseListType:  record.Str(causeList),
				Judge:          record.Str(judge),
				BusinessOnDate: dates.Reformat(businessDate(tds.Eq(2))),
				HearingDate:    dates.Reformat(scraper.Text(tds.Eq(3))),
				Purpose:        purpose,
				InputType:      record.InputAutomatic,
			})
		}
	})
	return out
}

func isOrderRow(causeList, judge, purpose string) bool {
	if causeList == "Order Number" || purpose == "Order Details" || purpose == "View" {
		return true
	}
	return strings.Contains(judge, "Order on")
}

func hasHeaders(headers []string, want ...string) bool {
	for _, w := range want {
		found := false
		for _, h := range headers {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func businessDate(td *goquery.Selection) string {
	if a := td.Find("a").First(); a.Length() > 0 {
		return scraper.Text(a)
	}
	return scraper.Text(td)
}

// orders lists linked rows of the order table. Rows without a document
// link are not orders.
func (a *Adapter) orders(table *goquery.Selection) []portal.OrderRef {
	var out []portal.OrderRef
	for _, row := range scraper.Rows(table, 1) {
		tds := row.Find("td")
		if tds.Length() < 5 {
			continue
		}
		href, ok := tds.Eq(4).Find("a[href]").First().Attr("href")
		if !ok || href == "" {
			continue
		}
		out = append(out, portal.OrderRef{
			Date:   dates.Reformat(scraper.Text(tds.Eq(3))),
			Source: archive.Source{URL: scraper.Resolve(a.base, href)},
		})
	}
	return out
}
