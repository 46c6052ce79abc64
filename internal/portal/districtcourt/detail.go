package districtcourt

import (
	"context"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/dates"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/scraper"
	"github.com/PuerkitoBio/goquery"
)

var (
	caseDetails = scraper.LabelTable{
		Selector: "table.case_details_table",
		Pairs:    true,
		Labels: map[string]string{
			"CaseType":           record.CaseTypeName,
			"FilingNumber":       record.FilingNumber,
			"FilingDate":         record.FilingDate,
			"RegistrationNumber": record.RegistrationNumber,
			"RegistrationDate":   record.RegistrationDate,
			"CNRNumber":          record.CNRNumber,
		},
	}

	caseStatus = scraper.LabelTable{
		Selector: "table.case_status_table",
		Labels: map[string]string{
			"FirstHearingDate":    record.FirstHearingDate,
			"NextHearingDate":     record.NextHearingDate,
			"DecisionDate":        record.DecisionDate,
			"CaseStatus":          record.CaseStatus,
			"CaseStage":           record.CaseStatus,
			"StageofCase":         record.CaseStatus,
			"NatureofDisposal":    record.NatureofDisposal,
			"CourtNumberandJudge": record.CourtNumberandJudge,
		},
	}

	firDetails = scraper.LabelTable{
		Selector: "table.FIR_details_table",
		Labels: map[string]string{
			"PoliceStation": "PoliceStation",
			"FIRNumber":     "FIRNumber",
			"Year":          "Year",
		},
	}
)

// OrderRow is an order_table row. Args holds the displayPdf arguments and
// is nil when the row has no document handler.
type OrderRow struct {
	Number string
	Date   string
	Args   []string
}

// ParseDetail fills rec from a case history fragment as served by the
// district services portal and returns the order rows in source order.
// Missing tables leave their fields empty.
func ParseDetail(ctx context.Context, doc *goquery.Document, rec *record.Case) []OrderRow {
	root := doc.Selection

	if root.Find(caseDetails.Selector).Length() == 0 {
		portal.ReportGap(ctx, "case_details_table")
	}
	rec.Apply(caseDetails.Extract(root))
	rec.Apply(caseStatus.Extract(root))

	rec.Petitioners = firstCellLines(root.Find("table.Petitioner_Advocate_table").First())
	rec.Respondents = firstCellLines(root.Find("table.Respondent_Advocate_table").First())

	fir := firDetails.Extract(root)
	rec.FIR = record.FIRDetails{
		PoliceStation: record.Str(fir["PoliceStation"]),
		FIRNumber:     record.Str(fir["FIRNumber"]),
		Year:          record.Str(fir["Year"]),
	}

	acts := root.Find("table.acts_table").First()
	if acts.Length() == 0 {
		portal.ReportGap(ctx, "acts_table")
	}
	rec.Acts = parseActs(acts)

	rec.History = parseHistory(root.Find("table.history_table").First())
	rec.Transfers = parseTransfers(root.Find("table.transfer_table").First())

	return parseOrders(root.Find("table.order_table").First())
}

func firstCellLines(table *goquery.Selection) []string {
	lines := scraper.Lines(table.Find("td").First())
	if lines == nil {
		return []string{}
	}
	return lines
}

// parseActs joins every act and section row. A missing table yields nulls.
func parseActs(table *goquery.Selection) record.ActsAndSection {
	var acts, sections []string
	for _, row := range scraper.Rows(table, 1) {
		cells := scraper.Cells(row)
		if len(cells) != 2 {
			continue
		}
		if cells[0] != "" {
			acts = append(acts, cells[0])
		}
		if cells[1] != "" {
			sections = append(sections, cells[1])
		}
	}
	return record.ActsAndSection{
		Acts:    record.Str(strings.Join(acts, ", ")),
		Section: record.Str(strings.Join(sections, ", ")),
	}
}

func parseHistory(table *goquery.Selection) []record.HistoryEntry {
	history := []record.HistoryEntry{}
	for _, row := range scraper.Rows(table, 0) {
		tds := row.Find("td")
		if tds.Length() < 4 {
			continue
		}
		business := scraper.Text(tds.Eq(1).Find("a").First())
		if business == "" {
			business = scraper.Text(tds.Eq(1))
		}
		history = append(history, record.HistoryEntry{
			Judge:          record.Str(scraper.Text(tds.Eq(0))),
			BusinessOnDate: dates.Reformat(business),
			HearingDate:    dates.Reformat(scraper.Text(tds.Eq(2))),
			Purpose:        scraper.Text(tds.Eq(3)),
			InputType:      record.InputAutomatic,
		})
	}
	return history
}

func parseTransfers(table *goquery.Selection) []record.Transfer {
	transfers := []record.Transfer{}
	for _, row := range scraper.Rows(table, 1) {
		cells := scraper.Cells(row)
		if len(cells) < 4 {
			continue
		}
		transfers = append(transfers, record.Transfer{
			RegistrationNumber: cells[0],
			TransferDate:       dates.Reformat(cells[1]),
			FromCourt:          cells[2],
			ToCourt:            cells[3],
			InputType:          record.InputAutomatic,
		})
	}
	return transfers
}

func parseOrders(table *goquery.Selection) []OrderRow {
	var rows []OrderRow
	for _, row := range scraper.Rows(table, 1) {
		tds := row.Find("td")
		if tds.Length() < 3 {
			continue
		}
		order := OrderRow{
			Number: scraper.Text(tds.Eq(0)),
			Date:   dates.Reformat(scraper.Text(tds.Eq(1))),
		}
		tds.Eq(2).Find("a[onclick]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if args, ok := scraper.JSCallArgs(a.AttrOr("onclick", ""), "displayPdf"); ok {
				order.Args = args
				return false
			}
			return true
		})
		rows = append(rows, order)
	}
	return rows
}
