// Package supremecourt reads case status from the Supreme Court website's
// AJAX endpoint, looked up by diary number.
package supremecourt

import (
	"context"
	"regexp"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/dates"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/scraper"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const (
	ID = "sci"

	ajaxPath       = "wp-admin/admin-ajax.php"
	notFoundMarker = "No records found"

	tabListing = "listing_dates"
	tabOrders  = "judgement_orders"
)

var (
	caseTypeRe   = regexp.MustCompile(`([\w()]+)\s*No\.`)
	listedOnRe   = regexp.MustCompile(`(\d{2}-\d{2}-\d{4})\s*\[(.*)\]`)
	statusRe     = regexp.MustCompile(`([A-Z\s]+)\s*\(`)
	benchJoinRe  = regexp.MustCompile(`\s+and\s+`)
	partyIndexRe = regexp.MustCompile(`^\d+\s*`)
	petitionerRe = regexp.MustCompile(`(?i)Petitioner`)
	respondentRe = regexp.MustCompile(`(?i)Respondent`)
)

const (
	labelDiary    = "Diary Number"
	labelCase     = "Case Number"
	labelCNR      = "CNR Number"
	labelFiled    = "Filed On"
	labelListed   = "Present/Last Listed On"
	labelStatus   = "Status/Stage"
	labelCategory = "Category"
	labelCoram    = "Coram"
)

type Adapter struct {
	base string
	log  *logger.Logger
}

func New(baseURL string, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.Nop()
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Adapter{base: baseURL, log: log.With("portal", ID)}
}

func (a *Adapter) ID() string { return ID }

func (a *Adapter) KeyFields() []string {
	return []string{record.FieldDiaryNo, record.FieldDiaryYear}
}

func (a *Adapter) Validate(q record.CaseQuery) error {
	return portal.Require(q, record.FieldDiaryNo, record.FieldDiaryYear)
}

// tab fetches one tab of the case page. An empty tab name is the summary.
func (a *Adapter) tab(ctx context.Context, sess *transport.Session, q record.CaseQuery, name string) (interface{}, error) {
	params := map[string]string{
		"diary_no":        q.DiaryNo,
		"diary_year":      q.DiaryYear,
		"action":          "get_case_details",
		"es_ajax_request": "1",
		"language":        "en",
	}
	if name != "" {
		params["tab_name"] = name
	}
	resp, err := sess.Get(ctx, a.base+ajaxPath, params, map[string]string{
		"Referer":          a.base + "case-status-case-no/",
		"X-Requested-With": "XMLHttpRequest",
	})
	if err != nil {
		return nil, err
	}
	var body struct {
		Data interface{} `json:"data"`
	}
	if err := portal.DecodeJSON(resp, &body, "case details"); err != nil {
		return nil, err
	}
	return body.Data, nil
}

func (a *Adapter) Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	portal.Enter(ctx, portal.StateQuerySubmitted)
	data, err := a.tab(ctx, sess, q, "")
	if err != nil {
		return nil, portal.Upstream(err, "case details")
	}
	summary, _ := data.(string)
	if strings.TrimSpace(summary) == "" || strings.Contains(summary, notFoundMarker) {
		return nil, apperr.NotFound("Invalid Case Details")
	}
	portal.Enter(ctx, portal.StateCandidateResolved)

	listing := a.optionalTab(ctx, sess, q, tabListing)
	orders := a.optionalTab(ctx, sess, q, tabOrders)
	portal.Enter(ctx, portal.StateDetailFetched)

	doc, err := scraper.Parse(summary)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "failed to parse case details"), "case details failed")
	}

	rec := parseSummary(doc, q)
	rec.History = parseListing(listing)
	refs := a.parseOrders(orders)
	portal.Enter(ctx, portal.StateParsed)

	return &portal.Result{Record: rec, Orders: refs}, nil
}

// optionalTab returns a tab's HTML, or "" when it could not be read. A
// missing tab only thins the record.
func (a *Adapter) optionalTab(ctx context.Context, sess *transport.Session, q record.CaseQuery, name string) string {
	data, err := a.tab(ctx, sess, q, name)
	if err != nil {
		a.log.Debug("Tab unavailable", "tab", name, "error", err)
		portal.ReportGap(ctx, name)
		return ""
	}
	html, _ := data.(string)
	return html
}

func parseSummary(doc *goquery.Document, q record.CaseQuery) *record.Case {
	values := labelValues(doc, labelDiary, labelCase, labelCNR, labelFiled, labelListed, labelStatus, labelCategory, labelCoram)

	rec := record.New(ID)
	rec.CaseQuery = q
	rec.CaseNo = record.Str(q.DiaryNo)
	rec.CINO = record.Str(values[labelCNR])
	rec.CNRNumber = record.Str(values[labelCNR])
	rec.CourtCode = record.Str(q.CourtComplexCode)

	if m := caseTypeRe.FindStringSubmatch(values[labelCase]); m != nil {
		rec.CaseTypeName = record.Str(m[1])
	}
	diary := q.DiaryNo + "/" + q.DiaryYear
	rec.FilingNumber = record.Str(diary)
	rec.RegistrationNumber = record.Str(diary)
	rec.FilingDate = record.Str(dates.Reformat(values[labelFiled]))

	if m := statusRe.FindStringSubmatch(values[labelStatus]); m != nil {
		rec.CaseStatus = record.Str(m[1])
	}
	if m := listedOnRe.FindStringSubmatch(values[labelListed]); m != nil {
		rec.CourtNumberandJudge = record.Str(benchJoinRe.ReplaceAllString(m[2], ", "))
	}
	rec.Acts = record.ActsAndSection{Acts: record.Str(values[labelCategory])}

	rec.Petitioners = partyLines(doc, petitionerRe)
	rec.Respondents = partyLines(doc, respondentRe)
	return rec
}

// labelValues reads each label as the td following the td whose text is
// exactly the label.
func labelValues(doc *goquery.Document, labels ...string) map[string]string {
	var cells []string
	doc.Find("td").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, scraper.Text(td))
	})

	out := make(map[string]string, len(labels))
	for _, label := range labels {
		for i, c := range cells {
			if c == label && i+1 < len(cells) {
				out[label] = cells[i+1]
				break
			}
		}
	}
	return out
}

func partyLines(doc *goquery.Document, label *regexp.Regexp) []string {
	out := []string{}
	doc.Find("td").Each(func(_ int, td *goquery.Selection) {
		if !label.MatchString(scraper.Text(td)) {
			return
		}
		for _, line := range scraper.Lines(td.Next()) {
			if line = strings.TrimSpace(partyIndexRe.ReplaceAllString(line, "")); line != "" {
				out = append(out, line)
			}
		}
	})
	return out
}

func parseListing(html string) []record.HistoryEntry {
	history := []record.HistoryEntry{}
	if html == "" {
		return history
	}
	doc, err := scraper.Parse(html)
	if err != nil {
		return history
	}
	for _, row := range scraper.Rows(doc.Selection, 2) {
		cells := scraper.Cells(row)
		if len(cells) < 8 {
			continue
		}
		listed := dates.Reformat(cells[0])
		history = append(history, record.HistoryEntry{
			Judge:          record.Str(cells[5]),
			BusinessOnDate: listed,
			HearingDate:    listed,
			Purpose:        cells[3],
			InputType:      record.InputAutomatic,
			LawyerRemark:   record.Str(cells[7]),
		})
	}
	return history
}

func (a *Adapter) parseOrders(html string) []portal.OrderRef {
	if html == "" {
		return nil
	}
	doc, err := scraper.Parse(html)
	if err != nil {
		return nil
	}
	var refs []portal.OrderRef
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		refs = append(refs, portal.OrderRef{
			Date:   dates.Reformat(scraper.Text(link)),
			Source: archive.Source{URL: scraper.Resolve(a.base, link.AttrOr("href", ""))},
		})
	})
	return refs
}
