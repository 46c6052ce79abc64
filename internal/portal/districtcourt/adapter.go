// Package districtcourt scrapes the district courts case status service.
package districtcourt

import (
	"context"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/scraper"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const ID = "dc"

const (
	notFoundMarker = "Record not found"
	tokenName      = "app_token"
)

var ajaxHeaders = map[string]string{"X-Requested-With": "XMLHttpRequest"}

type Adapter struct {
	base string
	log  *logger.Logger
}

// New returns the adapter for the portal rooted at baseURL, e.g.
// https://services.ecourts.gov.in/ecourtindia_v6/.
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

func (a *Adapter) KeyFields() []string { return record.CourtKeyFields }

func (a *Adapter) Validate(q record.CaseQuery) error {
	return portal.Require(q,
		record.FieldCaseType,
		record.FieldCaseRegNo,
		record.FieldRegYear,
		record.FieldStateCode,
		record.FieldDistCode,
		record.FieldCourtComplexCode,
	)
}

func (a *Adapter) endpoint(page string) string {
	return a.base + "?p=" + page
}

// candidate holds the identifiers carried by a viewHistory(...) handler.
type candidate struct {
	CaseNo      string
	CINO        string
	CourtCode   string
	StateCode   string
	DistCode    string
	ComplexCode string
}

func candidateFrom(link *goquery.Selection) (candidate, bool) {
	args, ok := scraper.JSCallArgs(link.AttrOr("onclick", ""), "viewHistory")
	if !ok || len(args) < 8 {
		return candidate{}, false
	}
	return candidate{
		CaseNo:      args[0],
		CINO:        args[1],
		CourtCode:   args[2],
		StateCode:   args[5],
		DistCode:    args[6],
		ComplexCode: args[7],
	}, true
}

func (a *Adapter) Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	portal.Enter(ctx, portal.StateQuerySubmitted)
	resp, err := sess.PostForm(ctx, a.endpoint("casestatus/submitCaseNo"), map[string]string{
		"ajax_req":           "true",
		"case_type":          q.CaseType,
		"case_no":            q.CaseRegNo,
		"rgyear":             q.RegYear,
		"state_code":         q.StateCode,
		"dist_code":          q.DistCode,
		"court_complex_code": q.CourtComplexCode,
		"est_code":           q.EstCode,
		"search_case_no":     q.CaseRegNo,
	}, ajaxHeaders)
	if err != nil {
		return nil, portal.Upstream(err, "case number search")
	}

	var search struct {
		CaseData string `json:"case_data"`
		AppToken string `json:"app_token"`
	}
	if err := portal.DecodeJSON(resp, &search, "case number search"); err != nil {
		return nil, err
	}
	if strings.Contains(search.CaseData, notFoundMarker) {
		return nil, apperr.NotFound("Invalid case details")
	}
	sess.SetToken(tokenName, search.AppToken)

	doc, err := scraper.Parse(search.CaseData)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "failed to parse search result"), "case number search failed")
	}
	c, ok := candidateFrom(doc.Find("a.someclass").First())
	if !ok {
		return nil, apperr.Upstream(nil, "Case details not found")
	}
	portal.Enter(ctx, portal.StateCandidateResolved)

	rec := record.New(ID)
	rec.CaseQuery = q
	rec.CaseNo = record.Str(c.CaseNo)
	rec.CINO = record.Str(c.CINO)
	rec.CourtCode = record.Str(c.CourtCode)

	resp, err = sess.PostForm(ctx, a.endpoint("home/viewHistory"), map[string]string{
		"app_token":          sess.Token(tokenName),
		"court_code":         c.CourtCode,
		"state_code":         or(c.StateCode, q.StateCode),
		"dist_code":          or(c.DistCode, q.DistCode),
		"court_complex_code": or(c.ComplexCode, q.CourtComplexCode),
		"case_no":            c.CaseNo,
		"cino":               c.CINO,
		"est_code":           q.EstCode,
		"search_flag":        "CScaseNumber",
		"search_by":          "CScaseNumber",
		"ajax_req":           "true",
	}, ajaxHeaders)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch case details")
	}

	var detail struct {
		DataList string `json:"data_list"`
		AppToken string `json:"app_token"`
	}
	if err := portal.DecodeJSON(resp, &detail, "case history"); err != nil {
		return nil, err
	}
	sess.SetToken(tokenName, detail.AppToken)
	portal.Enter(ctx, portal.StateDetailFetched)

	doc, err = scraper.Parse(detail.DataList)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "failed to parse case history"), "case history failed")
	}
	rows := ParseDetail(ctx, doc, rec)
	portal.Enter(ctx, portal.StateParsed)

	result := &portal.Result{Record: rec}
	for _, row := range rows {
		result.Orders = append(result.Orders, portal.OrderRef{
			Date:   row.Date,
			Source: a.orderSource(ctx, sess, row),
		})
	}
	return result, nil
}

// orderSource asks the portal where an order's PDF lives. Every call
// consumes the current app_token and may rotate it.
func (a *Adapter) orderSource(ctx context.Context, sess *transport.Session, row OrderRow) archive.Source {
	if len(row.Args) < 4 {
		a.log.Debug("Order row without document", "order", row.Number)
		return archive.Source{}
	}
	appFlag := ""
	if len(row.Args) > 4 {
		appFlag = row.Args[4]
	}

	resp, err := sess.PostForm(ctx, a.endpoint("home/display_pdf"), map[string]string{
		"normal_v":   row.Args[0],
		"case_val":   row.Args[1],
		"court_code": row.Args[2],
		"filename":   row.Args[3],
		"appFlag":    appFlag,
		"ajax_req":   "true",
		"app_token":  sess.Token(tokenName),
	}, ajaxHeaders)
	if err != nil {
		a.log.Warn("Order lookup failed", "order", row.Number, "error", err)
		return archive.Source{}
	}

	var body struct {
		Order    string `json:"order"`
		AppToken string `json:"app_token"`
	}
	if err := portal.DecodeJSON(resp, &body, "order lookup"); err != nil {
		a.log.Warn("Order lookup failed", "order", row.Number, "error", err)
		return archive.Source{}
	}
	sess.SetToken(tokenName, body.AppToken)

	path := strings.ReplaceAll(body.Order, `\`, "")
	if path == "" {
		a.log.Debug("Order path missing", "order", row.Number)
		return archive.Source{}
	}
	return archive.Source{URL: a.base + strings.TrimLeft(path, "/")}
}

// SearchParty lists the cases a party-name search returns. Results are not
// looked up further.
func (a *Adapter) SearchParty(ctx context.Context, sess *transport.Session, q record.PartyQuery) ([]record.Candidate, error) {
	for name, value := range map[string]string{
		"petres_name":        q.PartyName,
		"rgyearP":            q.Year,
		"state_code":         q.StateCode,
		"dist_code":          q.DistCode,
		"court_complex_code": q.CourtComplexCode,
	} {
		if strings.TrimSpace(value) == "" {
			return nil, apperr.Invalid(name + " is required")
		}
	}

	resp, err := sess.PostForm(ctx, a.endpoint("casestatus/submitPartyName"), map[string]string{
		"ajax_req":           "true",
		"petres_name":        q.PartyName,
		"rgyearP":            q.Year,
		"case_status":        q.CaseStatus,
		"state_code":         q.StateCode,
		"dist_code":          q.DistCode,
		"court_complex_code": q.CourtComplexCode,
		"est_code":           q.EstCode,
	}, ajaxHeaders)
	if err != nil {
		return nil, portal.Upstream(err, "party name search")
	}

	var body struct {
		PartyData string `json:"party_data"`
	}
	if err := portal.DecodeJSON(resp, &body, "party name search"); err != nil {
		return nil, err
	}
	if strings.Contains(body.PartyData, notFoundMarker) {
		return nil, apperr.NotFound("Invalid case details")
	}

	doc, err := scraper.Parse(body.PartyData)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "failed to parse party results"), "party name search failed")
	}

	results := []record.Candidate{}
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 3 {
			return
		}
		c, ok := candidateFrom(tr.Find("a.someclass").First())
		if !ok {
			return
		}
		results = append(results, record.Candidate{
			CaseNo:           c.CaseNo,
			CINO:             c.CINO,
			CourtCode:        record.Str(c.CourtCode),
			StateCode:        record.Str(c.StateCode),
			DistCode:         record.Str(c.DistCode),
			CourtComplexCode: record.Str(c.ComplexCode),
			EstCode:          record.Str(q.EstCode),
			RegYear:          q.Year,
			CaseNumber:       scraper.Text(tds.Eq(1)),
			PartyDetails:     scraper.CleanParty(strings.Join(scraper.Lines(tds.Eq(2)), " ")),
			CourtType:        record.Str(q.CourtType),
		})
	})
	return results, nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
