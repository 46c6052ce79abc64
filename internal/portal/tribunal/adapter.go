// Package tribunal reads case history from the company law tribunal
// e-filing portal, which serves JSON.
package tribunal

import (
	"context"
	"net/http"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/dates"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
)

const (
	ID = "nclt"

	unknownBench = "Unknown Bench"

	// The portal pins a session to one backend through this cookie.
	serverCookie = "SERVERID"
	serverID     = "efiling2-248"
)

var jsonHeaders = map[string]string{
	"Accept": "application/json, text/javascript, */*; q=0.01",
}

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

func (a *Adapter) KeyFields() []string { return record.CourtKeyFields }

func (a *Adapter) Validate(q record.CaseQuery) error {
	return portal.Require(q,
		record.FieldCaseType,
		record.FieldCaseRegNo,
		record.FieldRegYear,
		record.FieldCourtComplexCode,
	)
}

type object = map[string]interface{}

func (a *Adapter) Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	if err := sess.SetCookies(a.base, []*http.Cookie{{Name: serverCookie, Value: serverID, Path: "/"}}); err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "invalid tribunal base URL")
	}

	portal.Enter(ctx, portal.StateQuerySubmitted)
	resp, err := sess.PostJSON(ctx, a.base+"caseHistoryoptional.drt", map[string]string{
		"wayofselection":       "casenumber",
		"i_bench_id":           "0",
		"filing_no":            "",
		"i_bench_id_case_no":   q.CourtComplexCode,
		"i_case_type_caseno":   q.CaseType,
		"i_case_year_caseno":   q.RegYear,
		"case_no":              q.CaseRegNo,
		"i_party_search":       "E",
		"i_bench_id_party":     "0",
		"party_type_party":     "0",
		"party_name_party":     "",
		"i_case_year_party":    "0",
		"status_party":         "0",
		"i_adv_search":         "E",
		"i_bench_id_lawyer":    "0",
		"party_lawer_name":     "",
		"i_case_year_lawyer":   "0",
		"bar_council_advocate": "",
	}, jsonHeaders)
	if err != nil {
		return nil, portal.Upstream(err, "case search")
	}

	var search struct {
		MainPanel []object `json:"mainpanellist"`
	}
	if err := portal.DecodeJSON(resp, &search, "case search"); err != nil {
		return nil, err
	}
	if len(search.MainPanel) == 0 {
		return nil, apperr.NotFound("Invalid case details")
	}
	main := search.MainPanel[0]
	filingNo := portal.Text(main["filing_no"])
	if filingNo == "" {
		return nil, apperr.Upstream(nil, "case search returned no filing number")
	}
	portal.Enter(ctx, portal.StateCandidateResolved)

	resp, err = sess.Get(ctx, a.base+"caseHistoryalldetails.drt", map[string]string{
		"filing_no": filingNo,
		"flagIA":    "false",
	}, jsonHeaders)
	if err != nil {
		return nil, portal.Upstream(err, "case history")
	}

	var detail struct {
		Registered  []object `json:"isregistered"`
		FinalStatus []object `json:"allfinalstatuslist"`
		Parties     []object `json:"partydetailslist"`
		Proceedings []object `json:"allproceedingdtls"`
	}
	if err := portal.DecodeJSON(resp, &detail, "case history"); err != nil {
		return nil, err
	}
	portal.Enter(ctx, portal.StateDetailFetched)

	cino := portal.Text(main["case_no"])

	rec := record.New(ID)
	rec.CaseQuery = q
	rec.CaseNo = record.Str(q.CaseRegNo)
	rec.CINO = record.Str(cino)
	rec.CNRNumber = record.Str(cino)
	rec.CaseTypeName = record.Str(portal.Text(main["case_type_desc_cis"]))
	rec.FilingNumber = record.Str(filingNo)
	rec.RegistrationNumber = record.Str(filingNo)
	rec.CaseStatus = record.Str(field(detail.Registered, 0, "status"))
	rec.FirstHearingDate = record.Str(dates.Reformat(field(detail.FinalStatus, 0, "listing_date")))
	rec.Petitioners = nonEmpty(field(detail.Parties, 0, "party_name"))
	rec.Respondents = nonEmpty(field(detail.Parties, 1, "party_name"))

	result := &portal.Result{Record: rec, ArchiveKey: filingNo}
	for _, p := range detail.Proceedings {
		judge := portal.Text(p["bench_location_name"])
		if judge == "" {
			judge = unknownBench
		}
		rec.History = append(rec.History, record.HistoryEntry{
			Judge:          record.Str(judge),
			BusinessOnDate: dates.Reformat(portal.Text(p["listing_date"])),
			HearingDate:    dates.Reformat(portal.Text(p["next_list_date"])),
			Purpose:        portal.Text(p["purpose"]),
			InputType:      record.InputAutomatic,
		})

		var src archive.Source
		if enc := portal.Text(p["encPath"]); enc != "" {
			src.URL = a.base + "ordersview.drt?path=" + enc
		}
		result.Orders = append(result.Orders, portal.OrderRef{
			Date:   dates.Reformat(portal.Text(p["order_upload_date"])),
			Source: src,
		})
	}
	portal.Enter(ctx, portal.StateParsed)
	return result, nil
}

// field reads key from the i-th object of list, or "" when absent.
func field(list []object, i int, key string) string {
	if i >= len(list) {
		return ""
	}
	return portal.Text(list[i][key])
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
