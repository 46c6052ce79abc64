// Package consumer reads case status from the consumer commissions portal,
// which serves JSON.
package consumer

import (
	"context"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/dates"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
)

const (
	ID = "cc"

	caseTypeName = "Consumer Case"
	statusPath   = "services/case/caseFilingService/v2/getCaseStatus"
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

func (a *Adapter) KeyFields() []string { return []string{record.FieldCaseRegNo} }

func (a *Adapter) Validate(q record.CaseQuery) error {
	return portal.Require(q, record.FieldCaseRegNo)
}

type hearing struct {
	DateOfHearing     string `json:"dateOfHearing"`
	DateOfNextHearing string `json:"dateOfNextHearing"`
	ProceedingText    string `json:"proceedingText"`
}

type caseStatus struct {
	FillingReferenceNumber interface{} `json:"fillingReferenceNumber"`
	CaseNumber             interface{} `json:"caseNumber"`
	CaseStage              string      `json:"caseStage"`
	ImpungedOrderDate      string      `json:"impungedOrderDate"`
	Complainant            string      `json:"complainant"`
	Respondent             string      `json:"respondent"`
	CaseHearingDetails     []hearing   `json:"caseHearingDetails"`
}

func (a *Adapter) Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	portal.Enter(ctx, portal.StateQuerySubmitted)
	resp, err := sess.Get(ctx, a.base+statusPath, map[string]string{"caseNumber": q.CaseRegNo}, map[string]string{
		"Accept":  "application/json",
		"Referer": a.base,
	})
	if err != nil {
		return nil, portal.Upstream(err, "case status")
	}

	var body struct {
		Data *caseStatus `json:"data"`
	}
	if err := portal.DecodeJSON(resp, &body, "case status"); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, apperr.NotFound("Invalid case details")
	}
	portal.Enter(ctx, portal.StateCandidateResolved)
	portal.Enter(ctx, portal.StateDetailFetched)

	rec := build(q, body.Data)
	portal.Enter(ctx, portal.StateParsed)
	return &portal.Result{Record: rec}, nil
}

func build(q record.CaseQuery, d *caseStatus) *record.Case {
	rec := record.New(ID)
	rec.CaseQuery = q

	filing := portal.Text(d.FillingReferenceNumber)
	caseNumber := portal.Text(d.CaseNumber)

	rec.CaseNo = record.Str(filing)
	if rec.CaseNo == nil {
		rec.CaseNo = record.Str(q.CaseRegNo)
	}
	rec.CINO = record.Str(caseNumber)
	rec.CaseTypeName = record.Str(caseTypeName)
	rec.FilingNumber = record.Str(filing)
	rec.RegistrationNumber = record.Str(caseNumber)
	rec.DecisionDate = record.Str(dates.FromISO(d.ImpungedOrderDate))
	rec.CaseStatus = record.Str(d.CaseStage)

	rec.Petitioners = nonEmpty(d.Complainant)
	rec.Respondents = nonEmpty(d.Respondent)

	if len(d.CaseHearingDetails) > 0 {
		rec.FirstHearingDate = record.Str(dates.FromISO(d.CaseHearingDetails[0].DateOfHearing))
	}
	for _, h := range d.CaseHearingDetails {
		rec.History = append(rec.History, record.HistoryEntry{
			BusinessOnDate: dates.FromISO(h.DateOfHearing),
			HearingDate:    dates.FromISO(h.DateOfNextHearing),
			Purpose:        d.CaseStage,
			InputType:      record.InputAutomatic,
			LawyerRemark:   record.Str(h.ProceedingText),
		})
	}
	return rec
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
