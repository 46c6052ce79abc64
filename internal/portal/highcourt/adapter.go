// Package highcourt scrapes the high courts case status service. The search
// step is CAPTCHA gated.
package highcourt

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/captcha"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/scraper"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/rotisserie/eris"
)

// Variant selects how hearing history is read. The two portal layouts
// otherwise share the whole protocol.
type Variant string

const (
	HC  Variant = "hc"
	HC2 Variant = "hc2"
)

var (
	totRecordsRe = regexp.MustCompile(`"totRecords"\s*:\s*(\d+)`)
	conRe        = regexp.MustCompile(`"con"\s*:\s*\["(.*?)"\]`)
)

type Options struct {
	BaseURL     string
	Solver      captcha.Solver
	MaxAttempts int
	Log         *logger.Logger
}

type Adapter struct {
	variant Variant
	base    string
	origin  string
	solver  captcha.Solver
	max     int
	log     *logger.Logger
}

func New(variant Variant, opts Options) *Adapter {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	base := opts.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	origin := base
	if u, err := url.Parse(base); err == nil {
		origin = u.Scheme + "://" + u.Host
	}
	return &Adapter{
		variant: variant,
		base:    base,
		origin:  origin,
		solver:  opts.Solver,
		max:     opts.MaxAttempts,
		log:     log.With("portal", string(variant)),
	}
}

func (a *Adapter) ID() string { return string(a.variant) }

func (a *Adapter) KeyFields() []string { return record.CourtKeyFields }

func (a *Adapter) Validate(q record.CaseQuery) error {
	return portal.Require(q,
		record.FieldCaseType,
		record.FieldCaseRegNo,
		record.FieldRegYear,
		record.FieldStateCode,
		record.FieldCourtComplexCode,
	)
}

type candidate struct {
	CaseNo string
	CINO   string
}

func (a *Adapter) Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	if a.solver == nil {
		return nil, apperr.New(apperr.KindInternal, "no CAPTCHA solver configured")
	}

	form := map[string]string{
		"court_code":           q.CourtComplexCode,
		"case_type":            q.CaseType,
		"case_no":              q.CaseRegNo,
		"rgyear":               q.RegYear,
		"state_code":           q.StateCode,
		"dist_code":            q.DistCode,
		"caseStatusSearchType": "CScaseNumber",
		"court_complex_code":   q.CourtComplexCode,
		"est_code":             q.EstCode,
		"caseNoType":           "new",
		"search_case_no":       q.CaseRegNo,
	}

	var found candidate
	gate := captcha.Gate{
		Solver:      a.solver,
		MaxAttempts: a.max,
		Log:         a.log,
		OnAttempt:   portal.CaptchaObserver(ctx),
	}

	portal.Enter(ctx, portal.StateQuerySubmitted)
	err := gate.Pass(ctx,
		func(ctx context.Context) ([]byte, error) {
			imageURL := fmt.Sprintf("%ssecurimage/securimage_show.php?%d", a.base, 100000+rand.Intn(900000))
			resp, err := sess.Get(ctx, imageURL, nil, nil)
			if err != nil {
				return nil, portal.Upstream(err, "captcha fetch")
			}
			return resp.Body, nil
		},
		func(ctx context.Context, answer string) (bool, error) {
			form["captcha"] = captcha.AlphaNumeric(answer)
			resp, err := sess.PostForm(ctx, a.base+"cases_qry/index_qry.php?action_code=showRecords", form, nil)
			if err != nil {
				return false, portal.Upstream(err, "case number search")
			}
			c, accepted, err := readSearch(resp.String())
			if err != nil || !accepted {
				return false, err
			}
			found = c
			return true, nil
		},
	)
	if err != nil {
		return nil, err
	}
	portal.Enter(ctx, portal.StateCandidateResolved)

	resp, err := sess.PostForm(ctx, a.base+"cases_qry/o_civil_case_history.php", map[string]string{
		"court_code":         q.CourtComplexCode,
		"state_code":         q.StateCode,
		"court_complex_code": q.CourtComplexCode,
		"case_no":            found.CaseNo,
		"cino":               found.CINO,
	}, map[string]string{
		"Origin":  a.origin,
		"Referer": a.origin + "/",
	})
	if err != nil {
		return nil, portal.Upstream(err, "case history")
	}
	portal.Enter(ctx, portal.StateDetailFetched)

	doc, err := scraper.Parse(resp.String())
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "failed to parse case history"), "case history failed")
	}

	rec := record.New(string(a.variant))
	rec.CaseQuery = q
	rec.CaseNo = record.Str(found.CaseNo)
	rec.CINO = record.Str(found.CINO)
	rec.CourtCode = record.Str(q.CourtComplexCode)

	refs := a.parseDetail(ctx, doc, rec)
	rec.CNRNumber = record.Str(found.CINO)
	portal.Enter(ctx, portal.StateParsed)

	return &portal.Result{Record: rec, Orders: refs}, nil
}

// readSearch interprets the search response. A record count of zero is
// terminal; an invalid CAPTCHA or an unreadable candidate rejects the
// attempt.
func readSearch(body string) (candidate, bool, error) {
	text := body
	if doc, err := scraper.Parse(body); err == nil {
		text = doc.Text()
	}

	if m := totRecordsRe.FindStringSubmatch(text); m != nil && m[1] == "0" {
		return candidate{}, false, apperr.NotFound("Invalid case details")
	}
	if strings.Contains(text, `"Invalid Captcha"`) || strings.Contains(text, `"ERROR_VAL"`) {
		return candidate{}, false, nil
	}

	m := conRe.FindStringSubmatch(text)
	if m == nil {
		return candidate{}, false, nil
	}
	raw, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		return candidate{}, false, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil || len(rows) == 0 {
		return candidate{}, false, nil
	}

	c := candidate{CaseNo: portal.Text(rows[0]["case_no"]), CINO: portal.Text(rows[0]["cino"])}
	if c.CINO == "" && c.CaseNo == "" {
		return candidate{}, false, nil
	}
	return c, true, nil
}
