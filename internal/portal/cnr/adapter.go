// Package cnr looks a district court case up by its CNR through the
// district services search page, which can only be driven by a browser.
package cnr

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/browser"
	"github.com/JustJay7/court-case-aggregator/internal/captcha"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/portal/districtcourt"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/scraper"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/rotisserie/eris"
)

const ID = "cnr"

// Selectors of the CNR search form.
type Selectors struct {
	CNRInput     string
	CaptchaImage string
	CaptchaInput string
	Submit       string
	Result       string
}

func (s Selectors) withDefaults() Selectors {
	if s.CNRInput == "" {
		s.CNRInput = "#cino"
	}
	if s.CaptchaImage == "" {
		s.CaptchaImage = "#captcha_image"
	}
	if s.CaptchaInput == "" {
		s.CaptchaInput = "#fcaptcha_code"
	}
	if s.Submit == "" {
		s.Submit = "#searchbtn"
	}
	if s.Result == "" {
		s.Result = "#history_cnr"
	}
	return s
}

const (
	waitAccepted = iota
	waitRejected
	waitMissing
)

type Options struct {
	BaseURL     string
	Pages       browser.Pages
	Solver      captcha.Solver
	MaxAttempts int
	Selectors   Selectors
	// ResultTimeout bounds the wait after each submit.
	ResultTimeout time.Duration
	Log           *logger.Logger
}

type Adapter struct {
	base    string
	opts    Options
	sel     Selectors
	targets []browser.Target
	log     *logger.Logger
}

func New(opts Options) *Adapter {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.ResultTimeout <= 0 {
		opts.ResultTimeout = 20 * time.Second
	}
	base := opts.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	sel := opts.Selectors.withDefaults()
	return &Adapter{
		base: base,
		opts: opts,
		sel:  sel,
		targets: []browser.Target{
			waitAccepted: {Selector: sel.Result},
			waitRejected: {Selector: "span, .modal-body", Pattern: "(?i)invalid captcha"},
			waitMissing:  {Selector: "span, .modal-body", Pattern: "(?i)(does not exist|record not found)"},
		},
		log: opts.Log.With("portal", ID),
	}
}

func (a *Adapter) ID() string { return ID }

func (a *Adapter) KeyFields() []string { return []string{record.FieldCNR} }

func (a *Adapter) Validate(q record.CaseQuery) error {
	return portal.Require(q, record.FieldCNR)
}

func (a *Adapter) Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	if a.opts.Pages == nil {
		return nil, apperr.New(apperr.KindInternal, "CNR lookups need the browser; set BROWSER_ENABLED")
	}
	if a.opts.Solver == nil {
		return nil, apperr.New(apperr.KindInternal, "no CAPTCHA solver configured")
	}

	page, err := a.opts.Pages.NewPage(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "browser unavailable")
	}
	defer func() {
		if err := page.Close(); err != nil {
			a.log.Debug("Page close failed", "error", err)
		}
	}()

	portal.Enter(ctx, portal.StateQuerySubmitted)
	gate := captcha.Gate{
		Solver:      a.opts.Solver,
		MaxAttempts: a.opts.MaxAttempts,
		Log:         a.log,
		OnAttempt:   portal.CaptchaObserver(ctx),
	}
	fetch := func(ctx context.Context) ([]byte, error) {
		if err := page.Navigate(ctx, a.base+"?p=home/index"); err != nil {
			return nil, portal.Upstream(err, "search page")
		}
		if err := page.Input(ctx, a.sel.CNRInput, q.CNR); err != nil {
			return nil, portal.Upstream(err, "search page")
		}
		image, err := page.Screenshot(ctx, a.sel.CaptchaImage)
		if err != nil {
			return nil, portal.Upstream(err, "captcha image")
		}
		return image, nil
	}
	submit := func(ctx context.Context, answer string) (bool, error) {
		if err := page.Input(ctx, a.sel.CaptchaInput, captcha.AlphaNumeric(answer)); err != nil {
			return false, portal.Upstream(err, "case search")
		}
		if err := page.Click(ctx, a.sel.Submit); err != nil {
			return false, portal.Upstream(err, "case search")
		}

		waitCtx, cancel := browser.WaitTimeout(ctx, a.opts.ResultTimeout)
		defer cancel()
		switch idx, err := page.Wait(waitCtx, a.targets...); {
		case err != nil:
			return false, portal.Upstream(err, "case search")
		case idx == waitMissing:
			return false, apperr.NotFound("Record not found")
		case idx == waitRejected:
			return false, nil
		}
		return true, nil
	}
	if err := gate.Pass(ctx, fetch, submit); err != nil {
		return nil, err
	}
	portal.Enter(ctx, portal.StateCandidateResolved)

	html, err := page.HTML(ctx, a.sel.Result)
	if err != nil {
		return nil, portal.Upstream(err, "case history")
	}
	cookies, err := page.Cookies(ctx)
	if err != nil {
		a.log.Debug("Browser cookies unavailable", "error", err)
	} else if err := sess.SetCookies(a.base, cookies); err != nil {
		a.log.Debug("Browser cookies not copied", "error", err)
	}
	portal.Enter(ctx, portal.StateDetailFetched)

	doc, err := scraper.Parse(html)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "failed to parse case history"), "case history failed")
	}

	rec := record.New(ID)
	rec.CaseQuery = q
	rec.CINO = record.Str(q.CNR)
	rows := districtcourt.ParseDetail(ctx, doc, rec)
	if rec.CNRNumber == nil {
		rec.CNRNumber = record.Str(q.CNR)
	}
	rec.CaseNo = rec.RegistrationNumber

	result := &portal.Result{Record: rec, ArchiveKey: q.CNR}
	for _, row := range rows {
		result.Orders = append(result.Orders, portal.OrderRef{
			Date:   row.Date,
			Source: a.orderSource(row.Args),
		})
	}
	portal.Enter(ctx, portal.StateParsed)
	return result, nil
}

// orderSource finds the filename parameter among the displayPdf arguments.
// Documents are published under reports/.
func (a *Adapter) orderSource(args []string) archive.Source {
	for _, arg := range args {
		if !strings.Contains(arg, "filename=") {
			continue
		}
		values, err := url.ParseQuery(arg)
		if err != nil {
			continue
		}
		if name := strings.TrimSpace(values.Get("filename")); name != "" {
			return archive.Source{URL: a.base + "reports/" + strings.TrimPrefix(name, "/")}
		}
	}
	return archive.Source{}
}
