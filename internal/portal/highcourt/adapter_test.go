package highcourt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/captcha"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acceptedSearch = `{"con":["[{\"case_no\":\"201900012342023\",\"cino\":\"HCBM010012342023\"}]"],"totRecords":1,"Error":""}`

const historyPage = `
<h2>Case Details</h2>
<table>
  <tr><td>Filing Number</td><td>WP/1234/2023</td><td>Filing Date</td><td>03-02-2023</td></tr>
  <tr><td>Registration Number</td><td>1234/2023</td><td>Registration Date</td><td>04-02-2023</td></tr>
  <tr><td>CNR Number</td><td>HCBM010012342023</td></tr>
</table>
<h2>Case Status</h2>
<table>
  <tr><td>First Hearing Date</td><td>1st March 2023</td></tr>
  <tr><td>Coram</td><td>HON'BLE JUSTICE A</td></tr>
  <tr><td>Stage of Case</td><td>ADMISSION</td></tr>
  <tr><td>Bench Type</td><td>Division Bench</td></tr>
</table>
<span class="Petitioner_Advocate_table">1) ACME LTD<br>Advocate - X</span>
<span class="Respondent_Advocate_table">1) UNION OF INDIA<br>Advocate - Y</span>
<h2>Category Details</h2>
<table>
  <tr><td>Category</td><td>Writ</td></tr>
  <tr><td>Sub Category</td><td>Service</td></tr>
</table>
<span class="Lower_court_table">
  <span style="width:150px;display:inline-block;">Court Number and Name :</span><label style="text-align:left">Tribunal</label>
  <span style="width:150px;display:inline-block;">Case Number and Year :</span><label style="text-align:left">OA/1/2022</label>
  <span style="width:150px;display:inline-block;">Decision Date :</span><label style="text-align:left">05-05-2022</label>
</span>
<table class="history_table">
  <tr><th>Cause List Type</th><th>Judge</th><th>Business On Date</th><th>Hearing Date</th><th>Purpose of hearing</th></tr>
  <tr><td>Daily</td><td>JUSTICE A</td><td><a href="#">01-03-2023</a></td><td>15-03-2023</td><td>ADMISSION</td></tr>
  <tr><td>Order Number</td><td>Order on 15-03-2023</td><td>1</td><td>15-03-2023</td><td>View</td></tr>
</table>
<table class="history_table">
  <tr><th>Cause List Type</th><th>Judge</th><th>Business On Date</th><th>Hearing Date</th><th>Purpose of hearing</th></tr>
  <tr><td>Weekly</td><td>JUSTICE B</td><td>15-03-2023</td><td>20-04-2023</td><td>HEARING</td></tr>
</table>
<table class="order_table">
  <tr><th>Order Number</th><th>Bench</th><th>Judge</th><th>Order Date</th><th>Order Details</th></tr>
  <tr><td>1</td><td>DB</td><td>A</td><td>15-03-2023</td><td><a href="cases/display_pdf.php?filename=x&amp;caseno=1">View</a></td></tr>
  <tr><td>2</td><td>DB</td><td>A</td><td>20-04-2023</td><td>Not available</td></tr>
</table>`

type fakeHC struct {
	search      func(attempt int) string
	searches    int32
	histories   int32
	lastCaptcha atomic.Value
}

func (f *fakeHC) server(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "securimage/securimage_show.php"):
			http.SetCookie(w, &http.Cookie{Name: "HCSERVICES_SESSID", Value: "s1", Path: "/"})
			_, _ = w.Write([]byte("png"))
		case strings.HasSuffix(r.URL.Path, "cases_qry/index_qry.php"):
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "showRecords", r.URL.Query().Get("action_code"))
			assert.Equal(t, "1234", r.PostForm.Get("case_no"))
			f.lastCaptcha.Store(r.PostForm.Get("captcha"))
			n := atomic.AddInt32(&f.searches, 1)
			_, _ = w.Write([]byte(f.search(int(n))))
		case strings.HasSuffix(r.URL.Path, "cases_qry/o_civil_case_history.php"):
			require.NoError(t, r.ParseForm())
			atomic.AddInt32(&f.histories, 1)
			c, err := r.Cookie("HCSERVICES_SESSID")
			require.NoError(t, err)
			assert.Equal(t, "s1", c.Value)
			assert.NotEmpty(t, r.Header.Get("Origin"))
			assert.Equal(t, "HCBM010012342023", r.PostForm.Get("cino"))
			_, _ = w.Write([]byte(historyPage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func openSession(t *testing.T) *transport.Session {
	sess, err := transport.NewOpener(transport.Options{Timeout: 5 * time.Second}, logger.Nop()).Open()
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func testQuery() record.CaseQuery {
	return record.CaseQuery{
		CaseType:         "16",
		CaseRegNo:        "1234",
		RegYear:          "2023",
		StateCode:        "1",
		DistCode:         "1",
		CourtComplexCode: "1",
	}
}

func fixedSolver(answer string) captcha.Solver {
	return captcha.SolverFunc(func(context.Context, []byte) (string, error) { return answer, nil })
}

func TestScrapeRetriesInvalidCaptcha(t *testing.T) {
	f := &fakeHC{search: func(attempt int) string {
		if attempt == 1 {
			return `{"errormsg":"Invalid Captcha"}`
		}
		return acceptedSearch
	}}
	srv := f.server(t)
	defer srv.Close()

	var attempts []string
	ctx := portal.WithCaptchaObserver(context.Background(), func(r string) { attempts = append(attempts, r) })

	a := New(HC, Options{BaseURL: srv.URL + "/hcservices", Solver: fixedSolver(" ab-12 ")})
	res, err := a.Scrape(ctx, openSession(t), testQuery())
	require.NoError(t, err)

	assert.Equal(t, []string{"rejected", "accepted"}, attempts)
	assert.Equal(t, "ab12", f.lastCaptcha.Load())

	rec := res.Record
	assert.Equal(t, "hc", rec.CourtType)
	assert.Equal(t, testQuery(), rec.CaseQuery)
	assert.Equal(t, "201900012342023", record.Deref(rec.CaseNo))
	assert.Equal(t, "HCBM010012342023", record.Deref(rec.CNRNumber))
	assert.Equal(t, "WP/1234/2023", record.Deref(rec.FilingNumber))
	assert.Equal(t, "03-02-2023", record.Deref(rec.FilingDate))
	assert.Equal(t, "01-03-2023", record.Deref(rec.FirstHearingDate))
	assert.Equal(t, "HON'BLE JUSTICE A", record.Deref(rec.CourtNumberandJudge))
	assert.Equal(t, "ADMISSION", record.Deref(rec.CaseStatus))
	assert.Equal(t, "Writ", record.Deref(rec.Category.Category))
	assert.Equal(t, "Service", record.Deref(rec.Category.SubCategory))
	assert.Equal(t, []string{"ACME LTD"}, rec.Petitioners)
	assert.Equal(t, []string{"UNION OF INDIA"}, rec.Respondents)
	assert.Equal(t, "Tribunal", record.Deref(rec.Subordinate.CourtNumberAndName))
	assert.Equal(t, "OA/1/2022", record.Deref(rec.Subordinate.CaseNumberAndYear))

	require.Len(t, rec.History, 2)
	assert.Nil(t, rec.History[0].CauseListType)
	assert.Equal(t, "01-03-2023", rec.History[0].BusinessOnDate)

	require.Len(t, res.Orders, 1)
	assert.Equal(t, "15-03-2023", res.Orders[0].Date)
	assert.Equal(t, srv.URL+"/hcservices/cases/display_pdf.php?filename=x&caseno=1", res.Orders[0].Source.URL)
}

func TestScannedHistorySkipsOrderRows(t *testing.T) {
	f := &fakeHC{search: func(int) string { return acceptedSearch }}
	srv := f.server(t)
	defer srv.Close()

	a := New(HC2, Options{BaseURL: srv.URL + "/hcservices/", Solver: fixedSolver("x1")})
	res, err := a.Scrape(context.Background(), openSession(t), testQuery())
	require.NoError(t, err)

	history := res.Record.History
	require.Len(t, history, 2)
	assert.Equal(t, "Daily", record.Deref(history[0].CauseListType))
	assert.Equal(t, "Weekly", record.Deref(history[1].CauseListType))
	assert.Equal(t, "JUSTICE B", record.Deref(history[1].Judge))
	assert.Equal(t, "hc2", res.Record.CourtType)
}

func TestScrapeCaptchaExhausted(t *testing.T) {
	f := &fakeHC{search: func(int) string { return `{"Error":"ERROR_VAL"}` }}
	srv := f.server(t)
	defer srv.Close()

	a := New(HC, Options{BaseURL: srv.URL + "/hcservices/", Solver: fixedSolver("x1"), MaxAttempts: 3})
	_, err := a.Scrape(context.Background(), openSession(t), testQuery())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCaptchaExhausted))
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.searches))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.histories))
}

func TestScrapeNoRecords(t *testing.T) {
	f := &fakeHC{search: func(int) string { return `{"totRecords":0}` }}
	srv := f.server(t)
	defer srv.Close()

	a := New(HC, Options{BaseURL: srv.URL + "/hcservices/", Solver: fixedSolver("x1")})
	_, err := a.Scrape(context.Background(), openSession(t), testQuery())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.searches))
}

func TestReadSearch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		accepted bool
		notFound bool
		cino     string
	}{
		{name: "accepted", body: acceptedSearch, accepted: true, cino: "HCBM010012342023"},
		{name: "invalid captcha", body: `{"con":"Invalid Captcha"}`},
		{name: "error val", body: `"ERROR_VAL"`},
		{name: "no records", body: `{"totRecords": 0}`, notFound: true},
		{name: "garbled con", body: `{"con":["not json"]}`},
		{name: "numeric ids", body: `{"con":["[{\"case_no\":201,\"cino\":\"HC1\"}]"]}`, accepted: true, cino: "HC1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, accepted, err := readSearch(tt.body)
			if tt.notFound {
				assert.True(t, apperr.Is(err, apperr.KindNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, accepted)
			assert.Equal(t, tt.cino, c.CINO)
		})
	}
}

func TestValidate(t *testing.T) {
	a := New(HC, Options{BaseURL: "https://example.test/"})
	q := testQuery()
	q.RegYear = ""
	assert.True(t, apperr.Is(a.Validate(q), apperr.KindInvalid))
}
