package tribunal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historyBody = `{
  "isregistered": [{"status": "Pending"}],
  "allfinalstatuslist": [{"listing_date": "12-01-2024"}],
  "partydetailslist": [{"party_name": "ACME FINANCE LTD"}, {"party_name": "XYZ INFRA PVT LTD"}],
  "allproceedingdtls": [
    {"bench_location_name": "Mumbai Bench Court-I", "listing_date": "12-01-2024", "next_list_date": "20-02-2024", "purpose": "Admission", "encPath": "abc%3D%3D", "order_upload_date": "13-01-2024"},
    {"bench_location_name": null, "listing_date": "20-02-2024", "next_list_date": "", "purpose": "Hearing", "order_upload_date": null}
  ]
}`

func testQuery() record.CaseQuery {
	return record.CaseQuery{CaseType: "16", CaseRegNo: "77", RegYear: "2023", CourtComplexCode: "9"}
}

func openSession(t *testing.T) *transport.Session {
	sess, err := transport.NewOpener(transport.Options{Timeout: 5 * time.Second}, logger.Nop()).Open()
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func serve(t *testing.T, panel string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(serverCookie)
		require.NoError(t, err)
		assert.Equal(t, serverID, c.Value)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/caseHistoryoptional.drt":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "casenumber", body["wayofselection"])
			assert.Equal(t, "77", body["case_no"])
			assert.Equal(t, "9", body["i_bench_id_case_no"])
			_, _ = w.Write([]byte(panel))
		case "/caseHistoryalldetails.drt":
			assert.Equal(t, "2709138002212023", r.URL.Query().Get("filing_no"))
			assert.Equal(t, "false", r.URL.Query().Get("flagIA"))
			_, _ = w.Write([]byte(historyBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestScrape(t *testing.T) {
	srv := serve(t, `{"mainpanellist":[{"filing_no":2709138002212023,"case_no":"CP(IB)/77/MB/2023","case_type_desc_cis":"Company Petition IB"}]}`)
	defer srv.Close()

	res, err := New(srv.URL, nil).Scrape(context.Background(), openSession(t), testQuery())
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, testQuery(), rec.CaseQuery)
	assert.Equal(t, "2709138002212023", res.ArchiveKey)
	assert.Equal(t, "CP(IB)/77/MB/2023", record.Deref(rec.CINO))
	assert.Equal(t, "CP(IB)/77/MB/2023", record.Deref(rec.CNRNumber))
	assert.Equal(t, "Company Petition IB", record.Deref(rec.CaseTypeName))
	assert.Equal(t, "2709138002212023", record.Deref(rec.FilingNumber))
	assert.Equal(t, "Pending", record.Deref(rec.CaseStatus))
	assert.Equal(t, "12-01-2024", record.Deref(rec.FirstHearingDate))
	assert.Equal(t, []string{"ACME FINANCE LTD"}, rec.Petitioners)
	assert.Equal(t, []string{"XYZ INFRA PVT LTD"}, rec.Respondents)

	require.Len(t, rec.History, 2)
	assert.Equal(t, "Mumbai Bench Court-I", record.Deref(rec.History[0].Judge))
	assert.Equal(t, "Unknown Bench", record.Deref(rec.History[1].Judge))
	assert.Equal(t, "Hearing", rec.History[1].Purpose)

	require.Len(t, res.Orders, 2)
	assert.Equal(t, srv.URL+"/ordersview.drt?path=abc%3D%3D", res.Orders[0].Source.URL)
	assert.Equal(t, "13-01-2024", res.Orders[0].Date)
	assert.True(t, res.Orders[1].Source.Empty())
}

func TestScrapeEmptyPanel(t *testing.T) {
	srv := serve(t, `{"mainpanellist":[]}`)
	defer srv.Close()

	_, err := New(srv.URL, nil).Scrape(context.Background(), openSession(t), testQuery())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestValidate(t *testing.T) {
	q := testQuery()
	q.CaseType = ""
	assert.True(t, apperr.Is(New("https://efiling.nclt.gov.in", nil).Validate(q), apperr.KindInvalid))
}
