package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/cache"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/metrics"
	"github.com/JustJay7/court-case-aggregator/internal/pipeline"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/storage/docstore"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// courtStub answers lookups for the district court id. Registration number
// "404" is not found upstream.
type courtStub struct {
	calls int32
}

func (s *courtStub) ID() string          { return "dc" }
func (s *courtStub) KeyFields() []string { return record.CourtKeyFields }

func (s *courtStub) Validate(q record.CaseQuery) error {
	return portal.Require(q, record.FieldCaseRegNo, record.FieldRegYear)
}

func (s *courtStub) Scrape(_ context.Context, _ *transport.Session, q record.CaseQuery) (*portal.Result, error) {
	atomic.AddInt32(&s.calls, 1)
	if q.CaseRegNo == "404" {
		return nil, apperr.NotFound("Case not found")
	}
	rec := record.New("dc")
	rec.CINO = record.Str("MHPU01" + q.CaseRegNo + q.RegYear)
	return &portal.Result{Record: rec}, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *courtStub) {
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(":memory:")
	require.NoError(t, err)
	queries := database.NewQueryLogs(db)
	cases := cache.New(docstore.NewMemory(), "casedetails")

	stub := &courtStub{}
	svc := pipeline.New(pipeline.Options{
		Registry: portal.NewRegistry(stub),
		Opener:   transport.NewOpener(transport.Options{Timeout: 5 * time.Second}, logger.Nop()),
		Cache:    cases,
		Archiver: archive.New(nil, archive.Options{}, logger.Nop()),
		QueryLog: queries,
		Log:      logger.Nop(),
	})

	router := gin.New()
	SetupRoutes(router, svc, cases, queries, metrics.New(), logger.Nop())
	return router, stub
}

func perform(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func courtBody(regNo string) map[string]string {
	return map[string]string{
		"case_type":          "1",
		"case_reg_no":        regNo,
		"rgyear":             "2023",
		"state_code":         "1",
		"dist_code":          "1",
		"court_complex_code": "1",
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := perform(router, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, []interface{}{"dc"}, resp["portals"])
}

func TestGetCaseInfo(t *testing.T) {
	router, stub := setupTestRouter(t)

	w := perform(router, http.MethodPost, "/api/v1/getcaseInfo", courtBody("123"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	first := decode(t, w)
	assert.Equal(t, "MHPU011232023", first["cino"])
	assert.Equal(t, "123", first["case_reg_no"])
	assert.NotEmpty(t, first["_id"])

	// Same case through the prefixed route is served from the cache.
	w = perform(router, http.MethodPost, "/api/v1/dc/getcaseInfo", courtBody("123"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, first["_id"], decode(t, w)["_id"])
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.calls))

	body := courtBody("123")
	body["refresh_flag"] = "1"
	w = perform(router, http.MethodPost, "/api/v1/getcaseInfo", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, first["_id"], decode(t, w)["_id"])
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.calls))
}

func TestGetCaseInfoErrors(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantError  string
	}{
		{
			name:       "not found upstream",
			body:       courtBody("404"),
			wantStatus: http.StatusNotFound,
			wantError:  "Case not found",
		},
		{
			name:       "missing key field",
			body:       map[string]string{"case_reg_no": "123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "rgyear",
		},
		{
			name:       "malformed body",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(router, http.MethodPost, "/api/v1/getcaseInfo", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.wantError)
		})
	}
}

func TestBulkSearchAPI(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := perform(router, http.MethodPost, "/api/v1/cases/bulk", map[string]interface{}{
		"queries": []interface{}{
			courtBody("123"),
			courtBody("404"),
			map[string]string{"portal": "nclt", "case_reg_no": "1"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.NotEmpty(t, resp["job_id"])
	results := resp["results"].([]interface{})
	require.Len(t, results, 3)

	ok := results[0].(map[string]interface{})
	assert.Equal(t, true, ok["success"])
	assert.Equal(t, "dc", ok["portal"])
	assert.Equal(t, "MHPU011232023", ok["data"].(map[string]interface{})["cino"])

	missing := results[1].(map[string]interface{})
	assert.Equal(t, false, missing["success"])
	assert.EqualValues(t, http.StatusNotFound, missing["status"])

	unknown := results[2].(map[string]interface{})
	assert.Equal(t, false, unknown["success"])
	assert.EqualValues(t, http.StatusBadRequest, unknown["status"])
}

func TestBulkSearchAPILimits(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := perform(router, http.MethodPost, "/api/v1/cases/bulk", map[string]interface{}{"queries": []interface{}{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	queries := make([]interface{}, 11)
	for i := range queries {
		queries[i] = courtBody(fmt.Sprint(i))
	}
	w = perform(router, http.MethodPost, "/api/v1/cases/bulk", map[string]interface{}{"queries": queries})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListQueriesAPI(t *testing.T) {
	router, _ := setupTestRouter(t)

	perform(router, http.MethodPost, "/api/v1/getcaseInfo", courtBody("123"))
	perform(router, http.MethodPost, "/api/v1/getcaseInfo", courtBody("123"))
	perform(router, http.MethodPost, "/api/v1/getcaseInfo", courtBody("404"))

	w := perform(router, http.MethodGet, "/api/queries?page=1&limit=2&portal=dc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	pagination := resp["pagination"].(map[string]interface{})
	assert.EqualValues(t, 3, pagination["total"])

	entries := resp["data"].([]interface{})
	require.Len(t, entries, 2)
	newest := entries[0].(map[string]interface{})
	assert.Equal(t, "not_found", newest["outcome"])
	assert.Equal(t, "cached", entries[1].(map[string]interface{})["outcome"])
}

func TestSearchPartyUnsupported(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := perform(router, http.MethodPost, "/api/v1/dc/bulk_q/partyname", map[string]string{
		"petres_name": "Sharma",
		"rgyearP":     "2023",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "party"), w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)
	perform(router, http.MethodPost, "/api/v1/getcaseInfo", courtBody("123"))

	w := perform(router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `court_lookups_total{outcome="scraped",portal="dc"} 1`)
}
