package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpener() *Opener {
	return NewOpener(Options{UserAgent: "court-test", Timeout: 5 * time.Second}, logger.Nop())
}

func TestSessionCarriesCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusOK)
		case "/detail":
			c, err := r.Cookie("PHPSESSID")
			if err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			assert.Equal(t, "court-test", r.UserAgent())
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	sess, err := newTestOpener().Open()
	require.NoError(t, err)
	defer sess.Close()

	ctx := context.Background()
	_, err = sess.Get(ctx, srv.URL+"/login", nil, nil)
	require.NoError(t, err)

	resp, err := sess.Get(ctx, srv.URL+"/detail", nil, nil)
	require.NoError(t, err)

	var body struct{ OK bool }
	require.NoError(t, resp.JSON(&body))
	assert.True(t, body.OK)
}

func TestSessionsDoNotShareCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "1", Path: "/"})
			return
		}
		if _, err := r.Cookie("sid"); err == nil {
			_, _ = w.Write([]byte("shared"))
		}
	}))
	defer srv.Close()

	opener := newTestOpener()
	first, err := opener.Open()
	require.NoError(t, err)
	defer first.Close()
	second, err := opener.Open()
	require.NoError(t, err)
	defer second.Close()

	_, err = first.Get(context.Background(), srv.URL+"/login", nil, nil)
	require.NoError(t, err)

	resp, err := second.Get(context.Background(), srv.URL+"/check", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.String())
}

func TestPostFormAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/form":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "true", r.PostForm.Get("ajax_req"))
			assert.Equal(t, "123", r.PostForm.Get("case_no"))
			assert.Equal(t, "CScaseNumber", r.URL.Query().Get("search"))
		case "/json":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			raw, _ := io.ReadAll(r.Body)
			var payload map[string]string
			require.NoError(t, json.Unmarshal(raw, &payload))
			assert.Equal(t, "casenumber", payload["wayofselection"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sess, err := newTestOpener().Open()
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/form",
		Query:  map[string]string{"search": "CScaseNumber"},
		Form:   map[string]string{"ajax_req": "true", "case_no": "123"},
	})
	require.NoError(t, err)

	_, err = sess.PostJSON(context.Background(), srv.URL+"/json", map[string]string{"wayofselection": "casenumber"}, nil)
	require.NoError(t, err)
}

func TestNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	sess, err := newTestOpener().Open()
	require.NoError(t, err)
	defer sess.Close()

	resp, err := sess.Get(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	require.NotNil(t, resp)
	assert.Equal(t, "upstream down", resp.String())
}

func TestClosedSessionRejectsRequests(t *testing.T) {
	sess, err := newTestOpener().Open()
	require.NoError(t, err)

	sess.Close()
	sess.Close()

	_, err = sess.Get(context.Background(), "http://127.0.0.1:1/", nil, nil)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, errSessionClosed)
}

func TestTokens(t *testing.T) {
	sess, err := newTestOpener().Open()
	require.NoError(t, err)
	defer sess.Close()

	sess.SetToken("app_token", "t1")
	sess.SetToken("app_token", "")
	assert.Equal(t, "t1", sess.Token("app_token"))
	sess.SetToken("app_token", "t2")
	assert.Equal(t, "t2", sess.Token("app_token"))
}

func TestRateLimiterPerHost(t *testing.T) {
	opener := NewOpener(Options{RatePerSecond: 5}, logger.Nop())

	a := opener.limiter("a.example")
	assert.Same(t, a, opener.limiter("a.example"))
	assert.NotSame(t, a, opener.limiter("b.example"))

	assert.Nil(t, newTestOpener().limiter("a.example"))
}
