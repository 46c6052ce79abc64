// Package transport provides the cookie-bearing HTTP session a single case
// lookup runs in.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Options configure every session an Opener hands out.
type Options struct {
	UserAgent string
	// Timeout bounds each individual request.
	Timeout time.Duration
	// RatePerSecond limits requests per portal host across sessions. Zero
	// disables limiting.
	RatePerSecond float64
}

// Opener creates sessions. Rate limiters are shared between the sessions of
// one Opener, keyed by host.
type Opener struct {
	opts Options
	log  *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewOpener(opts Options, log *logger.Logger) *Opener {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Opener{
		opts:     opts,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Open starts a new session with an empty cookie jar. Callers must Close it.
func (o *Opener) Open() (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New().
		SetCookieJar(jar).
		SetTimeout(o.opts.Timeout).
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	if o.opts.UserAgent != "" {
		client.SetHeader("User-Agent", o.opts.UserAgent)
	}

	return &Session{
		http:   client,
		jar:    jar,
		opener: o,
		tokens: make(map[string]string),
	}, nil
}

func (o *Opener) limiter(host string) *rate.Limiter {
	if o.opts.RatePerSecond <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	l, ok := o.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(o.opts.RatePerSecond), 1)
		o.limiters[host] = l
	}
	return l
}

// Session carries cookies and portal-issued tokens across the requests of
// one lookup.
type Session struct {
	http   *resty.Client
	jar    http.CookieJar
	opener *Opener
	tokens map[string]string
	closed bool
}

// Request is one outbound call. Form and JSON are mutually exclusive.
type Request struct {
	Method  string
	URL     string
	Query   map[string]string
	Form    map[string]string
	JSON    interface{}
	Headers map[string]string
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) String() string { return string(r.Body) }

// JSON decodes the body into v.
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Do sends req. Network failures and non-2xx statuses are returned as
// *Error; for the latter the response is returned as well.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	if s.closed {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: errSessionClosed}
	}

	if l := s.opener.limiter(hostOf(req.URL)); l != nil {
		if err := l.Wait(ctx); err != nil {
			return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
		}
	}

	r := s.http.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	switch {
	case req.Form != nil:
		r.SetFormData(req.Form)
	case req.JSON != nil:
		r.SetHeader("Content-Type", "application/json").SetBody(req.JSON)
	}

	start := time.Now()
	res, err := r.Execute(req.Method, req.URL)
	if err != nil {
		s.opener.log.Debug("Portal request failed", "method", req.Method, "url", req.URL, "error", err)
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}

	resp := &Response{Status: res.StatusCode(), Header: res.Header(), Body: res.Body()}
	s.opener.log.Debug("Portal request",
		"method", req.Method,
		"url", req.URL,
		"status", resp.Status,
		"bytes", len(resp.Body),
		"latency", time.Since(start).String(),
	)

	if !res.IsSuccess() {
		return resp, &Error{Method: req.Method, URL: req.URL, Status: resp.Status}
	}
	return resp, nil
}

func (s *Session) Get(ctx context.Context, rawURL string, query, headers map[string]string) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Query: query, Headers: headers})
}

func (s *Session) PostForm(ctx context.Context, rawURL string, form, headers map[string]string) (*Response, error) {
	if form == nil {
		form = map[string]string{}
	}
	return s.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Form: form, Headers: headers})
}

func (s *Session) PostJSON(ctx context.Context, rawURL string, body interface{}, headers map[string]string) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, JSON: body, Headers: headers})
}

// Token returns a portal-issued token stored earlier in the session.
func (s *Session) Token(name string) string {
	return s.tokens[name]
}

// SetToken stores a token. Empty values leave the current token in place,
// so rotating tokens survive responses that omit them.
func (s *Session) SetToken(name, value string) {
	if value != "" {
		s.tokens[name] = value
	}
}

// SetCookies seeds the jar, e.g. with cookies taken from a browser page.
func (s *Session) SetCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	s.jar.SetCookies(u, cookies)
	return nil
}

// Cookies returns the cookies the session would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// Close releases the connection pool. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.http.GetClient().CloseIdleConnections()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
