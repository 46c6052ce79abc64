// Package archive mirrors order PDFs into object storage under stable keys.
package archive

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
)

const (
	// KeyPrefix is the folder all archived orders live under.
	KeyPrefix = "case_data/orders"

	contentType        = "application/pdf"
	contentDisposition = "inline"
)

// PutOptions are the object headers written with a document.
type PutOptions struct {
	ContentType        string
	ContentDisposition string
}

// ObjectStore is the storage the archiver writes to.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	URL(key string) string
}

// Fetcher issues the download request, normally inside the lookup's
// transport session so portal cookies apply.
type Fetcher interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Source points at an order document. Either Inline holds a base64 payload
// or URL names where to download it.
type Source struct {
	Method  string
	URL     string
	Form    map[string]string
	Headers map[string]string
	Inline  string
}

// Empty reports whether the source points nowhere.
func (s Source) Empty() bool {
	return s.URL == "" && s.Inline == ""
}

// Archiver results reported through Options.Observe.
const (
	ResultExisting = "existing"
	ResultUploaded = "uploaded"
	ResultFailed   = "failed"
	ResultSkipped  = "skipped"
)

type Options struct {
	// Timeout bounds the download of a single document.
	Timeout time.Duration
	Observe func(result string)
}

type Archiver struct {
	store ObjectStore
	opts  Options
	log   *logger.Logger
}

func New(store ObjectStore, opts Options, log *logger.Logger) *Archiver {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Archiver{store: store, opts: opts, log: log}
}

// Key returns the storage key of order seq of a case.
func Key(caseKey string, seq int) string {
	return fmt.Sprintf("%s/%s/%s-%d.pdf", KeyPrefix, caseKey, caseKey, seq)
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// CaseKey joins parts into a key segment safe for object storage.
func CaseKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Trim(unsafeKeyChars.ReplaceAllString(strings.Join(kept, "-"), "-"), "-")
}

// Archive ensures the document behind src is stored under Key(caseKey, seq)
// and returns its address. An existing object is never rewritten. Any
// failure is logged and yields nil. Without a store every order is skipped.
func (a *Archiver) Archive(ctx context.Context, f Fetcher, src Source, caseKey string, seq int) *string {
	if a.store == nil || src.Empty() || caseKey == "" {
		a.observe(ResultSkipped)
		return nil
	}

	key := Key(caseKey, seq)
	log := a.log.With("key", key)

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		log.Warn("Order archive failed", "stage", "exists", "error", err)
		a.observe(ResultFailed)
		return nil
	}
	if exists {
		a.observe(ResultExisting)
		return a.link(key)
	}

	body, err := a.fetch(ctx, f, src)
	if err != nil {
		log.Warn("Order archive failed", "stage", "fetch", "error", err)
		a.observe(ResultFailed)
		return nil
	}

	opts := PutOptions{ContentType: contentType, ContentDisposition: contentDisposition}
	if err := a.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), opts); err != nil {
		log.Warn("Order archive failed", "stage", "put", "error", err)
		a.observe(ResultFailed)
		return nil
	}

	log.Debug("Order archived", "bytes", len(body))
	a.observe(ResultUploaded)
	return a.link(key)
}

func (a *Archiver) fetch(ctx context.Context, f Fetcher, src Source) ([]byte, error) {
	if src.Inline != "" {
		body, err := base64.StdEncoding.DecodeString(strings.TrimSpace(src.Inline))
		if err != nil {
			return nil, fmt.Errorf("invalid inline document: %w", err)
		}
		return body, nil
	}
	if f == nil {
		return nil, fmt.Errorf("no fetcher for %s", src.URL)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	method := src.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := f.Do(ctx, transport.Request{
		Method:  method,
		URL:     src.URL,
		Form:    src.Form,
		Headers: src.Headers,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("empty document at %s", src.URL)
	}
	return resp.Body, nil
}

func (a *Archiver) link(key string) *string {
	u := a.store.URL(key)
	return &u
}

func (a *Archiver) observe(result string) {
	if a.opts.Observe != nil {
		a.opts.Observe(result)
	}
}
