// Package portal defines the contract every court portal adapter
// implements, and the registry the pipeline resolves adapters from.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
)

// OrderRef is an order found on the portal, in source order. A zero Source
// means the portal listed the order without a retrievable document.
type OrderRef struct {
	Date   string
	Source archive.Source
}

// Result is what a scrape produces before orders are archived.
type Result struct {
	Record *record.Case
	Orders []OrderRef
	// ArchiveKey overrides the key orders are archived under.
	ArchiveKey string
}

// Adapter runs one portal's request sequence inside a transport session.
type Adapter interface {
	ID() string
	// KeyFields names the query fields forming the portal's natural key.
	KeyFields() []string
	Validate(q record.CaseQuery) error
	Scrape(ctx context.Context, sess *transport.Session, q record.CaseQuery) (*Result, error)
}

// PartySearcher is implemented by adapters whose portal supports searching
// by party name.
type PartySearcher interface {
	SearchParty(ctx context.Context, sess *transport.Session, q record.PartyQuery) ([]record.Candidate, error)
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.ID()] = a
	}
	return r
}

func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns the registered portal ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Require validates that the named query fields are present.
func Require(q record.CaseQuery, fields ...string) error {
	if err := q.Require(fields...); err != nil {
		return apperr.Invalid(err.Error())
	}
	return nil
}

// Upstream classifies a failure at a protocol step.
func Upstream(err error, step string) error {
	return apperr.Upstream(err, fmt.Sprintf("%s failed", step))
}

// DecodeJSON decodes a portal JSON body, keeping numbers as json.Number so
// identifiers survive unchanged.
func DecodeJSON(resp *transport.Response, v interface{}, step string) error {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(resp.String())))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return apperr.Upstream(err, fmt.Sprintf("%s returned malformed JSON", step))
	}
	return nil
}

// Text renders a loosely typed JSON value as a trimmed string. Nulls and
// missing values yield "".
func Text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Join appends path to base, keeping exactly one slash between them.
func Join(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
