// Package pipeline runs case lookups: cache read, portal scrape, order
// archiving and cache write, in that order.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/archive"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/metrics"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/transport"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
)

// Lookup outcomes reported to metrics and the query log, besides the error
// kinds.
const (
	OutcomeCached  = "cached"
	OutcomeScraped = "scraped"
)

// SessionOpener opens the transport session one lookup runs in.
type SessionOpener interface {
	Open() (*transport.Session, error)
}

// CaseStore is the case cache.
type CaseStore interface {
	Find(ctx context.Context, portal string, key record.NaturalKey) (*record.Case, bool, error)
	Upsert(ctx context.Context, portal string, key record.NaturalKey, rec *record.Case) (*record.Case, error)
}

// OrderArchiver mirrors order documents into object storage.
type OrderArchiver interface {
	Archive(ctx context.Context, f archive.Fetcher, src archive.Source, caseKey string, seq int) *string
}

// QueryLogger keeps the lookup audit trail.
type QueryLogger interface {
	Record(ctx context.Context, entry *database.QueryLog) error
}

type Options struct {
	Registry *portal.Registry
	Opener   SessionOpener
	Cache    CaseStore
	Archiver OrderArchiver
	// QueryLog and Metrics are optional.
	QueryLog QueryLogger
	Metrics  *metrics.Metrics
	// MaxConcurrent bounds LookupMany.
	MaxConcurrent int
	Log           *logger.Logger
}

type Service struct {
	opts Options
	log  *logger.Logger
}

func New(opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	return &Service{opts: opts, log: opts.Log}
}

// Portals lists the registered portal ids.
func (s *Service) Portals() []string {
	return s.opts.Registry.IDs()
}

// Outcome is a successful lookup.
type Outcome struct {
	Record    *record.Case
	FromCache bool
}

// Lookup returns the record for q on the given portal. Unless refresh is
// set a cached record is returned as stored, without contacting the portal.
// A failed scrape never writes to the cache.
func (s *Service) Lookup(ctx context.Context, portalID string, q record.CaseQuery, refresh bool) (out *Outcome, err error) {
	start := time.Now()
	adapter, ok := s.opts.Registry.Get(portalID)
	if !ok {
		return nil, apperr.Invalid(fmt.Sprintf("unknown portal %q", portalID))
	}
	key := q.Key(adapter.KeyFields())
	log := s.log.With("portal", portalID, "key", key.String())

	defer func() {
		s.audit(ctx, portalID, key, refresh, out, err, time.Since(start))
	}()

	if err := adapter.Validate(q); err != nil {
		return nil, err
	}

	if refresh {
		s.opts.Metrics.CacheRequest(portalID, "bypass")
	} else {
		rec, found, err := s.opts.Cache.Find(ctx, portalID, key)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindInternal, "case cache unavailable")
		}
		if found {
			s.opts.Metrics.CacheRequest(portalID, "hit")
			log.Debug("Cache hit")
			return &Outcome{Record: rec, FromCache: true}, nil
		}
		s.opts.Metrics.CacheRequest(portalID, "miss")
	}

	ctx = s.observe(ctx, portalID, log)
	rec, err := s.scrape(ctx, adapter, q, key, log)
	if err != nil {
		portal.Enter(ctx, portal.StateFailed)
		return nil, err
	}

	stored, err := s.opts.Cache.Upsert(ctx, portalID, key, rec)
	if err != nil {
		portal.Enter(ctx, portal.StateFailed)
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to store case")
	}
	portal.Enter(ctx, portal.StateDone)
	return &Outcome{Record: stored}, nil
}

// observe installs the state, gap and CAPTCHA observers for one lookup.
func (s *Service) observe(ctx context.Context, portalID string, log *logger.Logger) context.Context {
	ctx = portal.WithObserver(ctx, func(st portal.State) {
		log.Debug("Lookup state", "state", string(st))
	})
	ctx = portal.WithGapReporter(ctx, func(table string) {
		log.Debug("Portal table missing", "table", table)
	})
	return portal.WithCaptchaObserver(ctx, func(result string) {
		s.opts.Metrics.CaptchaAttempt(portalID, result)
	})
}

func (s *Service) scrape(ctx context.Context, adapter portal.Adapter, q record.CaseQuery, key record.NaturalKey, log *logger.Logger) (*record.Case, error) {
	sess, err := s.opts.Opener.Open()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to open session")
	}
	defer sess.Close()

	res, err := adapter.Scrape(ctx, sess, q)
	if err != nil {
		log.Debug("Scrape failed", "error", err)
		return nil, apperr.Ensure(err, apperr.KindUpstream, "portal request failed")
	}

	rec := res.Record
	caseKey := archiveKey(res, key)
	rec.Orders = make([]record.Order, 0, len(res.Orders))
	for i, ref := range res.Orders {
		seq := i + 1
		rec.Orders = append(rec.Orders, record.Order{
			OrderNumber: strconv.Itoa(seq),
			OrderDate:   ref.Date,
			OrderLink:   s.opts.Archiver.Archive(ctx, sess, ref.Source, caseKey, seq),
		})
	}
	portal.Enter(ctx, portal.StateOrdersArchived)

	rec.CaseQuery = q
	rec.Normalize()
	return rec, nil
}

// archiveKey picks the key orders of a case are stored under: the
// adapter's choice, else the portal's case id, else the natural key.
func archiveKey(res *portal.Result, key record.NaturalKey) string {
	if res.ArchiveKey != "" {
		return archive.CaseKey(res.ArchiveKey)
	}
	if cino := record.Deref(res.Record.CINO); cino != "" {
		return archive.CaseKey(cino)
	}
	return archive.CaseKey(key.Values("-"))
}

type clientKey struct{}

// WithClientIP tags lookups run under ctx with the caller's address for the
// query log.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientKey{}, ip)
}

func (s *Service) audit(ctx context.Context, portalID string, key record.NaturalKey, refresh bool, out *Outcome, err error, d time.Duration) {
	outcome := OutcomeScraped
	switch {
	case err != nil:
		outcome = apperr.KindOf(err).String()
	case out.FromCache:
		outcome = OutcomeCached
	}
	s.opts.Metrics.ObserveLookup(portalID, outcome, d)

	if err != nil {
		s.log.Info("Lookup failed", "portal", portalID, "key", key.String(), "outcome", outcome, "error", err)
	}
	if s.opts.QueryLog == nil {
		return
	}

	ip, _ := ctx.Value(clientKey{}).(string)
	entry := &database.QueryLog{
		Portal:     portalID,
		NaturalKey: key.String(),
		Refresh:    refresh,
		FromCache:  out != nil && out.FromCache,
		Outcome:    outcome,
		DurationMS: d.Milliseconds(),
		QueryTime:  time.Now(),
		IPAddress:  ip,
	}
	if err != nil {
		entry.ErrorMessage = apperr.Message(err)
	}
	if lerr := s.opts.QueryLog.Record(context.WithoutCancel(ctx), entry); lerr != nil {
		s.log.Warn("Failed to record query", "error", lerr)
	}
}
