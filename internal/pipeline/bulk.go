package pipeline

import (
	"context"
	"fmt"

	"github.com/JustJay7/court-case-aggregator/internal/apperr"
	"github.com/JustJay7/court-case-aggregator/internal/portal"
	"github.com/JustJay7/court-case-aggregator/internal/record"
	"golang.org/x/sync/errgroup"
)

// BulkRequest is one lookup of a batch.
type BulkRequest struct {
	Portal  string           `json:"portal"`
	Query   record.CaseQuery `json:"query"`
	Refresh bool             `json:"refresh"`
}

type BulkResult struct {
	Request BulkRequest
	Outcome *Outcome
	Err     error
}

// LookupMany runs every request with at most MaxConcurrent in flight and
// returns results in request order. Identical requests are not merged.
func (s *Service) LookupMany(ctx context.Context, reqs []BulkRequest) []BulkResult {
	results := make([]BulkResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrent)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			out, err := s.Lookup(ctx, req.Portal, req.Query, req.Refresh)
			results[i] = BulkResult{Request: req, Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SearchParty lists the cases matching a party name on portals that
// support it. Results are not cached.
func (s *Service) SearchParty(ctx context.Context, portalID string, q record.PartyQuery) ([]record.Candidate, error) {
	adapter, ok := s.opts.Registry.Get(portalID)
	if !ok {
		return nil, apperr.Invalid(fmt.Sprintf("unknown portal %q", portalID))
	}
	searcher, ok := adapter.(portal.PartySearcher)
	if !ok {
		return nil, apperr.Invalid(fmt.Sprintf("portal %q does not support party search", portalID))
	}

	sess, err := s.opts.Opener.Open()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "failed to open session")
	}
	defer sess.Close()

	candidates, err := searcher.SearchParty(ctx, sess, q)
	if err != nil {
		return nil, apperr.Ensure(err, apperr.KindUpstream, "party search failed")
	}
	return candidates, nil
}
