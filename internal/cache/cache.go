// Package cache is the read-through case cache. Each portal has its own
// collection; documents are addressed by the portal's natural key.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/record"
	"github.com/JustJay7/court-case-aggregator/internal/storage/docstore"
	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
)

type CacheStats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Writes     int64     `json:"writes"`
	LastAccess time.Time `json:"last_access"`
}

type Stats struct {
	CacheStats
	Portals map[string]CacheStats `json:"portals"`
}

type CaseCache struct {
	store  docstore.Store
	prefix string

	mu      sync.Mutex
	total   CacheStats
	portals map[string]*CacheStats
}

func New(store docstore.Store, collectionPrefix string) *CaseCache {
	return &CaseCache{
		store:   store,
		prefix:  collectionPrefix,
		portals: make(map[string]*CacheStats),
	}
}

// Collection names the collection holding a portal's cases.
func (c *CaseCache) Collection(portal string) string {
	if c.prefix == "" {
		return portal
	}
	return c.prefix + "_" + portal
}

// Filter turns a natural key into an equality filter.
func Filter(key record.NaturalKey) bson.M {
	f := bson.M{}
	for _, p := range key {
		f[p.Name] = p.Value
	}
	return f
}

// Find returns the cached record for key, with its store id attached.
func (c *CaseCache) Find(ctx context.Context, portal string, key record.NaturalKey) (*record.Case, bool, error) {
	var rec record.Case
	id, found, err := c.store.FindOne(ctx, c.Collection(portal), Filter(key), &rec)
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache lookup failed for %s", key)
	}

	c.record(portal, func(s *CacheStats) {
		if found {
			s.Hits++
		} else {
			s.Misses++
		}
	})
	if !found {
		return nil, false, nil
	}

	rec.ID = id
	return &rec, true, nil
}

// Upsert replaces whatever is stored under key with rec and sets rec.ID to
// the stored document's id.
func (c *CaseCache) Upsert(ctx context.Context, portal string, key record.NaturalKey, rec *record.Case) (*record.Case, error) {
	id, err := c.store.Upsert(ctx, c.Collection(portal), Filter(key), rec)
	if err != nil {
		return nil, eris.Wrapf(err, "cache write failed for %s", key)
	}

	c.record(portal, func(s *CacheStats) { s.Writes++ })
	rec.ID = id
	return rec, nil
}

func (c *CaseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Stats{CacheStats: c.total, Portals: make(map[string]CacheStats, len(c.portals))}
	for name, s := range c.portals {
		out.Portals[name] = *s
	}
	return out
}

func (c *CaseCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *CaseCache) record(portal string, update func(*CacheStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	s, ok := c.portals[portal]
	if !ok {
		s = &CacheStats{}
		c.portals[portal] = s
	}
	update(s)
	update(&c.total)
	s.LastAccess = now
	c.total.LastAccess = now
}
