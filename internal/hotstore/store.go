// Package hotstore implements the hot store (spec.md §4.4, C4): keyed
// record storage with TTL, enumeration, and counting. The distilled spec
// describes this as a "remote cache", but the example corpus carries no
// Redis client; hashicorp/golang-lru/v2's expirable LRU (pulled in via
// erigon's go.mod) is the grounded substitute — an in-process cache that
// still satisfies the TTL/enumerate/availability-degradation contract.
package hotstore

import (
	"errors"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sastik/logserver/internal/record"
)

// DefaultEnumerateLimit caps how many entries Enumerate will scan/return
// before reporting truncation, per spec.md §4.4.
const DefaultEnumerateLimit = 10000

// DefaultCapacity bounds total resident entries independent of TTL.
const DefaultCapacity = 200000

var ErrCacheUnavailable = errors.New("hot store is unavailable")

// Store is the hot tier. It is safe for concurrent use.
type Store struct {
	cache        *lru.LRU[string, record.Record]
	ttl          time.Duration
	enumerateCap int
	available    atomic.Bool
}

// New builds a Store with the given TTL and capacity (0 uses defaults).
func New(ttl time.Duration, capacity int) *Store {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		cache:        lru.NewLRU[string, record.Record](capacity, nil, ttl),
		ttl:          ttl,
		enumerateCap: DefaultEnumerateLimit,
	}
	s.available.Store(true)
	return s
}

// Available reports whether the store is currently reachable; Put returns
// ErrCacheUnavailable and Get/Enumerate return empty while false.
func (s *Store) Available() bool { return s.available.Load() }

// SetAvailable flips the degraded/restored state. No component of the
// service calls it, so in the running service the cache stays available.
func (s *Store) SetAvailable(ok bool) { s.available.Store(ok) }

// Put stores rec under cid with the store's configured TTL. Per spec.md
// §4.4, this is non-fatal when the store is unavailable — the pipeline
// continues to the cold store regardless.
func (s *Store) Put(cid string, rec record.Record) error {
	if !s.Available() {
		return ErrCacheUnavailable
	}
	s.cache.Add(cid, rec)
	return nil
}

// Get returns the record for cid. ok is false both when the key is absent
// and when the store is unavailable (spec.md §4.4: "return empty with a
// warning").
func (s *Store) Get(cid string) (record.Record, bool) {
	if !s.Available() {
		return record.Record{}, false
	}
	return s.cache.Get(cid)
}

// Delete removes cid from the cache, if present.
func (s *Store) Delete(cid string) {
	s.cache.Remove(cid)
}

// Count returns the number of resident (non-expired) entries.
func (s *Store) Count() int {
	if !s.Available() {
		return 0
	}
	return s.cache.Len()
}

// Enumerate returns entries matching predicate, sorted by Timestamp
// descending, truncated to limit (0 uses the store default). truncated
// reports whether the internal scan cap (spec.md §4.4, default 10000) was
// hit before predicate filtering exhausted the cache.
func (s *Store) Enumerate(predicate func(record.Record) bool, limit int) (out []record.Record, truncated bool) {
	if !s.Available() {
		return nil, false
	}
	if limit <= 0 || limit > s.enumerateCap {
		limit = s.enumerateCap
	}

	keys := s.cache.Keys()
	if len(keys) > s.enumerateCap {
		keys = keys[:s.enumerateCap]
		truncated = true
	}

	for _, k := range keys {
		rec, ok := s.cache.Peek(k)
		if !ok {
			continue
		}
		if predicate == nil || predicate(rec) {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, truncated
}
