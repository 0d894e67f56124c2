// Package query implements the query router (spec.md §4.8, C8): tier
// planning over the hot/cold split, parallel execution, and a
// hot-preferred merge with deterministic ordering.
package query

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/logging"
	"github.com/sastik/logserver/internal/record"
)

// Plan is the tier-routing decision for one query (spec.md §3's QueryPlan).
type Plan string

const (
	PlanHotOnly  Plan = "HotOnly"
	PlanColdOnly Plan = "ColdOnly"
	PlanBoth     Plan = "Both"
	PlanAuto     Plan = "Auto"
)

// Result is the envelope returned to the HTTP surface (spec.md §4.8).
type Result struct {
	Logs      []record.Record `json:"logs"`
	Total     int             `json:"total"`
	FromCache bool            `json:"from_cache"`
	FromDB    bool            `json:"from_db"`
	Degraded  bool            `json:"degraded,omitempty"`
}

// Router plans and executes queries against both tiers.
type Router struct {
	hot         *hotstore.Store
	cold        *coldstore.Store
	retention   time.Duration
	defaultBoth bool // unranged-query default: Both for general search (spec.md §4.8) vs HotOnly for live-dashboard-style callers
	log         *logging.Logger
	sf          singleflight.Group
}

func New(hot *hotstore.Store, cold *coldstore.Store, retention time.Duration, defaultBoth bool, log *logging.Logger) *Router {
	if log == nil {
		log = logging.NewDiscard()
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &Router{hot: hot, cold: cold, retention: retention, defaultBoth: defaultBoth, log: log}
}

// PlanFor applies spec.md §4.8's planning rules to filter.
func (r *Router) PlanFor(filter record.Filter) Plan {
	if filter.CorrelationID != "" {
		return PlanAuto
	}
	if !filter.HasTimeRange() {
		if r.defaultBoth {
			return PlanBoth
		}
		return PlanHotOnly
	}

	hotCutoff := time.Now().Add(-r.retention)
	startsAfterCutoff := filter.Start != nil && !filter.Start.Before(hotCutoff)
	endsBeforeCutoff := filter.End != nil && filter.End.Before(hotCutoff)

	switch {
	case startsAfterCutoff:
		return PlanHotOnly
	case filter.End != nil && endsBeforeCutoff:
		return PlanColdOnly
	case filter.Start != nil && filter.Start.Before(hotCutoff) && (filter.End == nil || !endsBeforeCutoff):
		return PlanBoth
	default:
		return PlanBoth
	}
}

// Query executes filter under the planned tier(s) and returns the merged,
// paginated result.
func (r *Router) Query(ctx context.Context, filter record.Filter, offset, limit int) (Result, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	plan := r.PlanFor(filter)
	if plan == PlanAuto {
		// correlation_id lookups are cheap enough to just try hot, then cold.
		if hotRecs := r.queryHot(filter); len(hotRecs) > 0 {
			merged, total := merge(hotRecs, nil)
			return Result{Logs: paginate(merged, offset, limit), Total: total, FromCache: true}, nil
		}
		plan = PlanBoth
	}

	switch plan {
	case PlanHotOnly:
		hotRecs := r.queryHot(filter)
		merged, total := merge(hotRecs, nil)
		return Result{Logs: paginate(merged, offset, limit), Total: total, FromCache: true}, nil

	case PlanColdOnly:
		// Route straight through the cold store's own SQL pagination/count —
		// there is no hot tier to merge against, so there is no reason to
		// pull an uncapped slice into memory and paginate it ourselves.
		if r.cold == nil {
			return Result{Logs: []record.Record{}}, nil
		}
		recs, total, err := r.cold.Query(ctx, filter, offset, limit)
		if err != nil {
			r.log.Error("cold store query failed", logging.KVErr(err))
			return Result{Logs: []record.Record{}, Degraded: true}, nil
		}
		return Result{Logs: recs, Total: total, FromDB: true}, nil

	default: // PlanBoth
		var hotRecs, coldRecs []record.Record
		var coldTotal int
		var fromCache, fromDB, degraded bool

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hotRecs = r.queryHot(filter)
			fromCache = true
			return nil
		})
		g.Go(func() error {
			recs, total, err := r.queryCold(gctx, filter)
			if err != nil {
				degraded = true
				r.log.Error("cold store query failed", logging.KVErr(err))
				return nil
			}
			coldRecs, coldTotal = recs, total
			fromDB = true
			return nil
		})
		_ = g.Wait()

		if coldTotal > coldQueryCap {
			r.log.Warn("cold result set exceeds the merge cap; Both-tier total is an estimate",
				logging.KV("cold_total", coldTotal), logging.KV("cap", coldQueryCap))
		}

		merged, _ := merge(hotRecs, coldRecs)
		total := coldTotal + hotOnlyCount(hotRecs, coldRecs)
		page := paginate(merged, offset, limit)

		return Result{Logs: page, Total: total, FromCache: fromCache, FromDB: fromDB, Degraded: degraded}, nil
	}
}

// hotOnlyCount counts hot records whose correlation_id is absent from the
// fetched cold slice, so PlanBoth's total can add the cold store's exact
// count (unbounded by coldQueryCap) to the hot-only entries instead of
// under-reporting via len(merged) when the cold fetch was capped.
func hotOnlyCount(hot, cold []record.Record) int {
	coldCIDs := make(map[string]struct{}, len(cold))
	for _, rec := range cold {
		coldCIDs[rec.CorrelationID] = struct{}{}
	}
	n := 0
	for _, rec := range hot {
		if _, ok := coldCIDs[rec.CorrelationID]; !ok {
			n++
		}
	}
	return n
}

func (r *Router) queryHot(filter record.Filter) []record.Record {
	if r.hot == nil || !r.hot.Available() {
		return nil
	}
	recs, truncated := r.hot.Enumerate(func(rec record.Record) bool { return filter.Matches(rec) }, hotstore.DefaultEnumerateLimit)
	if truncated {
		r.log.Warn("hot store enumeration truncated", logging.KV("limit", hotstore.DefaultEnumerateLimit))
	}
	return recs
}

// queryCold runs the unpaginated cold-store match so it can be merged with
// hot-tier results before pagination; duplicate concurrent queries for the
// same filter are collapsed via singleflight.
func (r *Router) queryCold(ctx context.Context, filter record.Filter) ([]record.Record, int, error) {
	if r.cold == nil {
		return nil, 0, nil
	}
	key := filterKey(filter)
	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		recs, total, err := r.cold.Query(ctx, filter, 0, coldQueryCap)
		if err != nil {
			return nil, err
		}
		return coldResult{recs: recs, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	cr := v.(coldResult)
	return cr.recs, cr.total, nil
}

// coldQueryCap bounds how many cold rows are pulled into the merge step
// before pagination; large enough that typical page sizes never truncate,
// without pulling an unbounded result set into memory.
const coldQueryCap = 5000

type coldResult struct {
	recs  []record.Record
	total int
}

func filterKey(f record.Filter) string {
	key := f.CorrelationID + "|" + f.APIName + "|" + f.ServiceName + "|" + f.LogLevel + "|" + f.SessionID + "|" + f.HasError
	if f.Start != nil {
		key += "|" + f.Start.Format(time.RFC3339)
	}
	if f.End != nil {
		key += "|" + f.End.Format(time.RFC3339)
	}
	return key
}

// merge unions hot and cold results by correlation_id, preferring the hot
// entry on duplicates (spec.md §4.8), then sorts deterministically.
func merge(hot, cold []record.Record) ([]record.Record, int) {
	byCID := make(map[string]record.Record, len(hot)+len(cold))
	for _, rec := range cold {
		byCID[rec.CorrelationID] = rec
	}
	for _, rec := range hot {
		byCID[rec.CorrelationID] = rec // hot wins on conflict
	}

	out := make([]record.Record, 0, len(byCID))
	for _, rec := range byCID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].CorrelationID < out[j].CorrelationID
	})
	return out, len(out)
}

func paginate(recs []record.Record, offset, limit int) []record.Record {
	if offset >= len(recs) {
		return []record.Record{}
	}
	end := offset + limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[offset:end]
}
