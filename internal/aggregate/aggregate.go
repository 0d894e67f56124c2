// Package aggregate implements the aggregator (spec.md §4.9, C9): rollups
// delegated to the cold store for historical windows, falling back to a
// hot-store scan when the requested window is entirely within the hot
// retention period.
package aggregate

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/record"
)

// Overview mirrors coldstore.Overview, with an added average duration term
// (spec.md §4.9 names "avg duration" as part of overview).
type Overview struct {
	TotalCount    int64   `json:"totalCount"`
	ErrorCount    int64   `json:"errorCount"`
	SuccessCount  int64   `json:"successCount"`
	ErrorRate     float64 `json:"errorRate"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}

// Aggregator computes rollups over a [start, end) window.
type Aggregator struct {
	hot  *hotstore.Store
	cold *coldstore.Store
}

func New(hot *hotstore.Store, cold *coldstore.Store) *Aggregator {
	return &Aggregator{hot: hot, cold: cold}
}

// isHotOnly reports whether the window is recent enough that the hot store
// alone has full coverage (within its TTL-bound retention).
func (a *Aggregator) isHotOnly(start time.Time, hotCutoff time.Time) bool {
	return a.hot != nil && a.hot.Available() && !start.Before(hotCutoff)
}

func (a *Aggregator) windowRecords(start, end time.Time) []record.Record {
	if a.hot == nil {
		return nil
	}
	recs, _ := a.hot.Enumerate(func(rec record.Record) bool {
		return !rec.Timestamp.Before(start) && rec.Timestamp.Before(end)
	}, hotstore.DefaultEnumerateLimit)
	return recs
}

// Overview computes totals, error/success counts, and average duration for
// [start, end), using numeric semantics per SPEC_FULL.md: averages over
// non-null duration only, 0 instead of NaN on an empty window, percentages
// rounded half-up to 2 decimals.
func (a *Aggregator) Overview(ctx context.Context, start, end time.Time, hotCutoff time.Time) (Overview, error) {
	if a.isHotOnly(start, hotCutoff) {
		recs := a.windowRecords(start, end)
		return overviewFromRecords(recs), nil
	}
	o, err := a.cold.Overview(ctx, start, end)
	if err != nil {
		return Overview{}, err
	}
	avg, err := a.cold.AvgDuration(ctx, start, end)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		TotalCount:    o.TotalCount,
		ErrorCount:    o.ErrorCount,
		SuccessCount:  o.TotalCount - o.ErrorCount,
		ErrorRate:     o.ErrorRate,
		AvgDurationMs: roundHalfUp(avg),
	}, nil
}

func overviewFromRecords(recs []record.Record) Overview {
	var o Overview
	var durSum int64
	var durN int64
	for _, rec := range recs {
		o.TotalCount++
		if rec.HasError == record.HasErrorTrue {
			o.ErrorCount++
		}
		if rec.DurationMs != nil {
			durSum += *rec.DurationMs
			durN++
		}
	}
	o.SuccessCount = o.TotalCount - o.ErrorCount
	o.ErrorRate = roundHalfUp(divide(float64(o.ErrorCount)*100, float64(o.TotalCount)))
	if durN > 0 {
		o.AvgDurationMs = roundHalfUp(float64(durSum) / float64(durN))
	}
	return o
}

// DailyTimeSeries delegates to the cold store. A hot-only window is grouped
// locally using the same calendar-day bucketing.
func (a *Aggregator) DailyTimeSeries(ctx context.Context, start, end, hotCutoff time.Time) ([]coldstore.DailyCount, error) {
	if a.isHotOnly(start, hotCutoff) {
		recs := a.windowRecords(start, end)
		counts := map[string]int64{}
		for _, rec := range recs {
			day := rec.Timestamp.Format("2006-01-02")
			counts[day]++
		}
		var out []coldstore.DailyCount
		for day, c := range counts {
			out = append(out, coldstore.DailyCount{Day: day, Count: c})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
		return out, nil
	}
	return a.cold.DailyTimeSeries(ctx, start, end)
}

// ErrorDistribution delegates to the cold store for durable data.
func (a *Aggregator) ErrorDistribution(ctx context.Context, start, end time.Time) ([]coldstore.ErrorBucket, error) {
	return a.cold.ErrorDistribution(ctx, start, end)
}

// TopSlowestURLs delegates to the cold store for durable data.
func (a *Aggregator) TopSlowestURLs(ctx context.Context, start, end time.Time, n int) ([]coldstore.SlowURL, error) {
	return a.cold.TopSlowestURLs(ctx, start, end, n)
}

// URLHeatMap delegates to the cold store for durable data.
func (a *Aggregator) URLHeatMap(ctx context.Context, start, end time.Time) ([]coldstore.HeatCell, error) {
	return a.cold.URLHeatMap(ctx, start, end)
}

// FilterOptions merges the cold store's distinct values with any additional
// values seen only in the hot store's recent window (SPEC_FULL.md §4.9+).
func (a *Aggregator) FilterOptions(ctx context.Context) (coldstore.FilterOptions, error) {
	fo, err := a.cold.FilterOptionsFor(ctx)
	if err != nil {
		return coldstore.FilterOptions{}, err
	}
	if a.hot == nil || !a.hot.Available() {
		return fo, nil
	}
	recs, _ := a.hot.Enumerate(nil, hotstore.DefaultEnumerateLimit)
	apiNames := toSet(fo.APINames)
	serviceNames := toSet(fo.ServiceNames)
	logLevels := toSet(fo.LogLevels)
	sessionIDs := toSet(fo.SessionIDs)
	for _, rec := range recs {
		addIfNew(&fo.APINames, apiNames, rec.APIName)
		addIfNew(&fo.ServiceNames, serviceNames, rec.ServiceName)
		addIfNew(&fo.LogLevels, logLevels, string(rec.LogLevel))
		addIfNew(&fo.SessionIDs, sessionIDs, rec.SessionID)
	}
	sort.Strings(fo.APINames)
	sort.Strings(fo.ServiceNames)
	sort.Strings(fo.LogLevels)
	sort.Strings(fo.SessionIDs)
	return fo, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func addIfNew(list *[]string, seen map[string]struct{}, v string) {
	if v == "" {
		return
	}
	if _, ok := seen[v]; ok {
		return
	}
	seen[v] = struct{}{}
	*list = append(*list, v)
}

func divide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// roundHalfUp rounds to 2 decimal places, halves rounded up (toward +Inf),
// never NaN.
func roundHalfUp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Floor(v*100+0.5) / 100
}
