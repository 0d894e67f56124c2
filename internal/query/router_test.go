package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/record"
)

func newTestRouter(t *testing.T, defaultBoth bool) (*Router, *hotstore.Store, *coldstore.Store) {
	t.Helper()
	hot := hotstore.New(time.Hour, 0)
	cold, err := coldstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { cold.Close() })
	return New(hot, cold, 48*time.Hour, defaultBoth, nil), hot, cold
}

// TestPlanForDefaultMatchesProductionConfig asserts that with
// HOT_QUERY_DEFAULT_BOTH's documented default (true), an unranged
// general-search query plans Both rather than silently dropping the cold
// tier (spec.md §4.8: "No time range → ... Both for general search").
func TestPlanForDefaultMatchesProductionConfig(t *testing.T) {
	r, _, _ := newTestRouter(t, true)
	assert.Equal(t, PlanBoth, r.PlanFor(record.Filter{}))
}

func TestPlanForRules(t *testing.T) {
	r, _, _ := newTestRouter(t, true)

	assert.Equal(t, PlanAuto, r.PlanFor(record.Filter{CorrelationID: "x"}))
	assert.Equal(t, PlanBoth, r.PlanFor(record.Filter{}))

	recent := time.Now().Add(-time.Hour)
	assert.Equal(t, PlanHotOnly, r.PlanFor(record.Filter{Start: &recent}))

	old := time.Now().Add(-200 * time.Hour)
	oldEnd := time.Now().Add(-100 * time.Hour)
	assert.Equal(t, PlanColdOnly, r.PlanFor(record.Filter{Start: &old, End: &oldEnd}))

	straddleStart := time.Now().Add(-200 * time.Hour)
	straddleEnd := time.Now()
	assert.Equal(t, PlanBoth, r.PlanFor(record.Filter{Start: &straddleStart, End: &straddleEnd}))
}

func TestQueryMergePrefersHotOnDuplicate(t *testing.T) {
	r, hot, cold := newTestRouter(t, true)
	ctx := context.Background()

	ts := time.Now().Add(-time.Minute).UTC()
	cid := "11111111-1111-1111-1111-111111111111"

	coldVersion := record.Record{CorrelationID: cid, Timestamp: ts, APIName: "stale", ServiceName: "svc", LogLevel: record.LevelInfo, IngestedAt: ts}
	require.NoError(t, cold.UpsertBatch(ctx, []record.Record{coldVersion}))

	hotVersion := coldVersion
	hotVersion.APIName = "fresh"
	require.NoError(t, hot.Put(cid, hotVersion))

	res, err := r.Query(ctx, record.Filter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "fresh", res.Logs[0].APIName, "hot entry must win on duplicate correlation_id")
}

func TestQueryPaginationAndOrdering(t *testing.T) {
	r, _, cold := newTestRouter(t, true)
	ctx := context.Background()
	base := time.Now().Add(-10 * time.Hour).UTC()

	var recs []record.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, record.Record{
			CorrelationID: "aaaaaaaa-aaaa-aaaa-aaaa-00000000000" + string(rune('0'+i)),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			APIName:       "a", ServiceName: "b", LogLevel: record.LevelInfo,
			IngestedAt: base,
		})
	}
	require.NoError(t, cold.UpsertBatch(ctx, recs))

	res, err := r.Query(ctx, record.Filter{}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	require.Len(t, res.Logs, 2)
	assert.True(t, res.Logs[0].Timestamp.After(res.Logs[1].Timestamp))
}

func TestQueryColdOnlyUsesAccurateTotalAndOffset(t *testing.T) {
	r, _, cold := newTestRouter(t, true)
	ctx := context.Background()
	// entirely before the hot cutoff, so PlanFor resolves to PlanColdOnly.
	base := time.Now().Add(-500 * time.Hour).UTC()
	end := time.Now().Add(-490 * time.Hour).UTC()

	var recs []record.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, record.Record{
			CorrelationID: "bbbbbbbb-bbbb-bbbb-bbbb-00000000000" + string(rune('0'+i)),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			APIName:       "a", ServiceName: "b", LogLevel: record.LevelInfo,
			IngestedAt: base,
		})
	}
	require.NoError(t, cold.UpsertBatch(ctx, recs))

	filter := record.Filter{Start: &base, End: &end}
	require.Equal(t, PlanColdOnly, r.PlanFor(filter))

	res, err := r.Query(ctx, filter, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total, "total must be the full match count, not just the fetched page size")
	require.Len(t, res.Logs, 2)

	// an offset past the first page but still within the real total must
	// return the remaining rows, not an empty page.
	res, err = r.Query(ctx, filter, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Len(t, res.Logs, 1)
}

func TestQueryDegradesOnColdFailure(t *testing.T) {
	r, hot, cold := newTestRouter(t, true)
	cold.Close() // force the cold query to fail

	require.NoError(t, hot.Put("x", record.Record{CorrelationID: "x", Timestamp: time.Now()}))

	res, err := r.Query(context.Background(), record.Filter{}, 0, 10)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.True(t, res.FromCache)
}
