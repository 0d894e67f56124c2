package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWireRequiresFields(t *testing.T) {
	_, _, err := ParseWire([]byte(`{"correlationId":"c1","apiName":"a"}`), "c1")
	assert.ErrorIs(t, err, ErrRequiredFieldMissing)
}

func TestParseWireRejectsInvalidLogLevel(t *testing.T) {
	body := `{"correlationId":"c1","timestamp":"2026-07-30T00:00:00Z","apiName":"a","serviceName":"s","logLevel":"TRACE"}`
	_, _, err := ParseWire([]byte(body), "c1")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestParseWireRejectsInvalidTimestamp(t *testing.T) {
	body := `{"correlationId":"c1","timestamp":"not-a-time","apiName":"a","serviceName":"s","logLevel":"INFO"}`
	_, _, err := ParseWire([]byte(body), "c1")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestParseWireMarkerCIDWinsOnMismatch(t *testing.T) {
	body := `{"correlationId":"body-cid","timestamp":"2026-07-30T00:00:00Z","apiName":"a","serviceName":"s","logLevel":"INFO"}`
	rec, mismatched, err := ParseWire([]byte(body), "marker-cid")
	require.NoError(t, err)
	assert.True(t, mismatched)
	assert.Equal(t, "marker-cid", rec.CorrelationID)
}

func TestParseWireKeepsOriginalTimestampString(t *testing.T) {
	body := `{"correlationId":"c1","timestamp":"2026-07-30T10:00:00+02:00","apiName":"a","serviceName":"s","logLevel":"INFO"}`
	rec, _, err := ParseWire([]byte(body), "c1")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-30T10:00:00+02:00", rec.TimestampRaw)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
}

func TestFilterMatchesHasErrorTriState(t *testing.T) {
	rec := Record{CorrelationID: "c1", HasError: HasErrorUnset}
	assert.True(t, Filter{}.Matches(rec), "unconstrained filter matches everything")
	assert.False(t, Filter{HasError: string(HasErrorTrue)}.Matches(rec), "unset has_error must not match an explicit True filter")

	rec.HasError = HasErrorTrue
	assert.True(t, Filter{HasError: string(HasErrorTrue)}.Matches(rec))
	assert.False(t, Filter{HasError: string(HasErrorFalse)}.Matches(rec))
}

func TestFilterMatchesTimeRange(t *testing.T) {
	now := time.Now()
	rec := Record{Timestamp: now}
	before := now.Add(-time.Minute)
	after := now.Add(time.Minute)

	assert.True(t, Filter{Start: &before, End: &after}.Matches(rec))
	assert.False(t, Filter{Start: &after}.Matches(rec))
	assert.False(t, Filter{End: &before}.Matches(rec))
}

func TestHasTimeRange(t *testing.T) {
	assert.False(t, Filter{}.HasTimeRange())
	now := time.Now()
	assert.True(t, Filter{Start: &now}.HasTimeRange())
	assert.True(t, Filter{End: &now}.HasTimeRange())
}
