package record

import "time"

// Filter is a conjunction of equality constraints over indexed attributes,
// plus an optional time range. It is shared by the hot store's in-process
// predicate evaluation and the cold store's generated SQL WHERE clause, so
// that "for every returned record, all filter predicates evaluate true"
// (spec.md §8 property 6) holds identically in both tiers.
type Filter struct {
	CorrelationID string
	APIName       string
	ServiceName   string
	LogLevel      string
	SessionID     string
	HasError      string // explicit "True"/"False"; "" means unconstrained

	Start *time.Time
	End   *time.Time
}

// Matches evaluates the filter against rec using explicit equality only —
// has_error is a tri-valued string and must never be checked for Go
// truthiness (spec.md §9).
func (f Filter) Matches(rec Record) bool {
	if f.CorrelationID != "" && rec.CorrelationID != f.CorrelationID {
		return false
	}
	if f.APIName != "" && rec.APIName != f.APIName {
		return false
	}
	if f.ServiceName != "" && rec.ServiceName != f.ServiceName {
		return false
	}
	if f.LogLevel != "" && string(rec.LogLevel) != f.LogLevel {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	if f.HasError != "" && string(rec.HasError) != f.HasError {
		return false
	}
	if f.Start != nil && rec.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && rec.Timestamp.After(*f.End) {
		return false
	}
	return true
}

// HasTimeRange reports whether the filter constrains the query to a
// bounded time window, used by the query router's tier-planning heuristic
// (spec.md §4.8).
func (f Filter) HasTimeRange() bool {
	return f.Start != nil || f.End != nil
}
