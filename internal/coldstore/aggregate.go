package coldstore

import (
	"context"
	"time"
)

// DailyCount is one bucket of the daily time series rollup.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// ErrorBucket groups error counts by api_name + service_name.
type ErrorBucket struct {
	APIName     string `json:"apiName"`
	ServiceName string `json:"serviceName"`
	ErrorCount  int64  `json:"errorCount"`
	TotalCount  int64  `json:"totalCount"`
}

// SlowURL is one row of the top-N slowest URLs rollup.
type SlowURL struct {
	URL           string  `json:"url"`
	ServiceName   string  `json:"serviceName"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	RequestCount  int64   `json:"requestCount"`
}

// HeatCell is one (hour, day-of-week) bucket of the URL heat map.
type HeatCell struct {
	Hour      int   `json:"hour"`
	DayOfWeek int   `json:"dayOfWeek"` // 0=Sunday, per time.Weekday
	Count     int64 `json:"count"`
}

// FilterOptions lists the distinct values currently present for each
// indexed attribute, used to populate query UI dropdowns.
type FilterOptions struct {
	APINames     []string `json:"apiNames"`
	ServiceNames []string `json:"serviceNames"`
	LogLevels    []string `json:"logLevels"`
	SessionIDs   []string `json:"sessionIds"`
}

// Overview summarizes volume and error rate over [start, end).
type Overview struct {
	TotalCount int64   `json:"totalCount"`
	ErrorCount int64   `json:"errorCount"`
	ErrorRate  float64 `json:"errorRate"`
}

func (s *Store) Overview(ctx context.Context, start, end time.Time) (Overview, error) {
	var o Overview
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN has_error = 'True' THEN 1 ELSE 0 END), 0)
		FROM log_entries WHERE timestamp >= ? AND timestamp < ?`, start, end,
	).Scan(&o.TotalCount, &o.ErrorCount)
	if err != nil {
		return Overview{}, err
	}
	o.ErrorRate = ratio(o.ErrorCount, o.TotalCount)
	return o, nil
}

// AvgDuration computes the mean duration_ms over non-null values in
// [start, end), returning 0 (not NaN) when no record has a duration.
func (s *Store) AvgDuration(ctx context.Context, start, end time.Time) (float64, error) {
	var avg float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(duration_ms), 0)
		FROM log_entries
		WHERE timestamp >= ? AND timestamp < ? AND duration_ms IS NOT NULL`, start, end,
	).Scan(&avg)
	return avg, err
}

// DailyTimeSeries buckets counts by calendar day over [start, end).
func (s *Store) DailyTimeSeries(ctx context.Context, start, end time.Time) ([]DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date(timestamp) AS day, COUNT(*)
		FROM log_entries
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY day ORDER BY day ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ErrorDistribution groups errors by api_name/service_name over [start, end).
func (s *Store) ErrorDistribution(ctx context.Context, start, end time.Time) ([]ErrorBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT api_name, service_name,
		       COALESCE(SUM(CASE WHEN has_error = 'True' THEN 1 ELSE 0 END), 0) AS errs,
		       COUNT(*) AS total
		FROM log_entries
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY api_name, service_name
		HAVING errs > 0
		ORDER BY errs DESC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ErrorBucket
	for rows.Next() {
		var b ErrorBucket
		if err := rows.Scan(&b.APIName, &b.ServiceName, &b.ErrorCount, &b.TotalCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// TopSlowestURLs returns the n URLs with the highest average duration over
// [start, end), along with the request count each average is based on
// (spec.md §4.9 / SPEC_FULL.md §4.9+).
func (s *Store) TopSlowestURLs(ctx context.Context, start, end time.Time, n int) ([]SlowURL, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, service_name, AVG(duration_ms) AS avg_ms, COUNT(*)
		FROM log_entries
		WHERE timestamp >= ? AND timestamp < ? AND duration_ms IS NOT NULL AND url != ''
		GROUP BY url, service_name
		ORDER BY avg_ms DESC
		LIMIT ?`, start, end, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlowURL
	for rows.Next() {
		var u SlowURL
		if err := rows.Scan(&u.URL, &u.ServiceName, &u.AvgDurationMs, &u.RequestCount); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// URLHeatMap buckets request volume by hour-of-day and day-of-week over
// [start, end) (SPEC_FULL.md §4.9+, grounded in original_source's
// url_heat_map rollup).
func (s *Store) URLHeatMap(ctx context.Context, start, end time.Time) ([]HeatCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(strftime('%H', timestamp) AS INTEGER) AS hr,
		       CAST(strftime('%w', timestamp) AS INTEGER) AS dow,
		       COUNT(*)
		FROM log_entries
		WHERE timestamp >= ? AND timestamp < ? AND url != ''
		GROUP BY hr, dow
		ORDER BY dow, hr`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HeatCell
	for rows.Next() {
		var c HeatCell
		if err := rows.Scan(&c.Hour, &c.DayOfWeek, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FilterOptionsFor returns the distinct values presently stored for each
// indexed attribute (SPEC_FULL.md §4.9+).
func (s *Store) FilterOptionsFor(ctx context.Context) (FilterOptions, error) {
	var fo FilterOptions
	var err error
	if fo.APINames, err = s.distinct(ctx, "api_name"); err != nil {
		return FilterOptions{}, err
	}
	if fo.ServiceNames, err = s.distinct(ctx, "service_name"); err != nil {
		return FilterOptions{}, err
	}
	if fo.LogLevels, err = s.distinct(ctx, "log_level"); err != nil {
		return FilterOptions{}, err
	}
	if fo.SessionIDs, err = s.distinct(ctx, "session_id"); err != nil {
		return FilterOptions{}, err
	}
	return fo, nil
}

// distinct is only ever called with column names this package controls
// (never user input), so building the query with fmt-free concatenation is
// safe from injection.
func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT `+column+` FROM log_entries WHERE `+column+` IS NOT NULL AND `+column+` != '' ORDER BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ratio computes a percentage rounded half-up to 2 decimals, returning 0
// (never NaN) when total is 0 (SPEC_FULL.md numeric semantics).
func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(part) / float64(total) * 100
	return float64(int64(pct*100+0.5)) / 100
}
