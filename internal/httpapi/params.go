package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sastik/logserver/internal/record"
)

func filterFromQuery(r *http.Request) (record.Filter, error) {
	q := r.URL.Query()
	f := record.Filter{
		CorrelationID: q.Get("correlation_id"),
		APIName:       q.Get("api_name"),
		ServiceName:   q.Get("service_name"),
		LogLevel:      q.Get("log_level"),
		SessionID:     q.Get("session_id"),
		HasError:      q.Get("has_error"),
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return record.Filter{}, ErrMalformedRequest("start_date must be RFC3339")
		}
		f.Start = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return record.Filter{}, ErrMalformedRequest("end_date must be RFC3339")
		}
		f.End = &t
	}
	return f, nil
}

func intParam(r *http.Request, name string, def, max int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, ErrMalformedRequest(name + " must be a non-negative integer")
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func windowFromQuery(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.Add(-7 * 24 * time.Hour)
	end := now
	q := r.URL.Query()
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, ErrMalformedRequest("start_date must be RFC3339")
		}
		start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, ErrMalformedRequest("end_date must be RFC3339")
		}
		end = t
	}
	return start, end, nil
}
