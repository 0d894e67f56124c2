package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sastik/logserver/internal/record"
	"github.com/sastik/logserver/internal/version"
)

func (s *Server) handleLogsQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	limit, err := intParam(r, "limit", 100, 1000)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	res, err := s.queryRt.Query(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogByID(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	if s.hot != nil {
		if rec, ok := s.hot.Get(cid); ok {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	rec, err := s.cold.Get(r.Context(), cid)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	var rec record.Record
	var err error
	if s.hot != nil {
		var ok bool
		rec, ok = s.hot.Get(cid)
		if !ok {
			rec, err = s.cold.Get(r.Context(), cid)
		}
	} else {
		rec, err = s.cold.Get(r.Context(), cid)
	}
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"correlationId": rec.CorrelationID,
		"errorMessage":  rec.ErrorMessage,
		"errorTrace":    rec.ErrorTrace,
		"hasError":      rec.HasError,
	})
}

func (s *Server) handleLogsToday(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	limit, err := intParam(r, "limit", 100, 1000)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	offset, err := intParam(r, "offset", 0, 0)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.queryRt.Query(r.Context(), record.Filter{Start: &start, End: &now}, offset, limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleErrorLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	filter.HasError = string(record.HasErrorTrue)
	offset, err := intParam(r, "offset", 0, 0)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	limit, err := intParam(r, "limit", 100, 1000)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.queryRt.Query(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	fo, err := s.agg.FilterOptions(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, fo)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	start, end, err := windowFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	o, err := s.agg.Overview(r.Context(), start, end, s.hotCutoff())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDailyTimeSeries(w http.ResponseWriter, r *http.Request) {
	start, end, err := windowFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	series, err := s.agg.DailyTimeSeries(r.Context(), start, end, s.hotCutoff())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleErrorDistribution(w http.ResponseWriter, r *http.Request) {
	start, end, err := windowFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	dist, err := s.agg.ErrorDistribution(r.Context(), start, end)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (s *Server) handleTopSlowest(w http.ResponseWriter, r *http.Request) {
	start, end, err := windowFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	n, err := intParam(r, "limit", 10, 100)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	slow, err := s.agg.TopSlowestURLs(r.Context(), start, end, n)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, slow)
}

func (s *Server) handleURLHeatMap(w http.ResponseWriter, r *http.Request) {
	start, end, err := windowFromQuery(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	cells, err := s.agg.URLHeatMap(r.Context(), start, end)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, cells)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := make(map[string]string, len(s.health))
	healthy := true
	for name, check := range s.health {
		if check(r.Context()) {
			services[name] = "healthy"
		} else {
			services[name] = "degraded"
			healthy = false
		}
	}
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"services": services,
		"version":  version.String(),
	})
}
