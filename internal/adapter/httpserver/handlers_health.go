package httpserver

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler probes DB reachability, reporting ok or degraded.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		httpStatus := http.StatusOK
		var details string
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
				details = err.Error()
			}
		}

		resp := map[string]any{"status": status}
		if details != "" {
			resp["details"] = details
		}
		writeJSON(w, httpStatus, resp)
	}
}
