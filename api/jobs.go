package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/offload/tasks"
)

const queuedStatus = "Task queued successfully"

func statusURL(id string) string { return "/task-status/" + id + "/" }

// intParam reads an integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

func (s *Server) handleProcessDataset(w http.ResponseWriter, r *http.Request) {
	size, err := intParam(r, "size", 100)
	if err == nil && size < 0 {
		err = fmt.Errorf("%w: size must not be negative", errBadRequest)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	j, err := tasks.SubmitDataset(r.Context(), s.eng, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := j.ID.String()
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"message":          "Dataset processing started in background",
		"task_id":          id,
		"status":           queuedStatus,
		"check_status_url": statusURL(id),
	})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	reportType := r.URL.Query().Get("type")
	if reportType == "" {
		reportType = "sales"
	}
	userID, err := intParam(r, "user_id", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	j, err := tasks.SubmitReport(r.Context(), s.eng, reportType, userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := j.ID.String()
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"message":          "Report generation started in background",
		"task_id":          id,
		"report_type":      reportType,
		"status":           queuedStatus,
		"check_status_url": statusURL(id),
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, st)
}

func (s *Server) handleJobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.eng.Counts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, counts)
}

func (s *Server) handleCrons(w http.ResponseWriter, r *http.Request) {
	entries, err := s.eng.Store().ListCrons(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"crons": entries, "count": len(entries)})
}
