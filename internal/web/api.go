package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mtzanidakis/parlm/internal/orchestrator"
	"github.com/mtzanidakis/parlm/internal/schedule"
	"github.com/mtzanidakis/parlm/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/execute", s.execute)

	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)

	mux.HandleFunc("GET /api/schedules", s.listSchedules)
	mux.HandleFunc("POST /api/schedules", s.createSchedule)
	mux.HandleFunc("PUT /api/schedules/{id}/status", s.updateScheduleStatus)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.deleteSchedule)

	mux.HandleFunc("GET /api/health", s.health)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "read request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req, err := orchestrator.DecodePayload(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.orch.Execute(r.Context(), req)
	if err != nil {
		jsonError(w, err.Error(), executeStatus(err))
		return
	}

	if r.URL.Query().Get("envelope") == "1" {
		jsonResponse(w, res.Completion())
		return
	}
	jsonResponse(w, res)
}

// executeStatus maps orchestration failures to HTTP statuses.
func executeStatus(err error) int {
	var verr *orchestrator.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	var perr *orchestrator.ProcessingError
	var derr *orchestrator.DecisionMakerError
	if errors.As(err, &perr) || errors.As(err, &derr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, run)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	scheduled, err := s.store.ListScheduledRequests()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(scheduled))
	for _, sr := range scheduled {
		entry := map[string]any{
			"id":          sr.ID,
			"name":        sr.Name,
			"schedule":    sr.Schedule,
			"status":      sr.Status,
			"next_run_at": sr.NextRunAt,
			"last_run_at": sr.LastRunAt,
			"last_status": sr.LastStatus,
		}
		if sched, err := schedule.Parse(sr.Schedule); err == nil {
			entry["describe"] = sched.Describe()
		}
		out = append(out, entry)
	}
	jsonResponse(w, out)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string               `json:"name"`
		Schedule string               `json:"schedule"`
		Request  orchestrator.Payload `json:"request"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	sched, err := schedule.Parse(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	encoded, err := sched.Encode()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Reject undispatchable payloads up front.
	if _, err := body.Request.ToRequest(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	request, err := json.Marshal(body.Request)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	sr := &store.ScheduledRequest{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Schedule:  encoded,
		Request:   request,
		Status:    "active",
		NextRunAt: sched.Next(time.Now()),
	}
	if err := s.store.SaveScheduledRequest(sr); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"id": sr.ID, "status": sr.Status})
}

func (s *Server) updateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Status != "active" && body.Status != "paused" {
		jsonError(w, "status must be active or paused", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	sr, err := s.store.GetScheduledRequest(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sr == nil {
		jsonError(w, "schedule not found", http.StatusNotFound)
		return
	}

	if err := s.store.UpdateScheduledStatus(id, body.Status); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"id": id, "status": body.Status})
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScheduledRequest(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
