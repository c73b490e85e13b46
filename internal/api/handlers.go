package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ltpexport/internal/exporter"
	"ltpexport/internal/logging"
	"ltpexport/internal/metadata"
	"ltpexport/internal/services"
)

const maxEventBytes = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", System: s.system}
	if s.worker != nil {
		st := s.worker.Status()
		resp.Worker = &st
	}
	if s.queueSvc != nil {
		stats, err := s.queueSvc.Stats(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Queue = &stats
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if s.queueSvc == nil {
		s.writeJSON(w, http.StatusOK, QueueListResponse{Items: []QueueItem{}})
		return
	}
	items, err := s.queueSvc.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.queueSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, QueueListResponse{Items: items, Stats: stats})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid event body: "+err.Error())
		return
	}
	mode, ok := modeForEvent(req.Event)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "event must be create, update or delete")
		return
	}
	s.export(w, r, req.EntityType, req.UUID, mode)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	mode := metadata.UpdateCreate
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("mode"))) {
	case "", "create", "update":
	case "delete":
		mode = metadata.UpdateDelete
	default:
		s.writeError(w, http.StatusBadRequest, "mode must be create or delete")
		return
	}
	s.export(w, r, chi.URLParam(r, "type"), chi.URLParam(r, "uuid"), mode)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, entityType, id string, mode metadata.UpdateMode) {
	entityType = strings.TrimSpace(entityType)
	id = strings.TrimSpace(id)
	if entityType == "" || id == "" {
		s.writeError(w, http.StatusBadRequest, "entity_type and uuid are required")
		return
	}
	ctx := r.Context()
	e, err := s.entities.Load(ctx, entityType, id)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	outcome, err := s.exporter.UpdateEntity(ctx, e, mode)
	if err != nil {
		logging.WithContext(ctx, s.logger).Warn("export request failed",
			logging.String("entity_type", entityType),
			logging.String("uuid", id),
			logging.Error(err),
			logging.ErrorKind(err),
		)
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if outcome == exporter.OutcomeQueued {
		status = http.StatusAccepted
	}
	reqID, _ := services.RequestIDFromContext(ctx)
	s.writeJSON(w, status, ExportResponse{
		Outcome:   string(outcome),
		Directory: s.exporter.Directory(e),
		RequestID: reqID,
	})
}

func modeForEvent(event string) (metadata.UpdateMode, bool) {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "create", "update":
		return metadata.UpdateCreate, true
	case "delete":
		return metadata.UpdateDelete, true
	default:
		return 0, false
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrLockTimeout):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
