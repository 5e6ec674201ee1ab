package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dgnsrekt/readaloud-go/internal/document"
	"github.com/dgnsrekt/readaloud-go/internal/session"
	"github.com/dgnsrekt/readaloud-go/internal/tts"
)

// OpenRequest represents the request body for /v1/open.
type OpenRequest struct {
	Path string `json:"path"`
}

// StartRequest represents the request body for /v1/start. With no
// position and no resume, reading starts at the beginning.
type StartRequest struct {
	Position  *int64 `json:"position,omitempty"`
	Resume    bool   `json:"resume,omitempty"`
	LineStart bool   `json:"line_start,omitempty"`
}

// PositionRequest represents the request body for PUT /v1/position.
type PositionRequest struct {
	Position *int64 `json:"position"`
}

// VoiceUpdateRequest represents the request body for PUT /v1/voice.
// Absent fields keep their stored values.
type VoiceUpdateRequest struct {
	Rate       *float64 `json:"rate,omitempty"`
	Pitch      *float64 `json:"pitch,omitempty"`
	Volume     *float64 `json:"volume,omitempty"`
	VoiceModel *string  `json:"voice_model,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeControlError maps controller errors to HTTP statuses.
func (s *Server) writeControlError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrNoDocument):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrStopTimeout):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, document.ErrFileAccess):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tts.ErrInvalidVoiceParams):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("control request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus handles GET /v1/status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleOpen handles POST /v1/open requests.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode open request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := s.ctrl.Open(req.Path); err != nil {
		s.writeControlError(w, "open", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStart handles POST /v1/start requests. An empty body starts at
// the beginning.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("failed to decode start request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var pos int64
	switch {
	case req.Position != nil:
		pos = *req.Position
	case req.Resume:
		pos = s.ctrl.CurrentPosition()
	}
	if req.LineStart {
		if doc := s.ctrl.Document(); doc != nil {
			snapped, err := session.LineStart(doc, pos)
			if err != nil {
				s.writeControlError(w, "start", err)
				return
			}
			pos = snapped
		}
	}

	if err := s.ctrl.Start(pos); err != nil {
		s.writeControlError(w, "start", err)
		return
	}

	s.logger.Info("reading started via API", "position", pos)
	writeJSON(w, http.StatusAccepted, s.ctrl.Status())
}

// handlePause handles POST /v1/pause requests.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Pause(); err != nil {
		s.writeControlError(w, "pause", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleStop handles POST /v1/stop requests.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		s.writeControlError(w, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleSetPosition handles PUT /v1/position requests.
func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode position request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}

	if err := s.ctrl.SetPosition(*req.Position); err != nil {
		s.writeControlError(w, "set position", err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

// handleGetVoice handles GET /v1/voice requests.
func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	params, err := s.store.VoiceParams()
	if err != nil {
		s.writeControlError(w, "load voice", err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// handleUpdateVoice handles PUT /v1/voice requests. Changes apply from
// the next sentence of an active session.
func (s *Server) handleUpdateVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode voice request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params, err := s.store.VoiceParams()
	if err != nil {
		s.writeControlError(w, "load voice", err)
		return
	}
	params = req.apply(params)

	if err := s.store.UpdateVoiceParams(params); err != nil {
		s.writeControlError(w, "update voice", err)
		return
	}

	s.logger.Info("voice parameters updated",
		"rate", params.Rate,
		"pitch", params.Pitch,
		"volume", params.Volume,
		"voice_model", params.VoiceModel,
	)
	writeJSON(w, http.StatusOK, params)
}

func (req VoiceUpdateRequest) apply(p tts.VoiceParams) tts.VoiceParams {
	if req.Rate != nil {
		p.Rate = *req.Rate
	}
	if req.Pitch != nil {
		p.Pitch = *req.Pitch
	}
	if req.Volume != nil {
		p.Volume = *req.Volume
	}
	if req.VoiceModel != nil {
		p.VoiceModel = *req.VoiceModel
	}
	return p
}
