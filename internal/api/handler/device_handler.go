package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gt06gateway/internal/broadcast"
	"gt06gateway/internal/core/model"
	"gt06gateway/internal/protocol/gt06"
	"gt06gateway/internal/protocol/server"
)

// Gateway is the part of the connection manager exposed over HTTP
type Gateway interface {
	SendCommand(ctx context.Context, cmd *model.Command) (string, error)
	Sessions() []model.DeviceSession
	Session(deviceID string) (model.DeviceSession, bool)
	Stats() server.Stats
}

type DeviceHandler struct {
	gateway Gateway
	log     zerolog.Logger
}

func NewDeviceHandler(gateway Gateway, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		gateway: gateway,
		log:     logger.With().Str("component", "device_handler").Logger(),
	}
}

// SendCommand handles POST /devices/{id}/commands
func (h *DeviceHandler) SendCommand(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req broadcast.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "Command type required", http.StatusBadRequest)
		return
	}

	cmd := model.NewCommand(deviceID, req.Type, req.Parameters)
	status, err := h.gateway.SendCommand(r.Context(), cmd)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, gt06.ErrUnknownCommand), errors.Is(err, gt06.ErrInvalidParameter):
			code = http.StatusBadRequest
		case errors.Is(err, server.ErrDeviceOffline):
			code = http.StatusConflict
		default:
			h.log.Error().Err(err).Str("device_id", deviceID).Str("command", req.Type).Msg("Command failed")
		}
		writeJSON(w, code, broadcast.CommandReply{Status: model.CommandStatusError, CommandID: cmd.ID, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, broadcast.CommandReply{Status: status, CommandID: cmd.ID})
}

// Sessions handles GET /sessions
func (h *DeviceHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gateway.Sessions())
}

// Session handles GET /sessions/{id}
func (h *DeviceHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := h.gateway.Session(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Device not connected", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
