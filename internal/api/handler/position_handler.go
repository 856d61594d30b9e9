package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gt06gateway/internal/protocol/gt06"
)

type PositionHandler struct {
	lookup gt06.PositionLookup
	log    zerolog.Logger
}

func NewPositionHandler(lookup gt06.PositionLookup, logger zerolog.Logger) *PositionHandler {
	return &PositionHandler{
		lookup: lookup,
		log:    logger.With().Str("component", "position_handler").Logger(),
	}
}

// GetLastPosition handles GET /devices/{id}/position
func (h *PositionHandler) GetLastPosition(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	position, err := h.lookup.GetLastPosition(r.Context(), deviceID)
	if err != nil {
		h.log.Error().Err(err).Str("device_id", deviceID).Msg("Last position lookup failed")
		http.Error(w, "Position lookup failed", http.StatusInternalServerError)
		return
	}
	if position == nil {
		http.Error(w, "Position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, position)
}
