package handlers

import (
	"net/http"

	"github.com/mnemolabs/mnemo/internal/service"
)

type MaintenanceHandler struct {
	decay *service.DecayService
}

func NewMaintenanceHandler(decay *service.DecayService) *MaintenanceHandler {
	return &MaintenanceHandler{decay: decay}
}

// TriggerDecay runs a trust decay sweep immediately instead of waiting
// for the next tick.
func (h *MaintenanceHandler) TriggerDecay(w http.ResponseWriter, r *http.Request) {
	result := h.decay.RunSweep(r.Context())
	writeJSON(w, http.StatusOK, result)
}
