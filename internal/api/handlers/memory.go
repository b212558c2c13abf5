package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mnemolabs/mnemo/internal/service"
)

type MemoryHandler struct {
	svc *service.EngineService
}

func NewMemoryHandler(svc *service.EngineService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

// TrustHistory returns the append-only audit trail of one item's trust.
func (h *MemoryHandler) TrustHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	rows, err := h.svc.TrustHistory(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnknownMemoryID) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load trust history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

type deprecateRequest struct {
	Reason string `json:"reason"`
}

// Deprecate handles a deletion request. The item is marked deprecated
// with a reason; nothing is physically removed.
func (h *MemoryHandler) Deprecate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	var req deprecateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.svc.DeprecateMemory(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, service.ErrUnknownMemoryID) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to deprecate memory")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deprecated"})
}
