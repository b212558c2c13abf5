package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/service"
)

type SlotHandler struct {
	gate *service.GateService
	svc  *service.EngineService
}

func NewSlotHandler(gate *service.GateService, svc *service.EngineService) *SlotHandler {
	return &SlotHandler{gate: gate, svc: svc}
}

// Query gates a single slot lookup.
func (h *SlotHandler) Query(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	slot := chi.URLParam(r, "slot")

	answer, err := h.gate.QuerySlot(r.Context(), threadID, slot)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrThreadIDMissing),
			errors.Is(err, service.ErrSlotMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to query slot")
		}
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// Ask infers the relevant slots from a free-text question and gates each.
func (h *SlotHandler) Ask(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	answers, err := h.gate.Query(r.Context(), threadID, q)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to answer query")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"answers": answers})
}

// History returns every item ever recorded for the slot, oldest first.
// An optional ?status= filter narrows to one lifecycle state.
func (h *SlotHandler) History(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	slot := chi.URLParam(r, "slot")

	status := r.URL.Query().Get("status")
	if status != "" && !domain.ValidMemoryStatus(status) {
		writeError(w, http.StatusBadRequest, "status must be active, superseded, or deprecated")
		return
	}

	items, err := h.svc.History(r.Context(), threadID, slot)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrThreadIDMissing),
			errors.Is(err, service.ErrSlotMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to load history")
		}
		return
	}

	if status != "" {
		filtered := items[:0]
		for _, it := range items {
			if it.Status == domain.MemoryStatus(status) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
