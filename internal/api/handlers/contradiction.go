package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/service"
)

type ContradictionHandler struct {
	svc *service.EngineService
}

func NewContradictionHandler(svc *service.EngineService) *ContradictionHandler {
	return &ContradictionHandler{svc: svc}
}

func (h *ContradictionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	entries, err := h.svc.ListOpenContradictions(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, service.ErrThreadIDMissing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list contradictions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *ContradictionHandler) Report(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	report, err := h.svc.Report(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, service.ErrThreadIDMissing) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type resolveRequest struct {
	Method string `json:"method"`
	Status string `json:"status"`
}

func (h *ContradictionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ledger entry id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.svc.ResolveContradiction(r.Context(), id,
		domain.ResolutionMethod(req.Method), domain.LedgerStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidResolutionMethod),
			errors.Is(err, service.ErrInvalidResolutionStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownLedgerEntry):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to resolve contradiction")
		}
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
