package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/service"
)

type StatementHandler struct {
	svc *service.EngineService
}

func NewStatementHandler(svc *service.EngineService) *StatementHandler {
	return &StatementHandler{svc: svc}
}

type submitStatementRequest struct {
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
	// Source defaults to "user"; external integrations set their own.
	Source string `json:"source,omitempty"`
}

type submitStatementResponse struct {
	ThreadID string                   `json:"thread_id"`
	Events   []service.StatementEvent `json:"events"`
}

func (h *StatementHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitStatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source := domain.SourceUser
	if req.Source != "" {
		if !domain.ValidSource(req.Source) {
			writeError(w, http.StatusBadRequest, service.ErrInvalidSource.Error())
			return
		}
		source = domain.Source(req.Source)
	}

	events, err := h.svc.SubmitStatementFrom(r.Context(), req.ThreadID, req.Text, source)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrThreadIDMissing),
			errors.Is(err, service.ErrStatementEmpty),
			errors.Is(err, service.ErrInvalidSource):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to process statement")
		}
		return
	}

	writeJSON(w, http.StatusOK, submitStatementResponse{
		ThreadID: req.ThreadID,
		Events:   events,
	})
}
