package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxSignalBytes = 1 << 20

// SignalService runs extraction passes. *service.ExtractionService
// satisfies it.
type SignalService interface {
	Process(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error)
	Preview(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error)
}

type SignalHandler struct {
	svc SignalService
}

func NewSignalHandler(svc SignalService) *SignalHandler {
	return &SignalHandler{svc: svc}
}

// Apply extracts memories from the posted event and persists them.
func (h *SignalHandler) Apply(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.svc.Process, "failed to process signal")
}

// Preview returns what Apply would do without writing anything.
func (h *SignalHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.svc.Preview, "failed to preview signal")
}

type passFunc func(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error)

func (h *SignalHandler) run(w http.ResponseWriter, r *http.Request, pass passFunc, fallback string) {
	scope, ok := contactScope(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignalBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel := domain.Channel(chi.URLParam(r, "channel"))
	ev, err := domain.DecodeEventFor(channel, body, scope.ContactID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := pass(r.Context(), scope.TenantID, scope.ProjectID, ev)
	if err != nil {
		writeServiceError(w, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
