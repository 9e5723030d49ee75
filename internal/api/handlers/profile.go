package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cubomagico/memoria/internal/domain"
)

// ProfileBuilder projects contacts into cognitive profiles.
// *service.ProfileService satisfies it.
type ProfileBuilder interface {
	Rebuild(ctx context.Context, scope domain.ContactScope) (*domain.CognitiveProfile, error)
	Lookalikes(ctx context.Context, scope domain.ContactScope, limit int) ([]domain.ProfileMatch, error)
}

type ProfileHandler struct {
	svc ProfileBuilder
}

func NewProfileHandler(svc ProfileBuilder) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// Get always recomputes; the stored snapshot only feeds lookalike search.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := contactScope(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Rebuild(r.Context(), scope)
	if err != nil {
		writeServiceError(w, err, "failed to build profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type lookalikesResponse struct {
	ContactID string                `json:"contact_id"`
	Matches   []domain.ProfileMatch `json:"matches"`
}

func (h *ProfileHandler) Lookalikes(w http.ResponseWriter, r *http.Request) {
	scope, ok := contactScope(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	matches, err := h.svc.Lookalikes(r.Context(), scope, limit)
	if err != nil {
		writeServiceError(w, err, "failed to find lookalikes")
		return
	}
	writeJSON(w, http.StatusOK, lookalikesResponse{ContactID: scope.ContactID.String(), Matches: matches})
}
