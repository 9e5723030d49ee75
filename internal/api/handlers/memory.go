package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cubomagico/memoria/internal/api/middleware"
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MemoryCurator reads and pins stored memories. *service.MemoryService
// satisfies it.
type MemoryCurator interface {
	GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Memory, error)
	ListByContact(ctx context.Context, scope domain.ContactScope, includeContradicted bool) ([]domain.Memory, error)
	SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) (*domain.Memory, error)
	Contradictions(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) ([]domain.ContradictionRecord, error)
}

type MemoryHandler struct {
	svc MemoryCurator
}

func NewMemoryHandler(svc MemoryCurator) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

type listMemoriesResponse struct {
	Memories []domain.Memory `json:"memories"`
	Count    int             `json:"count"`
}

func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := contactScope(w, r)
	if !ok {
		return
	}

	includeContradicted := false
	if v := r.URL.Query().Get("include_contradicted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_contradicted must be a boolean")
			return
		}
		includeContradicted = b
	}

	memories, err := h.svc.ListByContact(r.Context(), scope, includeContradicted)
	if err != nil {
		writeServiceError(w, err, "failed to list memories")
		return
	}
	writeJSON(w, http.StatusOK, listMemoriesResponse{Memories: memories, Count: len(memories)})
}

func (h *MemoryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := memoryRef(w, r)
	if !ok {
		return
	}
	memory, err := h.svc.GetByID(r.Context(), id, tenant)
	if err != nil {
		writeServiceError(w, err, "failed to get memory")
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

func (h *MemoryHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

func (h *MemoryHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *MemoryHandler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	tenant, id, ok := memoryRef(w, r)
	if !ok {
		return
	}
	memory, err := h.svc.SetLocked(r.Context(), id, tenant, locked)
	if err != nil {
		writeServiceError(w, err, "failed to update memory lock")
		return
	}
	writeJSON(w, http.StatusOK, memory)
}

func (h *MemoryHandler) Contradictions(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := memoryRef(w, r)
	if !ok {
		return
	}
	records, err := h.svc.Contradictions(r.Context(), id, tenant)
	if err != nil {
		writeServiceError(w, err, "failed to list contradictions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contradictions": records})
}

func memoryRef(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return uuid.Nil, uuid.Nil, false
	}
	return tenant.ID, id, true
}
