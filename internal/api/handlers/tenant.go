package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cubomagico/memoria/internal/api/middleware"
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/google/uuid"
)

const apiKeyPrefix = "mem_"

type TenantHandler struct {
	store domain.TenantStore
}

func NewTenantHandler(store domain.TenantStore) *TenantHandler {
	return &TenantHandler{store: store}
}

type createTenantRequest struct {
	Name       string      `json:"name"`
	ProjectIDs []uuid.UUID `json:"project_ids"`
}

type createTenantResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ProjectIDs []uuid.UUID `json:"project_ids"`
	APIKey     string      `json:"api_key"`
}

// Create registers a tenant, optionally bound to a fixed set of projects,
// and returns its API key. The key is shown once; only its hash is stored.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenant, err := domain.NewTenant(req.Name, req.ProjectIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	tenant.APIKeyHash = middleware.HashAPIKey(apiKey)

	if err := h.store.Create(r.Context(), tenant); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "tenant already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	writeJSON(w, http.StatusCreated, createTenantResponse{
		ID:         tenant.ID.String(),
		Name:       tenant.Name,
		ProjectIDs: tenant.ProjectIDs,
		APIKey:     apiKey,
	})
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}
