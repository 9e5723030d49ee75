package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cubomagico/memoria/internal/api/middleware"
	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/lock"
	"github.com/cubomagico/memoria/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps service errors to status codes. fallback is the
// message for anything unclassified, so store details never leak.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidEvent), errors.Is(err, service.ErrScopeMissing):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMemoryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrMemoryContradicted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, "contact is busy, retry later")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// contactScope reads {projectID} and {contactID} for the authenticated
// tenant. It writes the error response itself and reports false on failure.
func contactScope(w http.ResponseWriter, r *http.Request) (domain.ContactScope, bool) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return domain.ContactScope{}, false
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return domain.ContactScope{}, false
	}
	if !tenant.OwnsProject(projectID) {
		writeError(w, http.StatusNotFound, "project not found")
		return domain.ContactScope{}, false
	}
	contactID, err := uuid.Parse(chi.URLParam(r, "contactID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return domain.ContactScope{}, false
	}
	return domain.ContactScope{TenantID: tenant.ID, ProjectID: projectID, ContactID: contactID}, true
}
