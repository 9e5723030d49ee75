package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxTenantNameRunes = 100

var ErrInvalidTenant = errors.New("invalid tenant")

// Tenant is an account whose API key scopes every memory and profile.
// ProjectIDs lists the projects the key may address; an empty list leaves
// the tenant open to any project id.
type Tenant struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	ProjectIDs []uuid.UUID `json:"project_ids"`
	APIKeyHash string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewTenant trims the name and checks the project list for nil or repeated
// ids.
func NewTenant(name string, projectIDs []uuid.UUID) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidTenant)
	}
	if utf8.RuneCountInString(name) > maxTenantNameRunes {
		return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidTenant, maxTenantNameRunes)
	}
	seen := make(map[uuid.UUID]bool, len(projectIDs))
	for _, id := range projectIDs {
		if id == uuid.Nil {
			return nil, fmt.Errorf("%w: project id must not be nil", ErrInvalidTenant)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate project id %s", ErrInvalidTenant, id)
		}
		seen[id] = true
	}
	if projectIDs == nil {
		projectIDs = []uuid.UUID{}
	}
	return &Tenant{Name: name, ProjectIDs: projectIDs}, nil
}

// OwnsProject reports whether the tenant may read or write projectID.
func (t *Tenant) OwnsProject(projectID uuid.UUID) bool {
	if len(t.ProjectIDs) == 0 {
		return true
	}
	for _, id := range t.ProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}
