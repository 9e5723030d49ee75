package handlers

import (
	"context"
	"sync"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/service"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockSignalService struct {
	mock.Mock
}

func (m *MockSignalService) Process(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error) {
	args := m.Called(ctx, tenantID, projectID, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

func (m *MockSignalService) Preview(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*service.Outcome, error) {
	args := m.Called(ctx, tenantID, projectID, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

type MockMemoryCurator struct {
	mock.Mock
}

func (m *MockMemoryCurator) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Memory, error) {
	args := m.Called(ctx, id, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Memory), args.Error(1)
}

func (m *MockMemoryCurator) ListByContact(ctx context.Context, scope domain.ContactScope, includeContradicted bool) ([]domain.Memory, error) {
	args := m.Called(ctx, scope, includeContradicted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Memory), args.Error(1)
}

func (m *MockMemoryCurator) SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) (*domain.Memory, error) {
	args := m.Called(ctx, id, tenantID, locked)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Memory), args.Error(1)
}

func (m *MockMemoryCurator) Contradictions(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) ([]domain.ContradictionRecord, error) {
	args := m.Called(ctx, id, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ContradictionRecord), args.Error(1)
}

type MockProfileBuilder struct {
	mock.Mock
}

func (m *MockProfileBuilder) Rebuild(ctx context.Context, scope domain.ContactScope) (*domain.CognitiveProfile, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CognitiveProfile), args.Error(1)
}

func (m *MockProfileBuilder) Lookalikes(ctx context.Context, scope domain.ContactScope, limit int) ([]domain.ProfileMatch, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProfileMatch), args.Error(1)
}

// fakeTenantStore keys tenants by API key hash.
type fakeTenantStore struct {
	mu     sync.Mutex
	byHash map[string]*domain.Tenant
	names  map[string]bool
}

func newFakeTenantStore() *fakeTenantStore {
	return &fakeTenantStore{byHash: map[string]*domain.Tenant{}, names: map[string]bool{}}
}

func (f *fakeTenantStore) Create(ctx context.Context, t *domain.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names[t.Name] {
		return store.ErrConflict
	}
	t.ID = uuid.New()
	f.names[t.Name] = true
	cp := *t
	f.byHash[t.APIKeyHash] = &cp
	return nil
}

func (f *fakeTenantStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byHash[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}
