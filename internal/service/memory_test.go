package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryServiceLockCycle(t *testing.T) {
	ms := newFakeMemoryStore()
	tenantID := uuid.New()
	id := ms.seed(domain.Memory{TenantID: tenantID, Type: domain.MemoryTypeValue, Confidence: 0.6})
	svc := NewMemoryService(ms, &fakeContradictionStore{}, zap.NewNop())

	m, err := svc.SetLocked(context.Background(), id, tenantID, true)
	require.NoError(t, err)
	assert.True(t, m.IsLocked)

	m, err = svc.SetLocked(context.Background(), id, tenantID, false)
	require.NoError(t, err)
	assert.False(t, m.IsLocked)
}

func TestMemoryServiceRefusesToLockContradicted(t *testing.T) {
	ms := newFakeMemoryStore()
	tenantID := uuid.New()
	winner := ms.seed(domain.Memory{TenantID: tenantID, Type: domain.MemoryTypeHabit})
	old := ms.seed(domain.Memory{TenantID: tenantID, Type: domain.MemoryTypeHabit, IsContradicted: true, ContradictedBy: &winner})
	svc := NewMemoryService(ms, &fakeContradictionStore{}, zap.NewNop())

	_, err := svc.SetLocked(context.Background(), old, tenantID, true)
	assert.True(t, errors.Is(err, ErrMemoryContradicted))
	stored := ms.get(old)
	assert.False(t, stored.IsLocked)
	assert.True(t, stored.IsContradicted)

	// Unlocking is always allowed.
	_, err = svc.SetLocked(context.Background(), old, tenantID, false)
	require.NoError(t, err)
}

func TestMemoryServiceTenantIsolation(t *testing.T) {
	ms := newFakeMemoryStore()
	id := ms.seed(domain.Memory{TenantID: uuid.New(), Type: domain.MemoryTypeValue})
	svc := NewMemoryService(ms, &fakeContradictionStore{}, zap.NewNop())
	other := uuid.New()

	_, err := svc.GetByID(context.Background(), id, other)
	assert.True(t, errors.Is(err, ErrMemoryNotFound))

	_, err = svc.SetLocked(context.Background(), id, other, true)
	assert.True(t, errors.Is(err, ErrMemoryNotFound))

	_, err = svc.Contradictions(context.Background(), id, other)
	assert.True(t, errors.Is(err, ErrMemoryNotFound))
}

func TestMemoryServiceContradictions(t *testing.T) {
	ms := newFakeMemoryStore()
	cs := &fakeContradictionStore{}
	tenantID := uuid.New()
	oldID := ms.seed(domain.Memory{TenantID: tenantID, Type: domain.MemoryTypeHabit})
	newID := ms.seed(domain.Memory{TenantID: tenantID, Type: domain.MemoryTypeHabit})
	require.NoError(t, cs.Create(context.Background(), &domain.ContradictionRecord{
		ExistingMemoryID: oldID, NewMemoryID: newID, Reason: "negation mismatch",
	}))
	svc := NewMemoryService(ms, cs, zap.NewNop())

	for _, id := range []uuid.UUID{oldID, newID} {
		recs, err := svc.Contradictions(context.Background(), id, tenantID)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "negation mismatch", recs[0].Reason)
	}
}

func TestMemoryServiceListWrapsStoreErrors(t *testing.T) {
	ms := new(MockMemoryStore)
	ms.On("ListByContact", mock.Anything, mock.Anything, true).Return(nil, errors.New("timeout"))
	svc := NewMemoryService(ms, &fakeContradictionStore{}, zap.NewNop())

	_, err := svc.ListByContact(context.Background(), domain.ContactScope{}, true)
	assert.True(t, errors.Is(err, ErrPersistence))
}

func TestMemoryServiceListEmpty(t *testing.T) {
	svc := NewMemoryService(newFakeMemoryStore(), &fakeContradictionStore{}, zap.NewNop())
	ms, err := svc.ListByContact(context.Background(), domain.ContactScope{ContactID: uuid.New()}, false)
	require.NoError(t, err)
	assert.NotNil(t, ms)
	assert.Empty(t, ms)
}
