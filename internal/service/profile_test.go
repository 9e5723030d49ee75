package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProfileRebuildUsesFullHistory(t *testing.T) {
	ms := newFakeMemoryStore()
	ss := &fakeSignalStore{}
	ps := new(MockProfileStore)
	scope := domain.ContactScope{TenantID: uuid.New(), ProjectID: uuid.New(), ContactID: uuid.New()}

	ms.seed(domain.Memory{TenantID: scope.TenantID, ProjectID: scope.ProjectID, ContactID: scope.ContactID,
		Type: domain.MemoryTypeHabit, Confidence: 0.7, Content: domain.MemoryContent{Keywords: []string{"pix"}}})
	ms.seed(domain.Memory{TenantID: scope.TenantID, ProjectID: scope.ProjectID, ContactID: scope.ContactID,
		Type: domain.MemoryTypeHabit, Confidence: 0.5, IsContradicted: true})
	require.NoError(t, ss.Record(context.Background(), &domain.SignalRecord{
		TenantID: scope.TenantID, ProjectID: scope.ProjectID, ContactID: scope.ContactID, Channel: domain.ChannelPurchase,
	}))

	ps.On("Upsert", mock.Anything, mock.MatchedBy(func(p *domain.CognitiveProfile) bool {
		return p.ContactID == scope.ContactID && p.MemoryCount == 2 && p.ActiveMemoryCount == 1
	})).Return(nil)

	svc := NewProfileService(ms, ss, ps, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, err := svc.Rebuild(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, fixed, p.ComputedAt)
	assert.Equal(t, scope.TenantID, p.TenantID)
	assert.InDelta(t, 0.5, p.VolatilityScore, 1e-9)
	assert.Equal(t, domain.SourcePurchase, p.DominantChannel)
	assert.Equal(t, 1, p.SignalCounts[domain.SourcePurchase])
	ps.AssertExpectations(t)
}

func TestProfileRebuildEmptyContact(t *testing.T) {
	ps := new(MockProfileStore)
	ps.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	svc := NewProfileService(newFakeMemoryStore(), &fakeSignalStore{}, ps, zap.NewNop())
	scope := domain.ContactScope{TenantID: uuid.New(), ProjectID: uuid.New(), ContactID: uuid.New()}

	p, err := svc.Rebuild(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, scope.ContactID, p.ContactID)
	assert.Zero(t, p.ConfidenceScore)
}

func TestProfileLookalikesClampsLimit(t *testing.T) {
	ps := new(MockProfileStore)
	scope := domain.ContactScope{TenantID: uuid.New(), ProjectID: uuid.New(), ContactID: uuid.New()}
	match := domain.ProfileMatch{ContactID: uuid.New(), Similarity: 0.93}
	ps.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	ps.On("FindLookalikes", mock.Anything, scope, MaxLookalikeLimit).Return([]domain.ProfileMatch{match}, nil).Once()
	ps.On("FindLookalikes", mock.Anything, scope, DefaultLookalikeLimit).Return(nil, nil).Once()

	svc := NewProfileService(newFakeMemoryStore(), &fakeSignalStore{}, ps, zap.NewNop())

	got, err := svc.Lookalikes(context.Background(), scope, 5000)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProfileMatch{match}, got)

	got, err = svc.Lookalikes(context.Background(), scope, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	ps.AssertExpectations(t)
}

func TestProfileUpsertFailure(t *testing.T) {
	ps := new(MockProfileStore)
	ps.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("no vector extension"))
	svc := NewProfileService(newFakeMemoryStore(), &fakeSignalStore{}, ps, zap.NewNop())

	_, err := svc.Rebuild(context.Background(), domain.ContactScope{})
	assert.True(t, errors.Is(err, ErrPersistence))
}
