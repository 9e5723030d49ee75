package service

import (
	"context"
	"sync"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// fakeMemoryStore implements domain.MemoryStore in memory with the same
// clamping and lock semantics as the Postgres store.
type fakeMemoryStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	rows  map[uuid.UUID]*domain.Memory
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{rows: make(map[uuid.UUID]*domain.Memory)}
}

func (f *fakeMemoryStore) Create(ctx context.Context, m *domain.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	f.rows[m.ID] = &cp
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeMemoryStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || m.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMemoryStore) ListByContact(ctx context.Context, scope domain.ContactScope, includeContradicted bool) ([]domain.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Memory
	for _, id := range f.order {
		m := f.rows[id]
		if m.TenantID != scope.TenantID || m.ProjectID != scope.ProjectID || m.ContactID != scope.ContactID {
			continue
		}
		if m.IsContradicted && !includeContradicted {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMemoryStore) Reinforce(ctx context.Context, id uuid.UUID, boost float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	m.Confidence = domain.ClampConfidence(m.Confidence + boost)
	m.ReinforcementCount++
	m.LastReinforcedAt = &now
	return nil
}

func (f *fakeMemoryStore) MarkContradicted(ctx context.Context, id uuid.UUID, by uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if m.IsLocked {
		return false, nil
	}
	m.IsContradicted = true
	m.ContradictedBy = &by
	return true, nil
}

func (f *fakeMemoryStore) SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok || m.TenantID != tenantID {
		return store.ErrNotFound
	}
	if locked && m.IsContradicted {
		return store.ErrConflict
	}
	m.IsLocked = locked
	return nil
}

func (f *fakeMemoryStore) get(id uuid.UUID) domain.Memory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeMemoryStore) seed(m domain.Memory) uuid.UUID {
	_ = f.Create(context.Background(), &m)
	return m.ID
}

type fakeContradictionStore struct {
	mu      sync.Mutex
	records []domain.ContradictionRecord
}

func (f *fakeContradictionStore) Create(ctx context.Context, c *domain.ContradictionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.DetectedAt = time.Now()
	f.records = append(f.records, *c)
	return nil
}

func (f *fakeContradictionStore) ListByMemoryID(ctx context.Context, memoryID uuid.UUID) ([]domain.ContradictionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ContradictionRecord
	for _, r := range f.records {
		if r.ExistingMemoryID == memoryID || r.NewMemoryID == memoryID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeSignalStore struct {
	mu      sync.Mutex
	records []domain.SignalRecord
}

func (f *fakeSignalStore) Record(ctx context.Context, s *domain.SignalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = uuid.New()
	s.ReceivedAt = time.Now()
	f.records = append(f.records, *s)
	return nil
}

func (f *fakeSignalStore) CountByContact(ctx context.Context, scope domain.ContactScope) (domain.SignalCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := domain.SignalCounts{}
	for _, r := range f.records {
		if r.TenantID == scope.TenantID && r.ProjectID == scope.ProjectID && r.ContactID == scope.ContactID {
			counts[r.Channel.Source()]++
		}
	}
	return counts, nil
}

// flakySignalStore fails the next failures calls to Record.
type flakySignalStore struct {
	fakeSignalStore
	failures int
	err      error
}

func (f *flakySignalStore) Record(ctx context.Context, s *domain.SignalRecord) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.fakeSignalStore.Record(ctx, s)
}

// fakeTransactor snapshots the fake stores before fn and restores them when
// fn fails, like a rolled back transaction.
type fakeTransactor struct {
	memories       *fakeMemoryStore
	contradictions *fakeContradictionStore
	signals        domain.SignalStore
	signalRows     *fakeSignalStore
}

func (f *fakeTransactor) InTx(ctx context.Context, fn func(domain.PassStores) error) error {
	f.memories.mu.Lock()
	order := append([]uuid.UUID(nil), f.memories.order...)
	rows := make(map[uuid.UUID]domain.Memory, len(f.memories.rows))
	for id, m := range f.memories.rows {
		rows[id] = *m
	}
	f.memories.mu.Unlock()

	f.contradictions.mu.Lock()
	contradictions := append([]domain.ContradictionRecord(nil), f.contradictions.records...)
	f.contradictions.mu.Unlock()

	f.signalRows.mu.Lock()
	signals := append([]domain.SignalRecord(nil), f.signalRows.records...)
	f.signalRows.mu.Unlock()

	err := fn(domain.PassStores{Memories: f.memories, Contradictions: f.contradictions, Signals: f.signals})
	if err == nil {
		return nil
	}

	f.memories.mu.Lock()
	f.memories.order = order
	f.memories.rows = make(map[uuid.UUID]*domain.Memory, len(rows))
	for id, m := range rows {
		m := m
		f.memories.rows[id] = &m
	}
	f.memories.mu.Unlock()

	f.contradictions.mu.Lock()
	f.contradictions.records = contradictions
	f.contradictions.mu.Unlock()

	f.signalRows.mu.Lock()
	f.signalRows.records = signals
	f.signalRows.mu.Unlock()
	return err
}

// MockProfileStore mocks domain.ProfileStore.
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Upsert(ctx context.Context, p *domain.CognitiveProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileStore) FindLookalikes(ctx context.Context, scope domain.ContactScope, limit int) ([]domain.ProfileMatch, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProfileMatch), args.Error(1)
}

// MockMemoryStore mocks domain.MemoryStore for failure paths.
type MockMemoryStore struct {
	mock.Mock
}

func (m *MockMemoryStore) Create(ctx context.Context, mem *domain.Memory) error {
	args := m.Called(ctx, mem)
	if args.Error(0) == nil {
		mem.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockMemoryStore) GetByID(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*domain.Memory, error) {
	args := m.Called(ctx, id, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Memory), args.Error(1)
}

func (m *MockMemoryStore) ListByContact(ctx context.Context, scope domain.ContactScope, includeContradicted bool) ([]domain.Memory, error) {
	args := m.Called(ctx, scope, includeContradicted)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Memory), args.Error(1)
}

func (m *MockMemoryStore) Reinforce(ctx context.Context, id uuid.UUID, boost float64) error {
	args := m.Called(ctx, id, boost)
	return args.Error(0)
}

func (m *MockMemoryStore) MarkContradicted(ctx context.Context, id uuid.UUID, by uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, by)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemoryStore) SetLocked(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, locked bool) error {
	args := m.Called(ctx, id, tenantID, locked)
	return args.Error(0)
}

type countingRefresher struct {
	mu     sync.Mutex
	scopes []domain.ContactScope
}

func (c *countingRefresher) Rebuild(ctx context.Context, scope domain.ContactScope) (*domain.CognitiveProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append(c.scopes, scope)
	return &domain.CognitiveProfile{}, nil
}
