package service

import (
	"context"
	"errors"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/extraction"
	"github.com/cubomagico/memoria/internal/lock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrPersistence wraps store failures while reading a snapshot or applying
	// a result. It is never returned for an event that simply had no signal.
	ErrPersistence  = errors.New("persistence failure")
	ErrScopeMissing = errors.New("tenant_id and project_id are required")
)

// DefaultLockWait bounds how long a pass waits for the contact lock when the
// caller's context has no deadline.
const DefaultLockWait = 10 * time.Second

// EngineSource resolves the extraction engine for a project.
type EngineSource interface {
	Engine(projectID uuid.UUID) (*extraction.Engine, error)
}

// ProfileRefresher is notified after a result has been applied.
type ProfileRefresher interface {
	Rebuild(ctx context.Context, scope domain.ContactScope) (*domain.CognitiveProfile, error)
}

// Outcome is the result of one extraction pass. Applied is nil for previews.
type Outcome struct {
	Result  *domain.ExtractionResult `json:"result"`
	Applied *AppliedResult           `json:"applied,omitempty"`
}

type ExtractionService struct {
	engines  EngineSource
	memories domain.MemoryStore
	tx       domain.Transactor
	locker   lock.ContactLocker
	profiles ProfileRefresher
	lockWait time.Duration
	logger   *zap.Logger
}

func NewExtractionService(engines EngineSource, ms domain.MemoryStore, cs domain.ContradictionStore, ss domain.SignalStore, locker lock.ContactLocker, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{
		engines:  engines,
		memories: ms,
		tx:       directTx{domain.PassStores{Memories: ms, Contradictions: cs, Signals: ss}},
		locker:   locker,
		lockWait: DefaultLockWait,
		logger:   logger,
	}
}

// SetTransactor makes every pass apply its result and record its signal in
// one transaction, so a failed pass leaves nothing behind for a retry to
// reinforce.
func (s *ExtractionService) SetTransactor(tx domain.Transactor) {
	s.tx = tx
}

// directTx writes straight through to the stores it was built with.
type directTx struct {
	stores domain.PassStores
}

func (d directTx) InTx(ctx context.Context, fn func(domain.PassStores) error) error {
	return fn(d.stores)
}

// SetProfileRefresher rebuilds the contact's profile after every applied
// pass. Refresh failures are logged, not returned.
func (s *ExtractionService) SetProfileRefresher(p ProfileRefresher) {
	s.profiles = p
}

func (s *ExtractionService) SetLockWait(d time.Duration) {
	s.lockWait = d
}

// Process runs one extraction pass for ev and applies the result. The
// contact is locked from snapshot read to the last write.
func (s *ExtractionService) Process(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*Outcome, error) {
	scope, engine, err := s.prepare(tenantID, projectID, ev)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, scope)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := s.analyze(ctx, engine, scope, ev)
	if err != nil {
		return nil, err
	}

	var applied *AppliedResult
	err = s.tx.InTx(ctx, func(stores domain.PassStores) error {
		var err error
		applied, err = NewResultApplier(stores.Memories, stores.Contradictions, s.logger).Apply(ctx, scope, result)
		if err != nil {
			return err
		}
		if err := stores.Signals.Record(ctx, &domain.SignalRecord{
			TenantID:  scope.TenantID,
			ProjectID: scope.ProjectID,
			ContactID: scope.ContactID,
			Channel:   ev.Channel(),
			SourceID:  sourceID(ev),
		}); err != nil {
			return persistence("record signal", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to apply extraction result", scopeFields(scope, ev, zap.Error(err))...)
		if !errors.Is(err, ErrPersistence) {
			err = persistence("apply transaction", err)
		}
		return nil, err
	}

	s.logger.Info("signal processed", scopeFields(scope, ev,
		zap.Int("new", len(result.NewMemories)),
		zap.Int("reinforced", len(result.Reinforcements)),
		zap.Int("contradicted", len(result.Contradictions)))...)

	if s.profiles != nil {
		if _, err := s.profiles.Rebuild(ctx, scope); err != nil {
			s.logger.Warn("profile refresh failed", scopeFields(scope, ev, zap.Error(err))...)
		}
	}

	return &Outcome{Result: result, Applied: applied}, nil
}

// Preview classifies ev against the contact's current memories without
// writing anything.
func (s *ExtractionService) Preview(ctx context.Context, tenantID, projectID uuid.UUID, ev domain.Event) (*Outcome, error) {
	scope, engine, err := s.prepare(tenantID, projectID, ev)
	if err != nil {
		return nil, err
	}
	result, err := s.analyze(ctx, engine, scope, ev)
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: result}, nil
}

func (s *ExtractionService) prepare(tenantID, projectID uuid.UUID, ev domain.Event) (domain.ContactScope, *extraction.Engine, error) {
	if ev == nil {
		return domain.ContactScope{}, nil, &domain.ValidationError{Field: "event", Reason: "is required"}
	}
	if err := ev.Validate(); err != nil {
		return domain.ContactScope{}, nil, err
	}
	if tenantID == uuid.Nil || projectID == uuid.Nil {
		return domain.ContactScope{}, nil, ErrScopeMissing
	}
	engine, err := s.engines.Engine(projectID)
	if err != nil {
		return domain.ContactScope{}, nil, err
	}
	scope := domain.ContactScope{TenantID: tenantID, ProjectID: projectID, ContactID: ev.Contact()}
	return scope, engine, nil
}

func (s *ExtractionService) acquire(ctx context.Context, scope domain.ContactScope) (func(), error) {
	if _, ok := ctx.Deadline(); !ok && s.lockWait > 0 {
		lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
		defer cancel()
		return s.locker.Acquire(lockCtx, scope)
	}
	return s.locker.Acquire(ctx, scope)
}

func (s *ExtractionService) analyze(ctx context.Context, engine *extraction.Engine, scope domain.ContactScope, ev domain.Event) (*domain.ExtractionResult, error) {
	existing, err := s.memories.ListByContact(ctx, scope, false)
	if err != nil {
		return nil, persistence("load memories", err)
	}
	return engine.Analyze(ev, domain.ExtractionContext{
		ProjectID:        scope.ProjectID,
		ContactID:        scope.ContactID,
		ExistingMemories: existing,
	})
}

func sourceID(ev domain.Event) string {
	switch v := ev.(type) {
	case *domain.QuizEvent:
		return v.QuizID
	case *domain.SurveyEvent:
		if v.ResponseID != "" {
			return v.ResponseID
		}
		return v.SurveyID
	case *domain.SocialCommentEvent:
		return v.CommentID
	case *domain.PurchaseEvent:
		return v.TransactionID
	case *domain.ChatEvent:
		return v.MessageID
	case domain.QuizEvent:
		return v.QuizID
	case domain.SurveyEvent:
		return sourceID(&v)
	case domain.SocialCommentEvent:
		return v.CommentID
	case domain.PurchaseEvent:
		return v.TransactionID
	case domain.ChatEvent:
		return v.MessageID
	}
	return ""
}

func scopeFields(scope domain.ContactScope, ev domain.Event, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("project_id", scope.ProjectID.String()),
		zap.String("contact_id", scope.ContactID.String()),
		zap.String("channel", string(ev.Channel())),
	}
	return append(fields, extra...)
}
