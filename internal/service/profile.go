package service

import (
	"context"
	"time"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/cubomagico/memoria/internal/profile"
	"go.uber.org/zap"
)

const (
	DefaultLookalikeLimit = 10
	MaxLookalikeLimit     = 100
)

// ProfileService projects contacts' memories into cognitive profiles and
// keeps a snapshot of each for lookalike search.
type ProfileService struct {
	memories  domain.MemoryStore
	signals   domain.SignalStore
	profiles  domain.ProfileStore
	projector *profile.Projector
	now       func() time.Time
	logger    *zap.Logger
}

func NewProfileService(ms domain.MemoryStore, ss domain.SignalStore, ps domain.ProfileStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		memories:  ms,
		signals:   ss,
		profiles:  ps,
		projector: profile.NewProjector(),
		now:       time.Now,
		logger:    logger,
	}
}

// SetProjector swaps the scoring functions.
func (s *ProfileService) SetProjector(p *profile.Projector) {
	s.projector = p
}

// Rebuild recomputes the contact's profile from its full memory history and
// signal tallies, then stores it as the current snapshot.
func (s *ProfileService) Rebuild(ctx context.Context, scope domain.ContactScope) (*domain.CognitiveProfile, error) {
	memories, err := s.memories.ListByContact(ctx, scope, true)
	if err != nil {
		return nil, persistence("load memories", err)
	}
	counts, err := s.signals.CountByContact(ctx, scope)
	if err != nil {
		return nil, persistence("count signals", err)
	}

	p := s.projector.Project(memories, counts)
	p.TenantID = scope.TenantID
	p.ProjectID = scope.ProjectID
	p.ContactID = scope.ContactID
	p.ComputedAt = s.now().UTC()

	if err := s.profiles.Upsert(ctx, &p); err != nil {
		return nil, persistence("store profile", err)
	}
	s.logger.Debug("profile rebuilt",
		zap.String("project_id", scope.ProjectID.String()),
		zap.String("contact_id", scope.ContactID.String()),
		zap.Int("memories", p.MemoryCount),
		zap.Float64("confidence_score", p.ConfidenceScore))
	return &p, nil
}

// Lookalikes refreshes the contact's snapshot and ranks the other contacts
// of the project by fingerprint similarity.
func (s *ProfileService) Lookalikes(ctx context.Context, scope domain.ContactScope, limit int) ([]domain.ProfileMatch, error) {
	switch {
	case limit <= 0:
		limit = DefaultLookalikeLimit
	case limit > MaxLookalikeLimit:
		limit = MaxLookalikeLimit
	}
	if _, err := s.Rebuild(ctx, scope); err != nil {
		return nil, err
	}
	matches, err := s.profiles.FindLookalikes(ctx, scope, limit)
	if err != nil {
		return nil, persistence("find lookalikes", err)
	}
	if matches == nil {
		matches = []domain.ProfileMatch{}
	}
	return matches, nil
}
