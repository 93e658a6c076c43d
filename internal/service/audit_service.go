package service

import (
	"context"
	"sync"
	"time"

	"astba/training-app/internal/domain"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/repository"
)

const auditWriteTimeout = 5 * time.Second

// AuditService records who did what to which entity. Log never blocks or fails the
// caller; write errors are only logged.
type AuditService interface {
	Log(ctx context.Context, action, entityType, entityID, details string)
	ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error)
	// Flush waits for pending writes. Used on shutdown and in tests.
	Flush()
}

type auditService struct {
	repo repository.AuditLogRepository
	log  *logger.Logger
	wg   sync.WaitGroup
}

func NewAuditService(repo repository.AuditLogRepository, log *logger.Logger) AuditService {
	return &auditService{repo: repo, log: log.With("component", "audit")}
}

func (s *auditService) Log(ctx context.Context, action, entityType, entityID, details string) {
	entry := &domain.AuditLog{
		Actor:      ActorFrom(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// A fresh context: the caller's may carry a transaction session or be cancelled.
		writeCtx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()
		if _, err := s.repo.Create(writeCtx, entry); err != nil {
			s.log.Error("failed to write audit log", "action", action, "entity_id", entityID, "error", err)
		}
	}()
}

func (s *auditService) ListForEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListByEntity(ctx, entityType, entityID, limit)
}

func (s *auditService) Flush() {
	s.wg.Wait()
}
