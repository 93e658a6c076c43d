package repository

import (
	"astba/training-app/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDuplicate    = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxManager runs fn inside a transaction. Repository calls made with the ctx passed to
// fn join the transaction; any error returned by fn rolls back every write.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TrainingRepository interface {
	Create(ctx context.Context, training *domain.Training) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Training, error)
	// Update persists name, description, structure status and plan snapshot key.
	Update(ctx context.Context, training *domain.Training) error
}

// LevelRepository stores the levels of a training, unique by (trainingId, levelNumber).
type LevelRepository interface {
	Create(ctx context.Context, level *domain.Level) (primitive.ObjectID, error)
	FindByTrainingOrdered(ctx context.Context, trainingID primitive.ObjectID) ([]domain.Level, error)
	Update(ctx context.Context, level *domain.Level) error
}

// SessionRepository stores sessions, unique by (levelId, sessionNumber).
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error)
	// FindByTraining returns sessions ordered by level number then session number.
	FindByTraining(ctx context.Context, trainingID primitive.ObjectID) ([]domain.Session, error)
	Update(ctx context.Context, session *domain.Session) error
}

type AttendanceRepository interface {
	Create(ctx context.Context, attendance *domain.Attendance) (primitive.ObjectID, error)
	ExistsForTraining(ctx context.Context, trainingID primitive.ObjectID) (bool, error)
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) (primitive.ObjectID, error)
	// ListByEntity returns the newest entries first.
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error)
}
