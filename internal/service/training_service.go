package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"astba/training-app/internal/domain"
	"astba/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainingDetail is a training with its ordered levels and sessions.
type TrainingDetail struct {
	Training *domain.Training `json:"training"`
	Levels   []domain.Level   `json:"levels"`
	Sessions []domain.Session `json:"sessions"`
}

type CreateTrainingInput struct {
	Name         string
	Description  string
	StartDate    *time.Time
	EndDate      *time.Time
	CreationMode domain.CreationMode
}

type TrainingService interface {
	CreateTraining(ctx context.Context, in CreateTrainingInput) (*domain.Training, error)
	GetTraining(ctx context.Context, id primitive.ObjectID) (*domain.Training, error)
	GetTrainingDetail(ctx context.Context, id primitive.ObjectID) (*TrainingDetail, error)
	GenerateStructure(ctx context.Context, id primitive.ObjectID) (*TrainingDetail, error)
}

type trainingService struct {
	trainingRepo repository.TrainingRepository
	levelRepo    repository.LevelRepository
	sessionRepo  repository.SessionRepository
	structure    StructureService
	audit        AuditService
	tx           repository.TxManager
}

func NewTrainingService(
	trainingRepo repository.TrainingRepository,
	levelRepo repository.LevelRepository,
	sessionRepo repository.SessionRepository,
	structure StructureService,
	audit AuditService,
	tx repository.TxManager,
) TrainingService {
	return &trainingService{
		trainingRepo: trainingRepo,
		levelRepo:    levelRepo,
		sessionRepo:  sessionRepo,
		structure:    structure,
		audit:        audit,
		tx:           tx,
	}
}

func (s *trainingService) CreateTraining(ctx context.Context, in CreateTrainingInput) (*domain.Training, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidTraining
	}
	mode := in.CreationMode
	if mode == "" {
		mode = domain.CreationModeAuto
	}
	if mode != domain.CreationModeAuto && mode != domain.CreationModeManual {
		return nil, ErrInvalidTraining
	}
	training := &domain.Training{
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Status:          "DRAFT",
		CreationMode:    mode,
		StructureStatus: domain.StructureNotGenerated,
	}
	if _, err := s.trainingRepo.Create(ctx, training); err != nil {
		return nil, err
	}
	return training, nil
}

func (s *trainingService) GetTraining(ctx context.Context, id primitive.ObjectID) (*domain.Training, error) {
	training, err := s.trainingRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainingNotFound
		}
		return nil, err
	}
	return training, nil
}

func (s *trainingService) GetTrainingDetail(ctx context.Context, id primitive.ObjectID) (*TrainingDetail, error) {
	training, err := s.GetTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	levels, err := s.levelRepo.FindByTrainingOrdered(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.FindByTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TrainingDetail{Training: training, Levels: levels, Sessions: sessions}, nil
}

// GenerateStructure creates the default layout for an AUTO training. It is refused once
// attendance has been recorded.
func (s *trainingService) GenerateStructure(ctx context.Context, id primitive.ObjectID) (*TrainingDetail, error) {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		training, err := s.GetTraining(ctx, id)
		if err != nil {
			return err
		}
		if !training.IsAuto() {
			return ErrCreationModeManual
		}
		locked, err := s.structure.IsStructureLocked(ctx, training)
		if err != nil {
			return err
		}
		if locked {
			s.audit.Log(ctx, domain.AuditStructureLockedAccess, domain.EntityTraining, id.Hex(), "structure generation refused")
			return ErrStructureLocked
		}
		return s.structure.GenerateDefaultStructure(ctx, training, domain.DefaultLevelsCount, domain.DefaultSessionsPerLevel)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, domain.AuditStructureGenerated, domain.EntityTraining, id.Hex(), "")
	return s.GetTrainingDetail(ctx, id)
}
