package service

import (
	"context"
	"fmt"
	"time"

	"astba/training-app/internal/domain"
	"astba/training-app/internal/repository"
)

// StructureService owns the default AUTO layout of a training: levels and sessions
// with fixed numbering, generated once and locked when attendance exists.
type StructureService interface {
	HasGeneratedStructure(ctx context.Context, training *domain.Training) (bool, error)
	IsStructureLocked(ctx context.Context, training *domain.Training) (bool, error)
	// GenerateDefaultStructure creates whichever of the levelsCount x sessionsPerLevel
	// entities are missing. Existing ones are left untouched.
	GenerateDefaultStructure(ctx context.Context, training *domain.Training, levelsCount, sessionsPerLevel int) error
}

type structureService struct {
	trainingRepo   repository.TrainingRepository
	levelRepo      repository.LevelRepository
	sessionRepo    repository.SessionRepository
	attendanceRepo repository.AttendanceRepository
	now            func() time.Time
}

func NewStructureService(
	trainingRepo repository.TrainingRepository,
	levelRepo repository.LevelRepository,
	sessionRepo repository.SessionRepository,
	attendanceRepo repository.AttendanceRepository,
) StructureService {
	return &structureService{
		trainingRepo:   trainingRepo,
		levelRepo:      levelRepo,
		sessionRepo:    sessionRepo,
		attendanceRepo: attendanceRepo,
		now:            time.Now,
	}
}

func (s *structureService) HasGeneratedStructure(ctx context.Context, training *domain.Training) (bool, error) {
	if training.StructureStatus == domain.StructureGenerated {
		return true, nil
	}
	levels, err := s.levelRepo.FindByTrainingOrdered(ctx, training.ID)
	if err != nil {
		return false, err
	}
	if len(levels) > 0 {
		return true, nil
	}
	sessions, err := s.sessionRepo.FindByTraining(ctx, training.ID)
	if err != nil {
		return false, err
	}
	return len(sessions) > 0, nil
}

func (s *structureService) IsStructureLocked(ctx context.Context, training *domain.Training) (bool, error) {
	return s.attendanceRepo.ExistsForTraining(ctx, training.ID)
}

func (s *structureService) GenerateDefaultStructure(ctx context.Context, training *domain.Training, levelsCount, sessionsPerLevel int) error {
	if !training.IsAuto() {
		return ErrCreationModeManual
	}

	levels, err := s.levelRepo.FindByTrainingOrdered(ctx, training.ID)
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}
	levelsByNumber := make(map[int]domain.Level, len(levels))
	for _, l := range levels {
		levelsByNumber[l.LevelNumber] = l
	}
	for n := 1; n <= levelsCount; n++ {
		if _, ok := levelsByNumber[n]; ok {
			continue
		}
		level := domain.Level{
			TrainingID:  training.ID,
			LevelNumber: n,
			Name:        fmt.Sprintf("Level %d", n),
			Description: fmt.Sprintf("Level %d for %s", n, training.Name),
		}
		if _, err := s.levelRepo.Create(ctx, &level); err != nil {
			return fmt.Errorf("create level %d: %w", n, err)
		}
		levelsByNumber[n] = level
	}

	sessions, err := s.sessionRepo.FindByTraining(ctx, training.ID)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	existing := make(map[[2]int]bool, len(sessions))
	for _, sess := range sessions {
		existing[[2]int{sess.LevelNumber, sess.SessionNumber}] = true
	}

	base := s.firstSessionStart(training)
	for ln := 1; ln <= levelsCount; ln++ {
		level := levelsByNumber[ln]
		for sn := 1; sn <= sessionsPerLevel; sn++ {
			if existing[[2]int{ln, sn}] {
				continue
			}
			ordinal := (ln-1)*sessionsPerLevel + (sn - 1)
			startAt := base.AddDate(0, 0, 7*ordinal)
			session := domain.Session{
				TrainingID:    training.ID,
				LevelID:       level.ID,
				LevelNumber:   ln,
				SessionNumber: sn,
				Title:         fmt.Sprintf("Level %d - Session %d", ln, sn),
				StartAt:       &startAt,
				DurationMin:   domain.DefaultSessionDuration,
				Status:        domain.SessionStatusPlanned,
			}
			if _, err := s.sessionRepo.Create(ctx, &session); err != nil {
				return fmt.Errorf("create session %d.%d: %w", ln, sn, err)
			}
		}
	}

	training.StructureStatus = domain.StructureGenerated
	if err := s.trainingRepo.Update(ctx, training); err != nil {
		return fmt.Errorf("mark structure generated: %w", err)
	}
	return nil
}

// firstSessionStart is 09:00 UTC on the training start date, or today.
func (s *structureService) firstSessionStart(training *domain.Training) time.Time {
	day := s.now().UTC()
	if training.StartDate != nil {
		day = training.StartDate.UTC()
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC)
}
