package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"astba/training-app/internal/domain"
	"astba/training-app/internal/llm"
	"astba/training-app/internal/logger"
	"astba/training-app/internal/metrics"
	"astba/training-app/internal/plan"
	"astba/training-app/internal/repository"
	"astba/training-app/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	levelDescriptionMaxRunes = 1000
	snapshotContentType      = "application/json"
)

// GenerateRequest is a user's free-text ask for a draft plan.
type GenerateRequest struct {
	PromptText  string
	Language    string
	Constraints *plan.Constraints
}

// AIPlanService drafts training plans with a language model and merges approved plans
// into a training's level/session structure.
type AIPlanService interface {
	GenerateDraftPlan(ctx context.Context, trainingID primitive.ObjectID, req GenerateRequest, actorKey string) (*GenerationOutcome, error)
	// ApplyPlan validates approvedPlan and overwrites the training's 4x6 structure with
	// it in one transaction.
	ApplyPlan(ctx context.Context, trainingID primitive.ObjectID, approvedPlan json.RawMessage) (*TrainingDetail, error)
	// SnapshotURL returns a temporary download link for the last applied plan.
	SnapshotURL(ctx context.Context, trainingID primitive.ObjectID) (string, error)
}

type AIPlanServiceDeps struct {
	Trainings repository.TrainingRepository
	Levels    repository.LevelRepository
	Sessions  repository.SessionRepository
	Tx        repository.TxManager
	Structure StructureService
	Audit     AuditService
	Gateway   llm.Gateway
	Limiter   *RateLimiter
	Schema    *plan.Schema
	Prompts   plan.Prompts
	Storage   storage.ObjectStorage // nil disables snapshot archiving
	Logger    *logger.Logger

	FallbackPolicy FallbackPolicy
}

type aiPlanService struct {
	AIPlanServiceDeps
	log *logger.Logger
	now func() time.Time
}

func NewAIPlanService(deps AIPlanServiceDeps) AIPlanService {
	if deps.FallbackPolicy == "" {
		deps.FallbackPolicy = FallbackLenient
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &aiPlanService{
		AIPlanServiceDeps: deps,
		log:               deps.Logger.With("component", "ai_plan"),
		now:               time.Now,
	}
}

// === Generation ===

func (s *aiPlanService) GenerateDraftPlan(ctx context.Context, trainingID primitive.ObjectID, req GenerateRequest, actorKey string) (*GenerationOutcome, error) {
	outcome, err := s.generateDraftPlan(ctx, trainingID, req, actorKey)
	if err != nil {
		metrics.PlanGenerations.WithLabelValues(errorLabel(err)).Inc()
		return nil, err
	}
	metrics.PlanGenerations.WithLabelValues(string(outcome.Kind)).Inc()
	return outcome, nil
}

func (s *aiPlanService) generateDraftPlan(ctx context.Context, trainingID primitive.ObjectID, req GenerateRequest, actorKey string) (*GenerationOutcome, error) {
	training, err := s.loadTraining(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	if !training.IsAuto() {
		return nil, ErrCreationModeManual
	}

	prompt := strings.TrimSpace(req.PromptText)
	if prompt == "" {
		return nil, ErrPromptRequired
	}
	if utf8.RuneCountInString(prompt) > plan.MaxPromptLength {
		return nil, ErrPromptTooLong
	}
	lang := req.Language
	if !plan.IsSupportedLanguage(lang) {
		return nil, ErrLanguageInvalid
	}

	if err := s.Limiter.AssertAllowed(actorKey); err != nil {
		return nil, err
	}

	entityID := trainingID.Hex()
	log := s.log.With("training_id", entityID, "language", lang)

	genReq := llm.Request{
		SystemPrompt: s.Prompts.System,
		UserPrompt:   plan.UserPrompt(prompt, req.Constraints, lang),
		Schema:       s.Schema.Definition(),
		Language:     lang,
		PromptText:   prompt,
		Constraints:  req.Constraints,
	}
	raw, err := s.Gateway.RequestPlanJSON(ctx, genReq)
	if err != nil {
		if !errors.Is(err, llm.ErrEmptyResponse) {
			return nil, err
		}
		log.Warn("model returned no content")
		return s.unusableOutput(ctx, entityID, lang, prompt, req.Constraints, ReasonEmptyResponse)
	}

	doc, violations, err := s.evaluate(raw, lang, prompt)
	if err != nil {
		log.Warn("model output is not JSON", "error", err)
		return s.unusableOutput(ctx, entityID, lang, prompt, req.Constraints, ReasonUnparseable)
	}
	if doc != nil {
		s.Audit.Log(ctx, domain.AuditPlanRequested, domain.EntityTraining, entityID, "outcome=success language="+lang)
		return &GenerationOutcome{Kind: OutcomeSuccess, Plan: doc}, nil
	}

	log.Info("model output failed validation, requesting repair", "violations", len(violations))
	repairReq := genReq
	repairReq.SystemPrompt = s.Prompts.Repair
	repairReq.UserPrompt = plan.RepairUserPrompt(violations, raw)
	repaired, err := s.Gateway.RequestPlanJSON(ctx, repairReq)
	if err != nil {
		if !errors.Is(err, llm.ErrEmptyResponse) {
			return nil, err
		}
		return s.unusableOutput(ctx, entityID, lang, prompt, req.Constraints, ReasonInvalidAfterRepair)
	}

	doc, violations, err = s.evaluate(repaired, lang, prompt)
	if err == nil && doc != nil {
		s.Audit.Log(ctx, domain.AuditPlanRequested, domain.EntityTraining, entityID, "outcome=repaired language="+lang)
		return &GenerationOutcome{Kind: OutcomeRepaired, Plan: doc}, nil
	}
	log.Warn("repaired output still unusable", "violations", len(violations), "error", err)
	return s.unusableOutput(ctx, entityID, lang, prompt, req.Constraints, ReasonInvalidAfterRepair)
}

// evaluate parses, normalizes and validates model output. A nil document with nil
// error means the output parsed but failed validation.
func (s *aiPlanService) evaluate(raw, lang, prompt string) (*plan.Document, []string, error) {
	tree, err := plan.ParseJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	normalized := plan.Normalize(tree, lang, prompt)
	if violations := s.Schema.Validate(normalized); len(violations) > 0 {
		return nil, violations, nil
	}
	doc, err := plan.Decode(normalized)
	if err != nil {
		return nil, nil, err
	}
	return doc, nil, nil
}

func (s *aiPlanService) unusableOutput(ctx context.Context, entityID, lang, prompt string, constraints *plan.Constraints, reason string) (*GenerationOutcome, error) {
	if s.FallbackPolicy == FallbackStrict {
		s.Audit.Log(ctx, domain.AuditPlanInvalidOutput, domain.EntityTraining, entityID, "reason="+reason+" policy=strict")
		return nil, ErrPlanInvalidOutput
	}
	s.Audit.Log(ctx, domain.AuditPlanFallbackStub, domain.EntityTraining, entityID, "reason="+reason+" policy=lenient")
	return &GenerationOutcome{
		Kind:           OutcomeFallbackStub,
		Plan:           plan.BuildStub(lang, prompt, constraints),
		FallbackReason: reason,
	}, nil
}

// === Apply ===

func (s *aiPlanService) ApplyPlan(ctx context.Context, trainingID primitive.ObjectID, approvedPlan json.RawMessage) (*TrainingDetail, error) {
	detail, err := s.applyPlan(ctx, trainingID, approvedPlan)
	if err != nil {
		metrics.PlanApplies.WithLabelValues(errorLabel(err)).Inc()
		return nil, err
	}
	metrics.PlanApplies.WithLabelValues("ok").Inc()
	return detail, nil
}

func (s *aiPlanService) applyPlan(ctx context.Context, trainingID primitive.ObjectID, approvedPlan json.RawMessage) (*TrainingDetail, error) {
	doc, err := s.validateApproved(approvedPlan)
	if err != nil {
		return nil, err
	}

	entityID := trainingID.Hex()
	err = s.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		training, err := s.loadTraining(ctx, trainingID)
		if err != nil {
			return err
		}
		if !training.IsAuto() {
			return ErrCreationModeManual
		}
		if err := s.ensureStructure(ctx, training); err != nil {
			return err
		}

		training.Name = doc.Training.Title
		training.Description = doc.Training.Description
		if err := s.Trainings.Update(ctx, training); err != nil {
			return fmt.Errorf("update training: %w", err)
		}
		if err := s.applyLevels(ctx, trainingID, doc); err != nil {
			return err
		}
		return s.applySessions(ctx, trainingID, doc)
	})
	if err != nil {
		if errors.Is(err, ErrStructureLocked) {
			s.Audit.Log(ctx, domain.AuditStructureLockedAccess, domain.EntityTraining, entityID, "apply refused: attendance recorded")
		}
		return nil, err
	}

	s.Audit.Log(ctx, domain.AuditPlanApplied, domain.EntityTraining, entityID,
		fmt.Sprintf("levels=%d sessions=%d", len(doc.Levels), doc.SessionCount()))
	s.archive(ctx, trainingID, doc)

	return s.detail(ctx, trainingID)
}

func (s *aiPlanService) validateApproved(approvedPlan json.RawMessage) (*plan.Document, error) {
	tree, err := plan.ParseJSON(string(approvedPlan))
	if err != nil {
		return nil, &PlanValidationError{Violations: []string{"/: plan must be a JSON object"}}
	}
	if violations := s.Schema.Validate(tree); len(violations) > 0 {
		return nil, &PlanValidationError{Violations: violations}
	}
	doc, err := plan.Decode(tree)
	if err != nil {
		return nil, &PlanValidationError{Violations: []string{"/: " + err.Error()}}
	}
	return doc, nil
}

// ensureStructure generates the default structure when none exists yet, unless
// attendance already locks the training.
func (s *aiPlanService) ensureStructure(ctx context.Context, training *domain.Training) error {
	has, err := s.Structure.HasGeneratedStructure(ctx, training)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	locked, err := s.Structure.IsStructureLocked(ctx, training)
	if err != nil {
		return err
	}
	if locked {
		return ErrStructureLocked
	}
	return s.Structure.GenerateDefaultStructure(ctx, training, plan.LevelsCount, plan.SessionsPerLevel)
}

func (s *aiPlanService) applyLevels(ctx context.Context, trainingID primitive.ObjectID, doc *plan.Document) error {
	levels, err := s.Levels.FindByTrainingOrdered(ctx, trainingID)
	if err != nil {
		return err
	}
	if len(levels) != plan.LevelsCount {
		return fmt.Errorf("%w: expected %d levels, found %d", ErrStructureMissing, plan.LevelsCount, len(levels))
	}
	byNumber := make(map[int]*domain.Level, len(levels))
	for i := range levels {
		byNumber[levels[i].LevelNumber] = &levels[i]
	}

	for _, pl := range doc.Levels {
		level, ok := byNumber[pl.LevelIndex]
		if !ok {
			return fmt.Errorf("%w: level %d", ErrStructureMissing, pl.LevelIndex)
		}
		level.Name = pl.Title
		level.Description = truncate(strings.Join(pl.Outcomes, "\n"), levelDescriptionMaxRunes)
		if err := s.Levels.Update(ctx, level); err != nil {
			return fmt.Errorf("update level %d: %w", pl.LevelIndex, err)
		}
	}
	return nil
}

func (s *aiPlanService) applySessions(ctx context.Context, trainingID primitive.ObjectID, doc *plan.Document) error {
	sessions, err := s.Sessions.FindByTraining(ctx, trainingID)
	if err != nil {
		return err
	}
	type key struct{ level, session int }
	byKey := make(map[key]*domain.Session, len(sessions))
	perLevel := map[int]int{}
	for i := range sessions {
		sess := &sessions[i]
		byKey[key{sess.LevelNumber, sess.SessionNumber}] = sess
		perLevel[sess.LevelNumber]++
	}
	for n := 1; n <= plan.LevelsCount; n++ {
		if perLevel[n] != plan.SessionsPerLevel {
			return fmt.Errorf("%w: level %d has %d sessions", ErrStructureMissing, n, perLevel[n])
		}
	}

	for _, pl := range doc.Levels {
		for _, ps := range pl.Sessions {
			sess, ok := byKey[key{pl.LevelIndex, ps.SessionIndex}]
			if !ok {
				return fmt.Errorf("%w: session %d.%d", ErrStructureMissing, pl.LevelIndex, ps.SessionIndex)
			}
			applySession(sess, ps)
			if err := s.Sessions.Update(ctx, sess); err != nil {
				return fmt.Errorf("update session %d.%d: %w", pl.LevelIndex, ps.SessionIndex, err)
			}
		}
	}
	return nil
}

func applySession(sess *domain.Session, ps plan.Session) {
	sess.Title = ps.Title
	sess.Objective = ps.Objective
	sess.DurationMin = ps.DurationMin
	if sess.DurationMin <= 0 {
		sess.DurationMin = plan.DefaultDurationMin
	}
	sess.StartAt = parseStartAt(ps.StartAt)
	sess.Location = ps.Location
	sess.Modality = ps.Modality
	sess.Materials = jsonText(ps.Materials)
	sess.AccessibilityNotes = jsonText(ps.AccessibilityNotes)
}

var startAtLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseStartAt accepts a local date-time (read as UTC) or an RFC 3339 timestamp.
// Anything else, including null, yields nil.
func parseStartAt(v *string) *time.Time {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	for _, layout := range startAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

func jsonText(list []string) *string {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// === Snapshots ===

// archive stores the applied plan in object storage and records its key on the
// training. Failures are logged only; the apply has already committed.
func (s *aiPlanService) archive(ctx context.Context, trainingID primitive.ObjectID, doc *plan.Document) {
	if s.Storage == nil {
		return
	}
	log := s.log.With("training_id", trainingID.Hex())
	body, err := json.Marshal(doc)
	if err != nil {
		log.Error("failed to encode plan snapshot", "error", err)
		return
	}
	key := fmt.Sprintf("plans/%s/%s-%s.json", trainingID.Hex(), s.now().UTC().Format("20060102T150405Z"), uuid.NewString())
	if err := s.Storage.PutObject(ctx, key, snapshotContentType, body); err != nil {
		log.Warn("failed to archive plan snapshot", "key", key, "error", err)
		return
	}

	training, err := s.Trainings.GetByID(ctx, trainingID)
	if err == nil {
		training.PlanSnapshotKey = key
		err = s.Trainings.Update(ctx, training)
	}
	if err != nil {
		log.Warn("failed to record plan snapshot key", "key", key, "error", err)
		_ = s.Storage.DeleteObject(ctx, key)
	}
}

func (s *aiPlanService) SnapshotURL(ctx context.Context, trainingID primitive.ObjectID) (string, error) {
	training, err := s.loadTraining(ctx, trainingID)
	if err != nil {
		return "", err
	}
	if s.Storage == nil || training.PlanSnapshotKey == "" {
		return "", ErrSnapshotUnavailable
	}
	return s.Storage.GeneratePresignedDownloadURL(ctx, training.PlanSnapshotKey, storage.DefaultPresignedURLExpiry)
}

// === Helpers ===

func (s *aiPlanService) loadTraining(ctx context.Context, id primitive.ObjectID) (*domain.Training, error) {
	training, err := s.Trainings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainingNotFound
		}
		return nil, err
	}
	return training, nil
}

func (s *aiPlanService) detail(ctx context.Context, id primitive.ObjectID) (*TrainingDetail, error) {
	training, err := s.loadTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	levels, err := s.Levels.FindByTrainingOrdered(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.Sessions.FindByTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TrainingDetail{Training: training, Levels: levels, Sessions: sessions}, nil
}

// errorLabel gives a bounded metric label for a failed request.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrProviderError), errors.Is(err, llm.ErrProviderNotConfigured):
		return "provider_error"
	case errors.Is(err, ErrPlanInvalidOutput):
		return "invalid_output"
	case errors.Is(err, ErrPlanInvalid):
		return "plan_invalid"
	case errors.Is(err, ErrStructureLocked):
		return "structure_locked"
	case errors.Is(err, ErrStructureMissing):
		return "structure_missing"
	case errors.Is(err, ErrTrainingNotFound),
		errors.Is(err, ErrCreationModeManual),
		errors.Is(err, ErrPromptRequired),
		errors.Is(err, ErrPromptTooLong),
		errors.Is(err, ErrLanguageInvalid):
		return "rejected"
	default:
		return "error"
	}
}
