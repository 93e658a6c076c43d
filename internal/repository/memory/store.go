// Package memory is an in-process implementation of the repository interfaces. It backs
// tests and the "memory" database driver. Transactions are serialized and roll back by
// restoring a snapshot of the structure collections; structure writes made outside a
// transaction wait for it to finish. Audit entries are never rolled back.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"astba/training-app/internal/domain"
	"astba/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	trainings  map[primitive.ObjectID]domain.Training
	levels     map[primitive.ObjectID]domain.Level
	sessions   map[primitive.ObjectID]domain.Session
	attendance map[primitive.ObjectID]domain.Attendance
	audit      []domain.AuditLog
}

func NewStore() *Store {
	return &Store{
		trainings:  map[primitive.ObjectID]domain.Training{},
		levels:     map[primitive.ObjectID]domain.Level{},
		sessions:   map[primitive.ObjectID]domain.Session{},
		attendance: map[primitive.ObjectID]domain.Attendance{},
	}
}

type snapshot struct {
	trainings  map[primitive.ObjectID]domain.Training
	levels     map[primitive.ObjectID]domain.Level
	sessions   map[primitive.ObjectID]domain.Session
	attendance map[primitive.ObjectID]domain.Attendance
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		trainings:  cloneMap(s.trainings),
		levels:     cloneMap(s.levels),
		sessions:   cloneMap(s.sessions),
		attendance: cloneMap(s.attendance),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainings = snap.trainings
	s.levels = snap.levels
	s.sessions = snap.sessions
	s.attendance = snap.attendance
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// writeLock serializes a structure write made outside a transaction with running
// transactions, so a rollback cannot overwrite it. Writes inside a transaction already
// hold txMu.
func (s *Store) writeLock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

// WithTransaction implements repository.TxManager. A nested call joins the outer
// transaction. Reads made outside a transaction may observe uncommitted writes.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) Trainings() repository.TrainingRepository { return trainingRepo{s} }
func (s *Store) Levels() repository.LevelRepository { return levelRepo{s} }
func (s *Store) Sessions() repository.SessionRepository { return sessionRepo{s} }
func (s *Store) Attendance() repository.AttendanceRepository { return attendanceRepo{s} }
func (s *Store) AuditLogs() repository.AuditLogRepository { return auditRepo{s} }
func (s *Store) TxManager() repository.TxManager { return s }

// RemoveLevel and RemoveSession delete structure records directly. The services never
// delete structure; these exist to set up damaged structures in tests.
func (s *Store) RemoveLevel(id primitive.ObjectID) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.levels, id)
}

func (s *Store) RemoveSession(id primitive.ObjectID) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

type trainingRepo struct{ s *Store }

func (r trainingRepo) Create(ctx context.Context, t *domain.Training) (primitive.ObjectID, error) {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.trainings[t.ID] = *t
	return t.ID, nil
}

func (r trainingRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Training, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.trainings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r trainingRepo) Update(ctx context.Context, t *domain.Training) error {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.trainings[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	cur.Name = t.Name
	cur.Description = t.Description
	cur.StructureStatus = t.StructureStatus
	cur.PlanSnapshotKey = t.PlanSnapshotKey
	cur.UpdatedAt = t.UpdatedAt
	r.s.trainings[t.ID] = cur
	return nil
}

type levelRepo struct{ s *Store }

func (r levelRepo) Create(ctx context.Context, l *domain.Level) (primitive.ObjectID, error) {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.levels {
		if existing.TrainingID == l.TrainingID && existing.LevelNumber == l.LevelNumber {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	l.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	r.s.levels[l.ID] = *l
	return l.ID, nil
}

func (r levelRepo) FindByTrainingOrdered(_ context.Context, trainingID primitive.ObjectID) ([]domain.Level, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Level{}
	for _, l := range r.s.levels {
		if l.TrainingID == trainingID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LevelNumber < out[j].LevelNumber })
	return out, nil
}

func (r levelRepo) Update(ctx context.Context, l *domain.Level) error {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.levels[l.ID]
	if !ok {
		return repository.ErrNotFound
	}
	l.UpdatedAt = time.Now().UTC()
	cur.Name = l.Name
	cur.Description = l.Description
	cur.UpdatedAt = l.UpdatedAt
	r.s.levels[l.ID] = cur
	return nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(ctx context.Context, sess *domain.Session) (primitive.ObjectID, error) {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.LevelID == sess.LevelID && existing.SessionNumber == sess.SessionNumber {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	sess.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now
	r.s.sessions[sess.ID] = *sess
	return sess.ID, nil
}

func (r sessionRepo) FindByTraining(_ context.Context, trainingID primitive.ObjectID) ([]domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Session{}
	for _, sess := range r.s.sessions {
		if sess.TrainingID == trainingID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LevelNumber != out[j].LevelNumber {
			return out[i].LevelNumber < out[j].LevelNumber
		}
		return out[i].SessionNumber < out[j].SessionNumber
	})
	return out, nil
}

func (r sessionRepo) Update(ctx context.Context, sess *domain.Session) error {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.sessions[sess.ID]
	if !ok {
		return repository.ErrNotFound
	}
	sess.UpdatedAt = time.Now().UTC()
	cur.Title = sess.Title
	cur.Objective = sess.Objective
	cur.StartAt = sess.StartAt
	cur.DurationMin = sess.DurationMin
	cur.Location = sess.Location
	cur.Status = sess.Status
	cur.Modality = sess.Modality
	cur.Materials = sess.Materials
	cur.AccessibilityNotes = sess.AccessibilityNotes
	cur.UpdatedAt = sess.UpdatedAt
	r.s.sessions[sess.ID] = cur
	return nil
}

type attendanceRepo struct{ s *Store }

func (r attendanceRepo) Create(ctx context.Context, a *domain.Attendance) (primitive.ObjectID, error) {
	defer r.s.writeLock(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = primitive.NewObjectID()
	if a.RecordedAt.IsZero() {
		a.RecordedAt = time.Now().UTC()
	}
	r.s.attendance[a.ID] = *a
	return a.ID, nil
}

func (r attendanceRepo) ExistsForTraining(_ context.Context, trainingID primitive.ObjectID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.attendance {
		if a.TrainingID == trainingID {
			return true, nil
		}
	}
	return false, nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, e *domain.AuditLog) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = primitive.NewObjectID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.s.audit = append(r.s.audit, *e)
	return e.ID, nil
}

func (r auditRepo) ListByEntity(_ context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.AuditLog{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
