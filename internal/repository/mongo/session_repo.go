package mongo

import (
	"astba/training-app/internal/domain"
	"astba/training-app/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollectionName = "sessions"

type mongoSessionRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) (primitive.ObjectID, error) {
	if session.TrainingID == primitive.NilObjectID || session.LevelID == primitive.NilObjectID || session.SessionNumber <= 0 {
		return primitive.NilObjectID, errors.New("session requires trainingId, levelId and a positive sessionNumber")
	}
	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted session ID")
	}
	return insertedID, nil
}

func (r *mongoSessionRepository) FindByTraining(ctx context.Context, trainingID primitive.ObjectID) ([]domain.Session, error) {
	findOptions := options.Find().SetSort(bson.D{
		{Key: "levelNumber", Value: 1},
		{Key: "sessionNumber", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, bson.M{"trainingId": trainingID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []domain.Session{}
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Update overwrites the plan-controlled fields. Nil StartAt, Location, Materials and
// AccessibilityNotes are stored as null.
func (r *mongoSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	if session.ID == primitive.NilObjectID {
		return errors.New("session ID is required for update")
	}
	session.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"title":              session.Title,
			"objective":          session.Objective,
			"startAt":            session.StartAt,
			"durationMin":        session.DurationMin,
			"location":           session.Location,
			"status":             session.Status,
			"modality":           session.Modality,
			"materials":          session.Materials,
			"accessibilityNotes": session.AccessibilityNotes,
			"updatedAt":          session.UpdatedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": session.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSessionIndexes enforces one session per number within a level.
func EnsureSessionIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(sessionCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "levelId", Value: 1}, {Key: "sessionNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainingId", Value: 1}, {Key: "levelNumber", Value: 1}, {Key: "sessionNumber", Value: 1}},
			Options: options.Index(),
		},
	})
	return err
}
