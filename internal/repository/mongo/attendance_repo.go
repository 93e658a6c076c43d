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

const attendanceCollectionName = "attendance"

type mongoAttendanceRepository struct {
	collection *mongo.Collection
}

func NewMongoAttendanceRepository(db *mongo.Database) repository.AttendanceRepository {
	return &mongoAttendanceRepository{
		collection: db.Collection(attendanceCollectionName),
	}
}

func (r *mongoAttendanceRepository) Create(ctx context.Context, attendance *domain.Attendance) (primitive.ObjectID, error) {
	if attendance.TrainingID == primitive.NilObjectID || attendance.SessionID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("attendance requires trainingId and sessionId")
	}
	attendance.ID = primitive.NewObjectID()
	if attendance.RecordedAt.IsZero() {
		attendance.RecordedAt = time.Now().UTC()
	}
	result, err := r.collection.InsertOne(ctx, attendance)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted attendance ID")
	}
	return insertedID, nil
}

// ExistsForTraining reports whether any attendance was recorded on the training's sessions.
func (r *mongoAttendanceRepository) ExistsForTraining(ctx context.Context, trainingID primitive.ObjectID) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"trainingId": trainingID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func EnsureAttendanceIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(attendanceCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "trainingId", Value: 1}},
		Options: options.Index(),
	})
	return err
}
