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

const levelCollectionName = "levels"

type mongoLevelRepository struct {
	collection *mongo.Collection
}

func NewMongoLevelRepository(db *mongo.Database) repository.LevelRepository {
	return &mongoLevelRepository{
		collection: db.Collection(levelCollectionName),
	}
}

func (r *mongoLevelRepository) Create(ctx context.Context, level *domain.Level) (primitive.ObjectID, error) {
	if level.TrainingID == primitive.NilObjectID || level.LevelNumber <= 0 {
		return primitive.NilObjectID, errors.New("level requires trainingId and a positive levelNumber")
	}
	level.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	level.CreatedAt = now
	level.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, level)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted level ID")
	}
	return insertedID, nil
}

// FindByTrainingOrdered returns the training's levels sorted by levelNumber.
func (r *mongoLevelRepository) FindByTrainingOrdered(ctx context.Context, trainingID primitive.ObjectID) ([]domain.Level, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "levelNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"trainingId": trainingID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	levels := []domain.Level{}
	if err = cursor.All(ctx, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *mongoLevelRepository) Update(ctx context.Context, level *domain.Level) error {
	if level.ID == primitive.NilObjectID {
		return errors.New("level ID is required for update")
	}
	level.UpdatedAt = time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":        level.Name,
			"description": level.Description,
			"updatedAt":   level.UpdatedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": level.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureLevelIndexes enforces one level per number within a training.
func EnsureLevelIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(levelCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "trainingId", Value: 1}, {Key: "levelNumber", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
