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

const auditCollectionName = "audit_logs"

type mongoAuditLogRepository struct {
	collection *mongo.Collection
}

func NewMongoAuditLogRepository(db *mongo.Database) repository.AuditLogRepository {
	return &mongoAuditLogRepository{
		collection: db.Collection(auditCollectionName),
	}
}

func (r *mongoAuditLogRepository) Create(ctx context.Context, entry *domain.AuditLog) (primitive.ObjectID, error) {
	entry.ID = primitive.NewObjectID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted audit log ID")
	}
	return insertedID, nil
}

func (r *mongoAuditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]domain.AuditLog, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"entityType": entityType, "entityId": entityID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []domain.AuditLog{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func EnsureAuditLogIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(auditCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "entityType", Value: 1}, {Key: "entityId", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index(),
	})
	return err
}
