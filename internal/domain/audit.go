package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit action codes.
const (
	AuditPlanRequested         = "AI_PLAN_REQUESTED"
	AuditPlanFallbackStub      = "AI_PLAN_FALLBACK_STUB"
	AuditPlanInvalidOutput     = "AI_PLAN_INVALID_OUTPUT"
	AuditPlanApplied           = "AI_PLAN_APPLIED"
	AuditStructureGenerated    = "STRUCTURE_GENERATED"
	AuditStructureLockedAccess = "STRUCTURE_LOCKED_VIOLATION"
)

const EntityTraining = "Training"

type AuditLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Actor      string             `bson:"actor" json:"actor"`
	Action     string             `bson:"action" json:"action"`
	EntityType string             `bson:"entityType" json:"entityType"`
	EntityID   string             `bson:"entityId" json:"entityId"`
	Details    string             `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}
