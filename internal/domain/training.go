// internal/domain/training.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreationMode tells whether a training's level/session layout is system-generated (AUTO)
// or authored by hand (MANUAL).
type CreationMode string

const (
	CreationModeAuto   CreationMode = "AUTO"
	CreationModeManual CreationMode = "MANUAL"
)

type StructureStatus string

const (
	StructureNotGenerated StructureStatus = "NOT_GENERATED"
	StructureGenerated    StructureStatus = "GENERATED"
)

const SessionStatusPlanned = "PLANNED"

// Fixed cardinality of an AUTO structure.
const (
	DefaultLevelsCount      = 4
	DefaultSessionsPerLevel = 6
	DefaultSessionDuration  = 120
)

// Training is the root of a Level -> Session hierarchy.
type Training struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	StartDate       *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate         *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Status          string             `bson:"status,omitempty" json:"status,omitempty"`
	CreationMode    CreationMode       `bson:"creationMode" json:"creationMode"`
	StructureStatus StructureStatus    `bson:"structureStatus" json:"structureStatus"`
	PlanSnapshotKey string             `bson:"planSnapshotKey,omitempty" json:"-"` // Object key of the last applied plan
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (t *Training) IsAuto() bool {
	return t.CreationMode == CreationModeAuto
}

// Level is unique by (TrainingID, LevelNumber).
type Level struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainingID  primitive.ObjectID `bson:"trainingId" json:"trainingId"`
	LevelNumber int                `bson:"levelNumber" json:"levelNumber"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Session is unique by (LevelID, SessionNumber). LevelNumber is denormalized so a
// training's sessions can be grouped without loading levels.
type Session struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainingID         primitive.ObjectID `bson:"trainingId" json:"trainingId"`
	LevelID            primitive.ObjectID `bson:"levelId" json:"levelId"`
	LevelNumber        int                `bson:"levelNumber" json:"levelNumber"`
	SessionNumber      int                `bson:"sessionNumber" json:"sessionNumber"`
	Title              string             `bson:"title" json:"title"`
	Objective          string             `bson:"objective,omitempty" json:"objective,omitempty"`
	StartAt            *time.Time         `bson:"startAt" json:"startAt"`
	DurationMin        int                `bson:"durationMin" json:"durationMin"`
	Location           *string            `bson:"location" json:"location"`
	Status             string             `bson:"status,omitempty" json:"status,omitempty"`
	Modality           string             `bson:"modality,omitempty" json:"modality,omitempty"`
	Materials          *string            `bson:"materials" json:"materials"`                   // JSON array text
	AccessibilityNotes *string            `bson:"accessibilityNotes" json:"accessibilityNotes"` // JSON array text
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}
