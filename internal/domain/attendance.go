package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attendance is owned by attendance bookkeeping; here it only matters because a single
// record against any session locks the training's structure.
type Attendance struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainingID primitive.ObjectID `bson:"trainingId" json:"trainingId"`
	SessionID  primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	StudentID  primitive.ObjectID `bson:"studentId" json:"studentId"`
	Present    bool               `bson:"present" json:"present"`
	RecordedAt time.Time          `bson:"recordedAt" json:"recordedAt"`
}
