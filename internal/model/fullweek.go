package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	SelectionStatusDraft   = "draft"
	SelectionStatusApplied = "applied"
)

// FullWeekSelection is the declared roster for one ISO week, keyed by the
// Monday date. tellers.length never exceeds Count; Count = 0 means no cap.
type FullWeekSelection struct {
	ID        bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	WeekKey   string          `bson:"week_key" json:"week_key"` // Monday, YYYY-MM-DD
	TellerIDs []bson.ObjectID `bson:"teller_ids" json:"teller_ids"`
	Count     int             `bson:"count" json:"count"`
	Status    string          `bson:"status" json:"status"`
	CreatedAt time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time       `bson:"updated_at" json:"updated_at"`
}

type BatchAction string

const (
	BatchActionReplace BatchAction = "replace"
	BatchActionAppend  BatchAction = "append"
)

// BatchOp is one atomic mutation in a full-week plan. A replace carries the
// previous occupant so the operation can be reversed exactly; an append is
// reversed by deleting the assignment it created.
type BatchOp struct {
	Action         BatchAction   `bson:"action" json:"action"`
	DayKey         string        `bson:"day_key" json:"day_key"`
	AssignmentID   bson.ObjectID `bson:"assignment_id,omitempty" json:"assignment_id,omitempty"`
	FromTellerID   bson.ObjectID `bson:"from_teller_id,omitempty" json:"from_teller_id,omitempty"`
	FromTellerName string        `bson:"from_teller_name,omitempty" json:"from_teller_name,omitempty"`
	FromFullWeek   bool          `bson:"from_full_week,omitempty" json:"from_full_week,omitempty"`
	ToTellerID     bson.ObjectID `bson:"to_teller_id" json:"to_teller_id"`
	ToTellerName   string        `bson:"to_teller_name" json:"to_teller_name"`
}

// BatchAudit records one applied full-week batch so it can be undone once.
// reverted_at is set at most once; a second undo is a conflict.
type BatchAudit struct {
	ID         bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	WeekKey    string          `bson:"week_key" json:"week_key"`
	TellerIDs  []bson.ObjectID `bson:"teller_ids" json:"teller_ids"`
	Count      int             `bson:"count" json:"count"`
	Ops        []BatchOp       `bson:"ops" json:"ops"`
	CreatedAt  time.Time       `bson:"created_at" json:"created_at"`
	RevertedAt *time.Time      `bson:"reverted_at,omitempty" json:"reverted_at,omitempty"`
}

// Reverted reports whether the audit has already been consumed by an undo.
func (a *BatchAudit) Reverted() bool {
	return a.RevertedAt != nil
}
