package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type AssignmentStatus string

const (
	AssignmentStatusPending AssignmentStatus = "pending"
	AssignmentStatusPresent AssignmentStatus = "present"
	AssignmentStatusAbsent  AssignmentStatus = "absent"
)

// Assignment is one scheduled-to-work slot: a single teller on a single day.
// At most one assignment exists per (teller_id, day_key); the store enforces
// this with a unique compound index.
type Assignment struct {
	ID         bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	TellerID   bson.ObjectID    `bson:"teller_id" json:"teller_id"`
	TellerName string           `bson:"teller_name" json:"teller_name"` // snapshot at assignment time
	DayKey     string           `bson:"day_key" json:"day_key"`         // YYYY-MM-DD
	Status     AssignmentStatus `bson:"status" json:"status"`
	IsFullWeek bool             `bson:"is_full_week" json:"is_full_week"`
	CreatedAt  time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `bson:"updated_at" json:"updated_at"`

	// RangeWorkDays is recomputed per query against the attendance ledger
	// and never stored.
	RangeWorkDays int `bson:"-" json:"range_work_days"`
}

type AttendanceStatus string

const (
	AttendanceStatusPending AttendanceStatus = "pending"
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// AttendanceRecord is the ledger entry behind an assignment. It outlives
// roster edits: removing an assignment does not delete its attendance
// history.
type AttendanceRecord struct {
	ID          bson.ObjectID    `bson:"_id,omitempty" json:"id"`
	TellerID    bson.ObjectID    `bson:"teller_id" json:"teller_id"`
	DayKey      string           `bson:"day_key" json:"day_key"`
	Status      AttendanceStatus `bson:"status" json:"status"`
	Reason      string           `bson:"reason,omitempty" json:"reason,omitempty"`
	PenaltyDays int              `bson:"penalty_days,omitempty" json:"penalty_days,omitempty"`
	CreatedAt   time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `bson:"updated_at" json:"updated_at"`
}
