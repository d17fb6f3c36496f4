package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PlannedAbsence is a teller-submitted unavailability window. A recurring
// absence applies only on the listed weekdays inside [start_date, end_date];
// a plain one covers every day in the range.
type PlannedAbsence struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TellerID    bson.ObjectID `bson:"teller_id" json:"teller_id"`
	TellerName  string        `bson:"teller_name" json:"teller_name"`
	StartDate   string        `bson:"start_date" json:"start_date"` // YYYY-MM-DD
	EndDate     string        `bson:"end_date" json:"end_date"`     // YYYY-MM-DD
	Reason      string        `bson:"reason" json:"reason"`
	DaysOfWeek  []string      `bson:"days_of_week,omitempty" json:"days_of_week,omitempty"` // "Monday".."Sunday"
	IsRecurring bool          `bson:"is_recurring" json:"is_recurring"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
}

// Covers reports whether the absence applies on the given day.
func (a *PlannedAbsence) Covers(dayKey string) bool {
	if dayKey < a.StartDate || dayKey > a.EndDate {
		return false
	}
	if !a.IsRecurring {
		return true
	}
	d, err := time.Parse(time.DateOnly, dayKey)
	if err != nil {
		return false
	}
	weekday := d.Weekday().String()
	for _, name := range a.DaysOfWeek {
		if name == weekday {
			return true
		}
	}
	return false
}
