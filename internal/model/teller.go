package model

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

type TellerRole string

const (
	RoleTeller           TellerRole = "teller"
	RoleSupervisorTeller TellerRole = "supervisor_teller"
)

const (
	TellerStatusPending  = "pending"
	TellerStatusApproved = "approved"
	TellerStatusRejected = "rejected"
)

// Teller is the identity subsystem's view of a teller. This service reads
// profiles and maintains only the rotation bookkeeping fields (last_worked,
// total_work_days, skip_until, last_absent_reason).
type Teller struct {
	ID               bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username         string        `bson:"username" json:"username"`
	Name             string        `bson:"name" json:"name"`
	Role             TellerRole    `bson:"role" json:"role"`
	Status           string        `bson:"status" json:"status"`
	LastWorked       string        `bson:"last_worked,omitempty" json:"last_worked,omitempty"` // YYYY-MM-DD
	TotalWorkDays    int           `bson:"total_work_days" json:"total_work_days"`
	SkipUntil        string        `bson:"skip_until,omitempty" json:"skip_until,omitempty"` // YYYY-MM-DD
	LastAbsentReason string        `bson:"last_absent_reason,omitempty" json:"last_absent_reason,omitempty"`
}

// DisplayName prefers the profile name, falling back to the login username.
func (t *Teller) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Username
}

// EligibleOn reports whether the teller may be scheduled on the given day,
// i.e. no penalty horizon extends past it. A teller with skip_until = D
// becomes eligible again on D itself.
func (t *Teller) EligibleOn(dayKey string) bool {
	return t.SkipUntil == "" || t.SkipUntil <= dayKey
}
