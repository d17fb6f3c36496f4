package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
)

// Store ports implemented by internal/store. Lookups return (nil, nil) when
// the document does not exist; mutations that lose a conditional update
// return ConflictError, and store-level failures surface as StorageError.

type TellerDirectory interface {
	// GetTeller returns the profile for one teller.
	GetTeller(ctx context.Context, id bson.ObjectID) (*model.Teller, error)
	// ListPool returns every approved teller eligible for rotation
	// (roles teller and supervisor_teller).
	ListPool(ctx context.Context) ([]model.Teller, error)
	// ListTellers returns the profiles for the given ids; unknown ids are
	// simply omitted.
	ListTellers(ctx context.Context, ids []bson.ObjectID) ([]model.Teller, error)
	// AddWorkDay advances last_worked to dayKey (never backwards) and
	// increments total_work_days by one.
	AddWorkDay(ctx context.Context, id bson.ObjectID, dayKey string) error
	// RemoveWorkDay decrements total_work_days, used when a present mark is
	// corrected to absent. A zero counter stays zero.
	RemoveWorkDay(ctx context.Context, id bson.ObjectID) error
	// SetLastWorked overwrites last_worked, clearing it when dayKey is
	// empty. Used when a correction invalidates the cached maximum.
	SetLastWorked(ctx context.Context, id bson.ObjectID, dayKey string) error
	// SetSkipUntil extends the penalty horizon. The update is conditional:
	// it only applies when the new horizon is later than the current one,
	// and reports whether it did.
	SetSkipUntil(ctx context.Context, id bson.ObjectID, until, reason string) (bool, error)
	// ClearSkipUntil removes the penalty horizon unconditionally.
	ClearSkipUntil(ctx context.Context, id bson.ObjectID) error
}

type AttendanceStore interface {
	// Mark upserts the attendance record for (tellerID, dayKey) and returns
	// the status it had before, or "" when the record was just created.
	Mark(ctx context.Context, tellerID bson.ObjectID, dayKey string, status model.AttendanceStatus, reason string, penaltyDays int) (model.AttendanceStatus, error)
	// EnsurePending creates a pending record if none exists yet; an existing
	// record is left untouched.
	EnsurePending(ctx context.Context, tellerID bson.ObjectID, dayKey string) error
	// CountPresent counts days with a present record in [start, end].
	CountPresent(ctx context.Context, tellerID bson.ObjectID, start, end string) (int, error)
	// PresentDays lists the day keys with a present record in [start, end].
	PresentDays(ctx context.Context, tellerID bson.ObjectID, start, end string) ([]string, error)
}

type AssignmentStore interface {
	// Insert creates an assignment; a second assignment for the same
	// (teller_id, day_key) is a ConflictError.
	Insert(ctx context.Context, a *model.Assignment) error
	Get(ctx context.Context, id bson.ObjectID) (*model.Assignment, error)
	GetByTellerDay(ctx context.Context, tellerID bson.ObjectID, dayKey string) (*model.Assignment, error)
	ListDay(ctx context.Context, dayKey string) ([]model.Assignment, error)
	ListRange(ctx context.Context, start, end string) ([]model.Assignment, error)
	SetStatus(ctx context.Context, id bson.ObjectID, status model.AssignmentStatus) error
	// Swap changes the occupant of an assignment, conditional on the current
	// occupant still being from. The slot resets to pending for the new
	// teller. fullWeek overrides the is_full_week flag when non-nil and is
	// preserved otherwise. Losing the condition, or colliding with an
	// existing (to, day_key) assignment, is a ConflictError.
	Swap(ctx context.Context, id, from, to bson.ObjectID, toName string, fullWeek *bool) error
	// Delete removes the assignment and returns it; the attendance history
	// behind it is never touched.
	Delete(ctx context.Context, id bson.ObjectID) (*model.Assignment, error)
}

type FullWeekStore interface {
	GetSelection(ctx context.Context, weekKey string) (*model.FullWeekSelection, error)
	SaveSelection(ctx context.Context, sel *model.FullWeekSelection) error
	DeleteSelection(ctx context.Context, weekKey string) (int64, error)
	InsertAudit(ctx context.Context, audit *model.BatchAudit) error
	GetAudit(ctx context.Context, id bson.ObjectID) (*model.BatchAudit, error)
	ListAudits(ctx context.Context, weekKey string) ([]model.BatchAudit, error)
	// MarkReverted sets reverted_at, conditional on it being unset; it
	// reports whether this call consumed the audit.
	MarkReverted(ctx context.Context, id bson.ObjectID, at time.Time) (bool, error)
	// LockWeek inserts the short-lived "week is being applied" marker;
	// a second concurrent apply for the same week is a ConflictError.
	LockWeek(ctx context.Context, weekKey string) error
	UnlockWeek(ctx context.Context, weekKey string) error
}

type AbsenceStore interface {
	Insert(ctx context.Context, a *model.PlannedAbsence) error
	ListForTeller(ctx context.Context, tellerID bson.ObjectID) ([]model.PlannedAbsence, error)
	// ListCovering returns absences whose date range includes dayKey;
	// recurring weekday filtering is the caller's job via Covers.
	ListCovering(ctx context.Context, dayKey string) ([]model.PlannedAbsence, error)
	Delete(ctx context.Context, id bson.ObjectID) (*model.PlannedAbsence, error)
}
