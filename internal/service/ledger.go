package service

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
)

// Ledger is the single source of truth for days worked. The cached
// total_work_days / last_worked fields on the teller profile are only ever
// touched here, alongside the attendance transition they summarize.
type Ledger struct {
	attendance AttendanceStore
	tellers    TellerDirectory
	penalties  *PenaltyTracker
}

func NewLedger(attendance AttendanceStore, tellers TellerDirectory, penalties *PenaltyTracker) *Ledger {
	return &Ledger{attendance: attendance, tellers: tellers, penalties: penalties}
}

// RecordWork marks (tellerID, dayKey) present. Re-marking an already-present
// day is a no-op: the lifetime counter is incremented exactly once per
// distinct day.
func (l *Ledger) RecordWork(ctx context.Context, tellerID bson.ObjectID, dayKey string) error {
	if !ValidDayKey(dayKey) {
		return &ValidationError{Msg: fmt.Sprintf("invalid day key %q", dayKey)}
	}

	prev, err := l.attendance.Mark(ctx, tellerID, dayKey, model.AttendanceStatusPresent, "", 0)
	if err != nil {
		return fmt.Errorf("mark present: %w", err)
	}
	if prev == model.AttendanceStatusPresent {
		return nil
	}
	if err := l.tellers.AddWorkDay(ctx, tellerID, dayKey); err != nil {
		return fmt.Errorf("update work history: %w", err)
	}
	return nil
}

// RecordAbsence marks (tellerID, dayKey) absent. reason is mandatory; a
// positive penaltyDays is forwarded to the penalty tracker anchored at asOf.
func (l *Ledger) RecordAbsence(ctx context.Context, tellerID bson.ObjectID, dayKey, reason string, penaltyDays int, asOf string) error {
	if strings.TrimSpace(reason) == "" {
		return &ValidationError{Msg: "absence reason is required"}
	}
	if penaltyDays < 0 {
		return &ValidationError{Msg: "penalty days cannot be negative"}
	}
	if !ValidDayKey(dayKey) {
		return &ValidationError{Msg: fmt.Sprintf("invalid day key %q", dayKey)}
	}

	prev, err := l.attendance.Mark(ctx, tellerID, dayKey, model.AttendanceStatusAbsent, reason, penaltyDays)
	if err != nil {
		return fmt.Errorf("mark absent: %w", err)
	}
	if prev == model.AttendanceStatusPresent {
		// The day had already been counted; take it back out.
		if err := l.tellers.RemoveWorkDay(ctx, tellerID); err != nil {
			return fmt.Errorf("rewind work history: %w", err)
		}
		if err := l.rewindLastWorked(ctx, tellerID, dayKey); err != nil {
			return err
		}
	}

	if penaltyDays > 0 {
		if _, err := l.penalties.Apply(ctx, tellerID, asOf, penaltyDays, reason); err != nil {
			return fmt.Errorf("apply penalty: %w", err)
		}
	}
	return nil
}

// rewindLastWorked recomputes the cached last_worked date after dayKey was
// corrected from present to absent. AddWorkDay only moves the cache forward,
// so a correction of the newest worked day would otherwise leave it stale.
func (l *Ledger) rewindLastWorked(ctx context.Context, tellerID bson.ObjectID, dayKey string) error {
	teller, err := l.tellers.GetTeller(ctx, tellerID)
	if err != nil {
		return fmt.Errorf("get teller: %w", err)
	}
	if teller == nil || teller.LastWorked != dayKey {
		return nil
	}
	days, err := l.attendance.PresentDays(ctx, tellerID, "0000-01-01", dayKey)
	if err != nil {
		return fmt.Errorf("list present days: %w", err)
	}
	last := ""
	if len(days) > 0 {
		last = days[len(days)-1]
	}
	if err := l.tellers.SetLastWorked(ctx, tellerID, last); err != nil {
		return fmt.Errorf("rewind last worked: %w", err)
	}
	return nil
}

// EnsurePending opens a pending ledger entry when a day gets scheduled.
func (l *Ledger) EnsurePending(ctx context.Context, tellerID bson.ObjectID, dayKey string) error {
	return l.attendance.EnsurePending(ctx, tellerID, dayKey)
}

// WorkedDaysInRange is a derived count over the ledger, never a stored
// aggregate. Used for display and as the ranker's fairness input.
func (l *Ledger) WorkedDaysInRange(ctx context.Context, tellerID bson.ObjectID, start, end string) (int, error) {
	n, err := l.attendance.CountPresent(ctx, tellerID, start, end)
	if err != nil {
		return 0, fmt.Errorf("count present: %w", err)
	}
	return n, nil
}

// PresentDays lists the worked day keys in [start, end].
func (l *Ledger) PresentDays(ctx context.Context, tellerID bson.ObjectID, start, end string) ([]string, error) {
	days, err := l.attendance.PresentDays(ctx, tellerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list present days: %w", err)
	}
	return days, nil
}
