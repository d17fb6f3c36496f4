package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
	"tellerops/internal/notifier"
)

// Rotation owns the day-keyed roster: who is scheduled to work, present,
// absent, replaced or removed. Every mutation is broadcast on the notifier
// port, fire-and-forget.
type Rotation struct {
	assignments AssignmentStore
	tellers     TellerDirectory
	ledger      *Ledger
	notify      notifier.Notifier
}

func NewRotation(assignments AssignmentStore, tellers TellerDirectory, ledger *Ledger, notify notifier.Notifier) *Rotation {
	return &Rotation{assignments: assignments, tellers: tellers, ledger: ledger, notify: notify}
}

// AssignForDate upserts assignments for the given tellers on dayKey. It only
// adds: tellers already assigned are left alone, and assignments for tellers
// missing from the list are never removed here.
func (s *Rotation) AssignForDate(ctx context.Context, dayKey string, tellerIDs []bson.ObjectID) ([]model.Assignment, error) {
	if !ValidDayKey(dayKey) {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid day key %q", dayKey)}
	}

	existing, err := s.assignments.ListDay(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("list day: %w", err)
	}
	assigned := make(map[bson.ObjectID]bool, len(existing))
	for _, a := range existing {
		assigned[a.TellerID] = true
	}

	var created []model.Assignment
	for _, id := range tellerIDs {
		if assigned[id] {
			continue
		}
		teller, err := s.tellers.GetTeller(ctx, id)
		if err != nil {
			return created, fmt.Errorf("get teller: %w", err)
		}
		if teller == nil {
			return created, &NotFoundError{Resource: "teller", ID: id.Hex()}
		}

		a := model.Assignment{
			TellerID:   id,
			TellerName: teller.DisplayName(),
			DayKey:     dayKey,
			Status:     model.AssignmentStatusPending,
		}
		if err := s.assignments.Insert(ctx, &a); err != nil {
			if IsConflict(err) {
				// Raced with a concurrent assign for the same teller; the
				// invariant held, nothing to do.
				continue
			}
			return created, fmt.Errorf("insert assignment: %w", err)
		}
		if err := s.ledger.EnsurePending(ctx, id, dayKey); err != nil {
			return created, fmt.Errorf("open attendance record: %w", err)
		}
		assigned[id] = true
		created = append(created, a)

		s.notify.Publish(ctx, notifier.Event{
			Type:       notifier.EventScheduleUpdated,
			DayKey:     dayKey,
			TellerID:   id.Hex(),
			TellerName: a.TellerName,
			Status:     string(model.AssignmentStatusPending),
		})
	}
	return created, nil
}

// MarkPresent transitions an assignment to present and books the worked day
// in the ledger. Idempotent: marking a present assignment again neither
// fails nor double-counts.
func (s *Rotation) MarkPresent(ctx context.Context, assignmentID bson.ObjectID) (*model.Assignment, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "assignment", ID: assignmentID.Hex()}
	}

	if err := s.ledger.RecordWork(ctx, a.TellerID, a.DayKey); err != nil {
		return nil, err
	}
	if err := s.assignments.SetStatus(ctx, assignmentID, model.AssignmentStatusPresent); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	a.Status = model.AssignmentStatusPresent

	s.notify.Publish(ctx, notifier.Event{
		Type:       notifier.EventScheduleUpdated,
		DayKey:     a.DayKey,
		TellerID:   a.TellerID.Hex(),
		TellerName: a.TellerName,
		Status:     string(a.Status),
	})
	return a, nil
}

// MarkAbsent transitions an assignment to absent with a mandatory reason,
// applying a penalty horizon anchored at asOf when penaltyDays > 0.
func (s *Rotation) MarkAbsent(ctx context.Context, assignmentID bson.ObjectID, reason string, penaltyDays int, asOf string) (*model.Assignment, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "assignment", ID: assignmentID.Hex()}
	}
	return s.markAbsent(ctx, a, reason, penaltyDays, asOf)
}

// MarkAbsentByDay is the teller+day form. The assignment is created first if
// the day was never scheduled, so the ledger keeps a row for the no-show.
func (s *Rotation) MarkAbsentByDay(ctx context.Context, tellerID bson.ObjectID, dayKey, reason string, penaltyDays int, asOf string) (*model.Assignment, error) {
	a, err := s.assignments.GetByTellerDay(ctx, tellerID, dayKey)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		created, err := s.AssignForDate(ctx, dayKey, []bson.ObjectID{tellerID})
		if err != nil {
			return nil, err
		}
		if len(created) == 1 {
			a = &created[0]
		} else if a, err = s.assignments.GetByTellerDay(ctx, tellerID, dayKey); err != nil {
			return nil, fmt.Errorf("get assignment: %w", err)
		}
		if a == nil {
			return nil, &NotFoundError{Resource: "assignment", ID: tellerID.Hex() + "/" + dayKey}
		}
	}
	return s.markAbsent(ctx, a, reason, penaltyDays, asOf)
}

func (s *Rotation) markAbsent(ctx context.Context, a *model.Assignment, reason string, penaltyDays int, asOf string) (*model.Assignment, error) {
	if err := s.ledger.RecordAbsence(ctx, a.TellerID, a.DayKey, reason, penaltyDays, asOf); err != nil {
		return nil, err
	}
	if err := s.assignments.SetStatus(ctx, a.ID, model.AssignmentStatusAbsent); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	a.Status = model.AssignmentStatusAbsent

	s.notify.Publish(ctx, notifier.Event{
		Type:       notifier.EventScheduleUpdated,
		DayKey:     a.DayKey,
		TellerID:   a.TellerID.Hex(),
		TellerName: a.TellerName,
		Status:     string(a.Status),
		Detail:     reason,
	})
	return a, nil
}

// Replace swaps the occupant of an assignment, preserving the assignment id
// and its full-week flag. The replacement must not already hold an
// assignment for the same day.
func (s *Rotation) Replace(ctx context.Context, assignmentID, replacementID bson.ObjectID) (*model.Assignment, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "assignment", ID: assignmentID.Hex()}
	}

	replacement, err := s.tellers.GetTeller(ctx, replacementID)
	if err != nil {
		return nil, fmt.Errorf("get replacement: %w", err)
	}
	if replacement == nil {
		return nil, &NotFoundError{Resource: "teller", ID: replacementID.Hex()}
	}

	taken, err := s.assignments.GetByTellerDay(ctx, replacementID, a.DayKey)
	if err != nil {
		return nil, fmt.Errorf("check replacement day: %w", err)
	}
	if taken != nil {
		return nil, &ConflictError{Msg: fmt.Sprintf("%s already has an assignment on %s", replacement.DisplayName(), a.DayKey)}
	}

	// nil flag: keep is_full_week as-is. The unique (teller_id, day_key)
	// index backstops the check above against races.
	if err := s.assignments.Swap(ctx, assignmentID, a.TellerID, replacementID, replacement.DisplayName(), nil); err != nil {
		return nil, err
	}
	if err := s.ledger.EnsurePending(ctx, replacementID, a.DayKey); err != nil {
		return nil, fmt.Errorf("open attendance record: %w", err)
	}

	a.TellerID = replacementID
	a.TellerName = replacement.DisplayName()
	a.Status = model.AssignmentStatusPending

	s.notify.Publish(ctx, notifier.Event{
		Type:       notifier.EventScheduleUpdated,
		DayKey:     a.DayKey,
		TellerID:   a.TellerID.Hex(),
		TellerName: a.TellerName,
		Status:     "replaced",
	})
	return a, nil
}

// Remove deletes an assignment. The attendance history behind it survives
// roster edits.
func (s *Rotation) Remove(ctx context.Context, assignmentID bson.ObjectID) (*model.Assignment, error) {
	a, err := s.assignments.Delete(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("delete assignment: %w", err)
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "assignment", ID: assignmentID.Hex()}
	}

	s.notify.Publish(ctx, notifier.Event{
		Type:       notifier.EventScheduleUpdated,
		DayKey:     a.DayKey,
		TellerID:   a.TellerID.Hex(),
		TellerName: a.TellerName,
		Status:     "removed",
	})
	return a, nil
}

// ListForRange returns assignments with day keys in [start, end], each
// annotated with its worked-day count over that same window.
func (s *Rotation) ListForRange(ctx context.Context, start, end string) ([]model.Assignment, error) {
	if !ValidDayKey(start) || !ValidDayKey(end) {
		return nil, &ValidationError{Msg: "invalid range"}
	}
	if end < start {
		return nil, &ValidationError{Msg: "range end precedes start"}
	}

	assignments, err := s.assignments.ListRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}

	counts := make(map[bson.ObjectID]int)
	for i := range assignments {
		id := assignments[i].TellerID
		if _, ok := counts[id]; !ok {
			n, err := s.ledger.WorkedDaysInRange(ctx, id, start, end)
			if err != nil {
				return nil, err
			}
			counts[id] = n
		}
		assignments[i].RangeWorkDays = counts[id]
	}
	return assignments, nil
}
