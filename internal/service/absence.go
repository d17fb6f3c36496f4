package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
	"tellerops/internal/notifier"
)

// AbsencePlanner records teller-submitted unavailability windows, the
// read-only eligibility input the ranker consults.
type AbsencePlanner struct {
	absences AbsenceStore
	tellers  TellerDirectory
	notify   notifier.Notifier
}

func NewAbsencePlanner(absences AbsenceStore, tellers TellerDirectory, notify notifier.Notifier) *AbsencePlanner {
	return &AbsencePlanner{absences: absences, tellers: tellers, notify: notify}
}

// Plan registers an absence window for a teller.
func (s *AbsencePlanner) Plan(ctx context.Context, tellerID bson.ObjectID, startDate, endDate, reason string, daysOfWeek []string, recurring bool) (*model.PlannedAbsence, error) {
	if !ValidDayKey(startDate) || !ValidDayKey(endDate) {
		return nil, &ValidationError{Msg: "start and end dates are required as YYYY-MM-DD"}
	}
	if endDate < startDate {
		return nil, &ValidationError{Msg: "end date precedes start date"}
	}
	if recurring && len(daysOfWeek) == 0 {
		return nil, &ValidationError{Msg: "recurring absence needs at least one weekday"}
	}

	teller, err := s.tellers.GetTeller(ctx, tellerID)
	if err != nil {
		return nil, fmt.Errorf("get teller: %w", err)
	}
	if teller == nil {
		return nil, &NotFoundError{Resource: "teller", ID: tellerID.Hex()}
	}

	if reason == "" {
		reason = "Personal"
	}
	absence := &model.PlannedAbsence{
		TellerID:    tellerID,
		TellerName:  teller.DisplayName(),
		StartDate:   startDate,
		EndDate:     endDate,
		Reason:      reason,
		DaysOfWeek:  daysOfWeek,
		IsRecurring: recurring,
	}
	if err := s.absences.Insert(ctx, absence); err != nil {
		return nil, fmt.Errorf("insert absence: %w", err)
	}

	s.notify.Publish(ctx, notifier.Event{
		Type:       notifier.EventAbsencePlanned,
		TellerID:   tellerID.Hex(),
		TellerName: absence.TellerName,
		Detail:     startDate + ".." + endDate,
	})
	return absence, nil
}

// ListForTeller returns a teller's planned absences, newest window first.
func (s *AbsencePlanner) ListForTeller(ctx context.Context, tellerID bson.ObjectID) ([]model.PlannedAbsence, error) {
	absences, err := s.absences.ListForTeller(ctx, tellerID)
	if err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	return absences, nil
}

// IsAbsent reports whether the teller has a submitted absence covering
// dayKey.
func (s *AbsencePlanner) IsAbsent(ctx context.Context, tellerID bson.ObjectID, dayKey string) (bool, error) {
	absences, err := s.absences.ListCovering(ctx, dayKey)
	if err != nil {
		return false, fmt.Errorf("list covering: %w", err)
	}
	for i := range absences {
		if absences[i].TellerID == tellerID && absences[i].Covers(dayKey) {
			return true, nil
		}
	}
	return false, nil
}

// Cancel removes a planned absence.
func (s *AbsencePlanner) Cancel(ctx context.Context, absenceID bson.ObjectID) (*model.PlannedAbsence, error) {
	absence, err := s.absences.Delete(ctx, absenceID)
	if err != nil {
		return nil, fmt.Errorf("delete absence: %w", err)
	}
	if absence == nil {
		return nil, &NotFoundError{Resource: "absence", ID: absenceID.Hex()}
	}
	return absence, nil
}
