package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
)

// In-memory fakes of the store ports, mirroring the conditional-update
// semantics the Mongo stores provide.

type memTellers struct {
	byID map[bson.ObjectID]*model.Teller
}

func newMemTellers(tellers ...model.Teller) *memTellers {
	m := &memTellers{byID: make(map[bson.ObjectID]*model.Teller)}
	for i := range tellers {
		t := tellers[i]
		m.byID[t.ID] = &t
	}
	return m
}

func (m *memTellers) GetTeller(_ context.Context, id bson.ObjectID) (*model.Teller, error) {
	t, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memTellers) ListPool(_ context.Context) ([]model.Teller, error) {
	var pool []model.Teller
	for _, t := range m.byID {
		if t.Status != model.TellerStatusApproved {
			continue
		}
		if t.Role != model.RoleTeller && t.Role != model.RoleSupervisorTeller {
			continue
		}
		pool = append(pool, *t)
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID.Hex() < pool[j].ID.Hex() })
	return pool, nil
}

func (m *memTellers) ListTellers(_ context.Context, ids []bson.ObjectID) ([]model.Teller, error) {
	var out []model.Teller
	for _, id := range ids {
		if t, ok := m.byID[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTellers) AddWorkDay(_ context.Context, id bson.ObjectID, dayKey string) error {
	t, ok := m.byID[id]
	if !ok {
		return &NotFoundError{Resource: "teller", ID: id.Hex()}
	}
	if dayKey > t.LastWorked {
		t.LastWorked = dayKey
	}
	t.TotalWorkDays++
	return nil
}

func (m *memTellers) RemoveWorkDay(_ context.Context, id bson.ObjectID) error {
	t, ok := m.byID[id]
	if !ok {
		return &NotFoundError{Resource: "teller", ID: id.Hex()}
	}
	if t.TotalWorkDays > 0 {
		t.TotalWorkDays--
	}
	return nil
}

func (m *memTellers) SetLastWorked(_ context.Context, id bson.ObjectID, dayKey string) error {
	t, ok := m.byID[id]
	if !ok {
		return &NotFoundError{Resource: "teller", ID: id.Hex()}
	}
	t.LastWorked = dayKey
	return nil
}

func (m *memTellers) SetSkipUntil(_ context.Context, id bson.ObjectID, until, reason string) (bool, error) {
	t, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if t.SkipUntil != "" && t.SkipUntil >= until {
		return false, nil
	}
	t.SkipUntil = until
	t.LastAbsentReason = reason
	return true, nil
}

func (m *memTellers) ClearSkipUntil(_ context.Context, id bson.ObjectID) error {
	if t, ok := m.byID[id]; ok {
		t.SkipUntil = ""
	}
	return nil
}

type memAttendance struct {
	records map[string]*model.AttendanceRecord
}

func newMemAttendance() *memAttendance {
	return &memAttendance{records: make(map[string]*model.AttendanceRecord)}
}

func attKey(tellerID bson.ObjectID, dayKey string) string {
	return tellerID.Hex() + "|" + dayKey
}

func (m *memAttendance) Mark(_ context.Context, tellerID bson.ObjectID, dayKey string, status model.AttendanceStatus, reason string, penaltyDays int) (model.AttendanceStatus, error) {
	key := attKey(tellerID, dayKey)
	prev := model.AttendanceStatus("")
	if r, ok := m.records[key]; ok {
		prev = r.Status
		r.Status = status
		r.Reason = reason
		r.PenaltyDays = penaltyDays
		return prev, nil
	}
	m.records[key] = &model.AttendanceRecord{
		TellerID:    tellerID,
		DayKey:      dayKey,
		Status:      status,
		Reason:      reason,
		PenaltyDays: penaltyDays,
	}
	return prev, nil
}

func (m *memAttendance) EnsurePending(_ context.Context, tellerID bson.ObjectID, dayKey string) error {
	key := attKey(tellerID, dayKey)
	if _, ok := m.records[key]; !ok {
		m.records[key] = &model.AttendanceRecord{
			TellerID: tellerID,
			DayKey:   dayKey,
			Status:   model.AttendanceStatusPending,
		}
	}
	return nil
}

func (m *memAttendance) CountPresent(ctx context.Context, tellerID bson.ObjectID, start, end string) (int, error) {
	days, _ := m.PresentDays(ctx, tellerID, start, end)
	return len(days), nil
}

func (m *memAttendance) PresentDays(_ context.Context, tellerID bson.ObjectID, start, end string) ([]string, error) {
	var days []string
	for _, r := range m.records {
		if r.TellerID == tellerID && r.Status == model.AttendanceStatusPresent && r.DayKey >= start && r.DayKey <= end {
			days = append(days, r.DayKey)
		}
	}
	sort.Strings(days)
	return days, nil
}

type memAssignments struct {
	list []*model.Assignment
}

func newMemAssignments() *memAssignments { return &memAssignments{} }

func (m *memAssignments) find(id bson.ObjectID) *model.Assignment {
	for _, a := range m.list {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *memAssignments) Insert(_ context.Context, a *model.Assignment) error {
	for _, cur := range m.list {
		if cur.TellerID == a.TellerID && cur.DayKey == a.DayKey {
			return &ConflictError{Msg: "duplicate assignment"}
		}
	}
	a.ID = bson.NewObjectID()
	a.CreatedAt = time.Now()
	cp := *a
	m.list = append(m.list, &cp)
	return nil
}

func (m *memAssignments) Get(_ context.Context, id bson.ObjectID) (*model.Assignment, error) {
	a := m.find(id)
	if a == nil {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memAssignments) GetByTellerDay(_ context.Context, tellerID bson.ObjectID, dayKey string) (*model.Assignment, error) {
	for _, a := range m.list {
		if a.TellerID == tellerID && a.DayKey == dayKey {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAssignments) ListDay(_ context.Context, dayKey string) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range m.list {
		if a.DayKey == dayKey {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAssignments) ListRange(_ context.Context, start, end string) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range m.list {
		if a.DayKey >= start && a.DayKey <= end {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayKey < out[j].DayKey })
	return out, nil
}

func (m *memAssignments) SetStatus(_ context.Context, id bson.ObjectID, status model.AssignmentStatus) error {
	a := m.find(id)
	if a == nil {
		return &NotFoundError{Resource: "assignment", ID: id.Hex()}
	}
	a.Status = status
	return nil
}

func (m *memAssignments) Swap(_ context.Context, id, from, to bson.ObjectID, toName string, fullWeek *bool) error {
	a := m.find(id)
	if a == nil || a.TellerID != from {
		return &ConflictError{Msg: "assignment changed concurrently"}
	}
	for _, cur := range m.list {
		if cur.ID != id && cur.TellerID == to && cur.DayKey == a.DayKey {
			return &ConflictError{Msg: "replacement already assigned"}
		}
	}
	a.TellerID = to
	a.TellerName = toName
	a.Status = model.AssignmentStatusPending
	if fullWeek != nil {
		a.IsFullWeek = *fullWeek
	}
	return nil
}

func (m *memAssignments) Delete(_ context.Context, id bson.ObjectID) (*model.Assignment, error) {
	for i, a := range m.list {
		if a.ID == id {
			cp := *a
			m.list = append(m.list[:i], m.list[i+1:]...)
			return &cp, nil
		}
	}
	return nil, nil
}

type memWeeks struct {
	selections map[string]*model.FullWeekSelection
	audits     []*model.BatchAudit
	locks      map[string]bool
}

func newMemWeeks() *memWeeks {
	return &memWeeks{
		selections: make(map[string]*model.FullWeekSelection),
		locks:      make(map[string]bool),
	}
}

func (m *memWeeks) GetSelection(_ context.Context, weekKey string) (*model.FullWeekSelection, error) {
	sel, ok := m.selections[weekKey]
	if !ok {
		return nil, nil
	}
	cp := *sel
	return &cp, nil
}

func (m *memWeeks) SaveSelection(_ context.Context, sel *model.FullWeekSelection) error {
	cp := *sel
	m.selections[sel.WeekKey] = &cp
	return nil
}

func (m *memWeeks) DeleteSelection(_ context.Context, weekKey string) (int64, error) {
	if _, ok := m.selections[weekKey]; !ok {
		return 0, nil
	}
	delete(m.selections, weekKey)
	return 1, nil
}

func (m *memWeeks) InsertAudit(_ context.Context, audit *model.BatchAudit) error {
	audit.ID = bson.NewObjectID()
	audit.CreatedAt = time.Now()
	cp := *audit
	m.audits = append(m.audits, &cp)
	return nil
}

func (m *memWeeks) GetAudit(_ context.Context, id bson.ObjectID) (*model.BatchAudit, error) {
	for _, a := range m.audits {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memWeeks) ListAudits(_ context.Context, weekKey string) ([]model.BatchAudit, error) {
	var out []model.BatchAudit
	for i := len(m.audits) - 1; i >= 0; i-- {
		if weekKey == "" || m.audits[i].WeekKey == weekKey {
			out = append(out, *m.audits[i])
		}
	}
	return out, nil
}

func (m *memWeeks) MarkReverted(_ context.Context, id bson.ObjectID, at time.Time) (bool, error) {
	for _, a := range m.audits {
		if a.ID == id {
			if a.RevertedAt != nil {
				return false, nil
			}
			t := at
			a.RevertedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (m *memWeeks) LockWeek(_ context.Context, weekKey string) error {
	if m.locks[weekKey] {
		return &ConflictError{Msg: fmt.Sprintf("week %s is being applied", weekKey)}
	}
	m.locks[weekKey] = true
	return nil
}

func (m *memWeeks) UnlockWeek(_ context.Context, weekKey string) error {
	delete(m.locks, weekKey)
	return nil
}

type memAbsences struct {
	list []*model.PlannedAbsence
}

func newMemAbsences() *memAbsences { return &memAbsences{} }

func (m *memAbsences) Insert(_ context.Context, a *model.PlannedAbsence) error {
	a.ID = bson.NewObjectID()
	cp := *a
	m.list = append(m.list, &cp)
	return nil
}

func (m *memAbsences) ListForTeller(_ context.Context, tellerID bson.ObjectID) ([]model.PlannedAbsence, error) {
	var out []model.PlannedAbsence
	for _, a := range m.list {
		if a.TellerID == tellerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAbsences) ListCovering(_ context.Context, dayKey string) ([]model.PlannedAbsence, error) {
	var out []model.PlannedAbsence
	for _, a := range m.list {
		if a.StartDate <= dayKey && dayKey <= a.EndDate {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAbsences) Delete(_ context.Context, id bson.ObjectID) (*model.PlannedAbsence, error) {
	for i, a := range m.list {
		if a.ID == id {
			cp := *a
			m.list = append(m.list[:i], m.list[i+1:]...)
			return &cp, nil
		}
	}
	return nil, nil
}
