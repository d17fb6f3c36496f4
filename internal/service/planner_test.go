package service

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
	"tellerops/internal/notifier"
)

type plannerFixture struct {
	tellers     *memTellers
	assignments *memAssignments
	weeks       *memWeeks
	ledger      *Ledger
	planner     *Planner
	rotation    *Rotation
}

func newPlannerFixture(tellers ...model.Teller) *plannerFixture {
	dir := newMemTellers(tellers...)
	asn := newMemAssignments()
	weeks := newMemWeeks()
	ledger := NewLedger(newMemAttendance(), dir, NewPenaltyTracker(dir))
	return &plannerFixture{
		tellers:     dir,
		assignments: asn,
		weeks:       weeks,
		ledger:      ledger,
		planner:     NewPlanner(asn, dir, weeks, ledger, notifier.Nop{}),
		rotation:    NewRotation(asn, dir, ledger, notifier.Nop{}),
	}
}

const (
	mon = "2025-06-02"
	tue = "2025-06-03"
	wed = "2025-06-04"
	sun = "2025-06-08"
)

func TestPreviewReplacesBeforeAppending(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	b := approvedTeller(oid(2), "b")
	x := approvedTeller(oid(3), "x")
	f := newPlannerFixture(a, b, x)

	// Tuesday already has the non-roster teller x; Wednesday already has a.
	f.rotation.AssignForDate(ctx, tue, []bson.ObjectID{x.ID})
	f.rotation.AssignForDate(ctx, wed, []bson.ObjectID{a.ID})

	plan, err := f.planner.Preview(ctx, mon, []bson.ObjectID{a.ID, b.ID}, 2, mon)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	var tueOps, wedOps []model.BatchOp
	for _, op := range plan {
		switch op.DayKey {
		case mon:
			t.Errorf("plan touches %s, on or before as-of", op.DayKey)
		case tue:
			tueOps = append(tueOps, op)
		case wed:
			wedOps = append(wedOps, op)
		}
	}

	// Tuesday: x's slot is reused for a, then b appends.
	if len(tueOps) != 2 {
		t.Fatalf("tuesday ops = %d, want 2", len(tueOps))
	}
	if tueOps[0].Action != model.BatchActionReplace || tueOps[0].FromTellerID != x.ID || tueOps[0].ToTellerID != a.ID {
		t.Errorf("tuesday[0] = %+v, want replace x->a", tueOps[0])
	}
	if tueOps[1].Action != model.BatchActionAppend || tueOps[1].ToTellerID != b.ID {
		t.Errorf("tuesday[1] = %+v, want append b", tueOps[1])
	}

	// Wednesday: a is already placed and is never a victim; only b appends.
	if len(wedOps) != 1 || wedOps[0].Action != model.BatchActionAppend || wedOps[0].ToTellerID != b.ID {
		t.Errorf("wednesday ops = %+v, want a single append of b", wedOps)
	}

	// Thursday through Sunday are empty: two appends per day.
	if want := 2 + 1 + 4*2; len(plan) != want {
		t.Errorf("plan size = %d, want %d", len(plan), want)
	}
}

func TestPreviewVictimOrder(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	recent := approvedTeller(oid(4), "recent")
	recent.LastWorked = "2025-06-01"
	stale := approvedTeller(oid(5), "stale")
	stale.LastWorked = "2025-05-20"
	anchored := approvedTeller(oid(6), "anchored")
	f := newPlannerFixture(a, recent, stale, anchored)

	f.rotation.AssignForDate(ctx, tue, []bson.ObjectID{recent.ID, stale.ID})
	// Full-week slots are never rotated out.
	fw := model.Assignment{TellerID: anchored.ID, TellerName: "anchored", DayKey: tue, Status: model.AssignmentStatusPending, IsFullWeek: true}
	f.assignments.Insert(ctx, &fw)

	plan, err := f.planner.Preview(ctx, mon, []bson.ObjectID{a.ID}, 0, mon)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	var tueOps []model.BatchOp
	for _, op := range plan {
		if op.DayKey == tue {
			tueOps = append(tueOps, op)
		}
	}
	if len(tueOps) != 1 {
		t.Fatalf("tuesday ops = %d, want 1", len(tueOps))
	}
	// The most recently worked occupant is the first victim.
	if tueOps[0].Action != model.BatchActionReplace || tueOps[0].FromTellerID != recent.ID {
		t.Errorf("victim = %+v, want replace of the recently worked teller", tueOps[0])
	}
}

func TestPreviewSkipsIneligibleRosterMembers(t *testing.T) {
	ctx := context.Background()
	blocked := approvedTeller(oid(1), "blocked")
	blocked.SkipUntil = "2025-06-05" // eligible again Thursday
	f := newPlannerFixture(blocked)

	plan, err := f.planner.Preview(ctx, mon, []bson.ObjectID{blocked.ID}, 0, mon)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	for _, op := range plan {
		if op.DayKey < "2025-06-05" {
			t.Errorf("penalized teller planned on %s before the horizon", op.DayKey)
		}
	}
	if len(plan) != 4 { // Thu, Fri, Sat, Sun
		t.Errorf("plan size = %d, want 4", len(plan))
	}
}

func TestPreviewValidation(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	b := approvedTeller(oid(2), "b")
	f := newPlannerFixture(a, b)

	if _, err := f.planner.Preview(ctx, mon, []bson.ObjectID{a.ID, b.ID}, 1, mon); !IsValidation(err) {
		t.Errorf("roster larger than count: err = %v, want ValidationError", err)
	}
	if _, err := f.planner.Preview(ctx, mon, []bson.ObjectID{oid(9)}, 0, mon); !IsNotFound(err) {
		t.Errorf("unknown roster teller: err = %v, want NotFoundError", err)
	}
	if _, err := f.planner.Preview(ctx, "bad", []bson.ObjectID{a.ID}, 0, mon); !IsValidation(err) {
		t.Errorf("bad week key: err = %v, want ValidationError", err)
	}
}

func TestApplyRealizesPlanAndWritesAudit(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	x := approvedTeller(oid(3), "x")
	f := newPlannerFixture(a, x)
	f.rotation.AssignForDate(ctx, tue, []bson.ObjectID{x.ID})

	result, err := f.planner.Apply(ctx, mon, []bson.ObjectID{a.ID}, 0, mon)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("failed ops: %+v", result.Failed)
	}
	// Tue replace + Wed..Sun appends.
	if len(result.Applied) != 6 {
		t.Errorf("applied = %d, want 6", len(result.Applied))
	}

	// Tuesday's slot now belongs to a, flagged full-week.
	day, _ := f.assignments.ListDay(ctx, tue)
	if len(day) != 1 || day[0].TellerID != a.ID || !day[0].IsFullWeek {
		t.Errorf("tuesday = %+v, want a's full-week slot", day)
	}

	audit, _ := f.weeks.GetAudit(ctx, result.AuditID)
	if audit == nil {
		t.Fatal("audit not written")
	}
	if len(audit.Ops) != len(result.Applied) {
		t.Errorf("audit ops = %d, want %d", len(audit.Ops), len(result.Applied))
	}

	sel, _ := f.weeks.GetSelection(ctx, mon)
	if sel == nil || sel.Status != model.SelectionStatusApplied {
		t.Errorf("selection = %+v, want status applied", sel)
	}

	// The apply lock is released.
	if err := f.weeks.LockWeek(ctx, mon); err != nil {
		t.Errorf("lock still held after apply: %v", err)
	}
}

func TestApplyRejectsConcurrentWeek(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	f := newPlannerFixture(a)

	f.weeks.LockWeek(ctx, mon)
	_, err := f.planner.Apply(ctx, mon, []bson.ObjectID{a.ID}, 0, mon)
	if !IsConflict(err) {
		t.Errorf("err = %v, want ConflictError while another apply runs", err)
	}
}

// flakyAssignments fails every Insert after the first n.
type flakyAssignments struct {
	*memAssignments
	allowed int
}

func (f *flakyAssignments) Insert(ctx context.Context, a *model.Assignment) error {
	if f.allowed <= 0 {
		return &StorageError{Op: "insert assignment", Err: errors.New("store down")}
	}
	f.allowed--
	return f.memAssignments.Insert(ctx, a)
}

func TestApplyPartialFailureKeepsAppliedOpsInAudit(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	dir := newMemTellers(a)
	asn := &flakyAssignments{memAssignments: newMemAssignments(), allowed: 2}
	weeks := newMemWeeks()
	ledger := NewLedger(newMemAttendance(), dir, NewPenaltyTracker(dir))
	planner := NewPlanner(asn, dir, weeks, ledger, notifier.Nop{})

	result, err := planner.Apply(ctx, mon, []bson.ObjectID{a.ID}, 0, mon)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Applied) != 2 {
		t.Errorf("applied = %d, want 2 before the failure", len(result.Applied))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("failed = %d, want 1; execution stops at the first failure", len(result.Failed))
	}

	audit, _ := weeks.GetAudit(ctx, result.AuditID)
	if audit == nil || len(audit.Ops) != 2 {
		t.Fatalf("audit = %+v, want the 2 applied ops recorded", audit)
	}
}

func TestUndoRestoresPreviousState(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	x := approvedTeller(oid(3), "x")
	f := newPlannerFixture(a, x)
	f.rotation.AssignForDate(ctx, tue, []bson.ObjectID{x.ID})

	result, err := f.planner.Apply(ctx, mon, []bson.ObjectID{a.ID}, 0, mon)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	undo, err := f.planner.Undo(ctx, result.AuditID)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !undo.Reverted {
		t.Fatalf("undo incomplete: %+v", undo.Results)
	}

	// Tuesday belongs to x again, not flagged full-week.
	day, _ := f.assignments.ListDay(ctx, tue)
	if len(day) != 1 || day[0].TellerID != x.ID || day[0].IsFullWeek {
		t.Errorf("tuesday after undo = %+v, want x's original slot", day)
	}

	// Appended days are gone.
	for _, dayKey := range DaysBetween(wed, sun) {
		got, _ := f.assignments.ListDay(ctx, dayKey)
		if len(got) != 0 {
			t.Errorf("%s still has %d assignments after undo", dayKey, len(got))
		}
	}
}

func TestUndoConsumesAuditOnce(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	f := newPlannerFixture(a)

	result, _ := f.planner.Apply(ctx, mon, []bson.ObjectID{a.ID}, 0, mon)
	if _, err := f.planner.Undo(ctx, result.AuditID); err != nil {
		t.Fatalf("first undo: %v", err)
	}
	if _, err := f.planner.Undo(ctx, result.AuditID); !IsConflict(err) {
		t.Errorf("second undo err = %v, want ConflictError", err)
	}
}

func TestUndoUnknownAudit(t *testing.T) {
	f := newPlannerFixture(approvedTeller(oid(1), "a"))
	if _, err := f.planner.Undo(context.Background(), bson.NewObjectID()); !IsNotFound(err) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
}

func TestResetLeavesAssignments(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	f := newPlannerFixture(a)

	if _, err := f.planner.Apply(ctx, mon, []bson.ObjectID{a.ID}, 0, mon); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	n, err := f.planner.Reset(ctx, mon)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	sel, _ := f.planner.Selection(ctx, mon)
	if sel != nil {
		t.Errorf("selection survives reset: %+v", sel)
	}
	day, _ := f.assignments.ListDay(ctx, tue)
	if len(day) != 1 {
		t.Errorf("reset touched assignments: %v", day)
	}
}

func TestSaveDraft(t *testing.T) {
	ctx := context.Background()
	a := approvedTeller(oid(1), "a")
	f := newPlannerFixture(a)

	sel, err := f.planner.SaveDraft(ctx, wed, []bson.ObjectID{a.ID}, 3)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if sel.WeekKey != mon {
		t.Errorf("week key = %s, want normalized to Monday %s", sel.WeekKey, mon)
	}
	if sel.Status != model.SelectionStatusDraft {
		t.Errorf("status = %s, want draft", sel.Status)
	}
	day, _ := f.assignments.ListDay(ctx, tue)
	if len(day) != 0 {
		t.Errorf("draft touched assignments: %v", day)
	}
}
