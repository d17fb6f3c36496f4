package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
	"tellerops/internal/notifier"
)

// Planner turns a declarative full-week roster into the minimal sequence of
// replace/append mutations that realizes it, applies them as a unit, and
// records an audit enabling a single-shot undo.
type Planner struct {
	assignments AssignmentStore
	tellers     TellerDirectory
	weeks       FullWeekStore
	ledger      *Ledger
	notify      notifier.Notifier
}

func NewPlanner(assignments AssignmentStore, tellers TellerDirectory, weeks FullWeekStore, ledger *Ledger, notify notifier.Notifier) *Planner {
	return &Planner{assignments: assignments, tellers: tellers, weeks: weeks, ledger: ledger, notify: notify}
}

// OpResult reports the outcome of one executed batch operation.
type OpResult struct {
	Op     model.BatchOp `json:"op"`
	Status string        `json:"status"` // applied | reverted | failed
	Error  string        `json:"error,omitempty"`
}

// ApplyResult tells the operator exactly which operations landed. Nothing is
// rolled back automatically on partial failure; the audit-based undo exists
// for that.
type ApplyResult struct {
	AuditID bson.ObjectID `json:"audit_id,omitempty"`
	Applied []model.BatchOp
	Failed  []OpResult
}

// UndoResult reports a reversal, possibly partial.
type UndoResult struct {
	Reverted bool       `json:"reverted"`
	Results  []OpResult `json:"results"`
}

// Preview computes the plan for realizing the roster across the remaining
// days of weekKey's week, without mutating anything. Days up to and
// including asOf are never touched; application starts at asOf + 1.
func (p *Planner) Preview(ctx context.Context, weekKey string, tellerIDs []bson.ObjectID, count int, asOf string) ([]model.BatchOp, error) {
	if !ValidDayKey(weekKey) || !ValidDayKey(asOf) {
		return nil, &ValidationError{Msg: "invalid week or as-of key"}
	}
	if count < 0 {
		return nil, &ValidationError{Msg: "count cannot be negative"}
	}
	if count > 0 && len(tellerIDs) > count {
		return nil, &ValidationError{Msg: fmt.Sprintf("roster holds %d tellers but count is %d", len(tellerIDs), count)}
	}

	weekStart := WeekStart(weekKey)
	desired, err := p.tellers.ListTellers(ctx, tellerIDs)
	if err != nil {
		return nil, fmt.Errorf("list roster tellers: %w", err)
	}
	if len(desired) != len(tellerIDs) {
		known := make(map[bson.ObjectID]bool, len(desired))
		for _, t := range desired {
			known[t.ID] = true
		}
		for _, id := range tellerIDs {
			if !known[id] {
				return nil, &NotFoundError{Resource: "teller", ID: id.Hex()}
			}
		}
	}
	desiredByID := make(map[bson.ObjectID]model.Teller, len(desired))
	for _, t := range desired {
		desiredByID[t.ID] = t
	}

	applyStart := AddDays(asOf, 1)
	if weekStart > applyStart {
		applyStart = weekStart
	}

	var plan []model.BatchOp
	for _, dayKey := range DaysBetween(applyStart, WeekEnd(weekStart)) {
		assignments, err := p.assignments.ListDay(ctx, dayKey)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dayKey, err)
		}
		assigned := make(map[bson.ObjectID]bool, len(assignments))
		for _, a := range assignments {
			assigned[a.TellerID] = true
		}

		// Roster members eligible this day and not yet placed, in the
		// declared roster order.
		var missing []model.Teller
		for _, id := range tellerIDs {
			t := desiredByID[id]
			if !assigned[id] && t.EligibleOn(dayKey) {
				missing = append(missing, t)
			}
		}
		if len(missing) == 0 {
			continue
		}

		victims, err := p.removalOrder(ctx, assignments, desiredByID)
		if err != nil {
			return nil, err
		}

		for _, t := range missing {
			if len(victims) > 0 {
				v := victims[0]
				victims = victims[1:]
				plan = append(plan, model.BatchOp{
					Action:         model.BatchActionReplace,
					DayKey:         dayKey,
					AssignmentID:   v.ID,
					FromTellerID:   v.TellerID,
					FromTellerName: v.TellerName,
					FromFullWeek:   v.IsFullWeek,
					ToTellerID:     t.ID,
					ToTellerName:   t.DisplayName(),
				})
			} else {
				plan = append(plan, model.BatchOp{
					Action:       model.BatchActionAppend,
					DayKey:       dayKey,
					ToTellerID:   t.ID,
					ToTellerName: t.DisplayName(),
				})
			}
		}
	}
	return plan, nil
}

// removalOrder returns the assignments that may be rotated out, most
// replaceable first: whoever worked most recently is the least fair to keep.
// Full-week slots and roster members are never victims. Equal last-worked
// dates fall back to the greater teller id, a stable deterministic order.
func (p *Planner) removalOrder(ctx context.Context, assignments []model.Assignment, desired map[bson.ObjectID]model.Teller) ([]model.Assignment, error) {
	var removable []model.Assignment
	var ids []bson.ObjectID
	for _, a := range assignments {
		if a.IsFullWeek {
			continue
		}
		if _, keep := desired[a.TellerID]; keep {
			continue
		}
		removable = append(removable, a)
		ids = append(ids, a.TellerID)
	}
	if len(removable) == 0 {
		return nil, nil
	}

	profiles, err := p.tellers.ListTellers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list removal candidates: %w", err)
	}
	lastWorked := make(map[bson.ObjectID]string, len(profiles))
	for _, t := range profiles {
		lastWorked[t.ID] = t.LastWorked
	}

	sort.SliceStable(removable, func(i, j int) bool {
		a, b := lastWorked[removable[i].TellerID], lastWorked[removable[j].TellerID]
		if a != b {
			return a > b
		}
		return removable[i].TellerID.Hex() > removable[j].TellerID.Hex()
	})
	return removable, nil
}

// Apply recomputes the plan against current state (previews are never cached
// across the preview/apply boundary) and executes it in order, stopping at
// the first failure. A concurrent apply for the same week is rejected.
func (p *Planner) Apply(ctx context.Context, weekKey string, tellerIDs []bson.ObjectID, count int, asOf string) (*ApplyResult, error) {
	weekStart := WeekStart(weekKey)
	if err := p.weeks.LockWeek(ctx, weekStart); err != nil {
		return nil, err
	}
	defer p.weeks.UnlockWeek(context.WithoutCancel(ctx), weekStart)

	plan, err := p.Preview(ctx, weekKey, tellerIDs, count, asOf)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	fullWeek := true
	for i := range plan {
		op := plan[i]
		var opErr error
		switch op.Action {
		case model.BatchActionReplace:
			opErr = p.assignments.Swap(ctx, op.AssignmentID, op.FromTellerID, op.ToTellerID, op.ToTellerName, &fullWeek)
			if opErr == nil {
				opErr = p.ledger.EnsurePending(ctx, op.ToTellerID, op.DayKey)
			}
		case model.BatchActionAppend:
			a := model.Assignment{
				TellerID:   op.ToTellerID,
				TellerName: op.ToTellerName,
				DayKey:     op.DayKey,
				Status:     model.AssignmentStatusPending,
				IsFullWeek: true,
			}
			opErr = p.assignments.Insert(ctx, &a)
			if opErr == nil {
				op.AssignmentID = a.ID
				opErr = p.ledger.EnsurePending(ctx, op.ToTellerID, op.DayKey)
			}
		}

		if opErr != nil {
			result.Failed = append(result.Failed, OpResult{Op: op, Status: "failed", Error: opErr.Error()})
			// Remaining operations are aborted; what already landed stays
			// and is captured in the audit below.
			break
		}
		result.Applied = append(result.Applied, op)
	}

	sel := &model.FullWeekSelection{
		WeekKey:   weekStart,
		TellerIDs: tellerIDs,
		Count:     count,
		Status:    model.SelectionStatusApplied,
	}
	if err := p.weeks.SaveSelection(ctx, sel); err != nil {
		return result, fmt.Errorf("save selection: %w", err)
	}

	audit := &model.BatchAudit{
		WeekKey:   weekStart,
		TellerIDs: tellerIDs,
		Count:     count,
		Ops:       result.Applied,
	}
	if err := p.weeks.InsertAudit(ctx, audit); err != nil {
		return result, fmt.Errorf("write audit: %w", err)
	}
	result.AuditID = audit.ID

	p.notify.Publish(ctx, notifier.Event{
		Type:    notifier.EventWeekApplied,
		WeekKey: weekStart,
		Detail:  fmt.Sprintf("%d operations applied", len(result.Applied)),
	})
	return result, nil
}

// SaveDraft stores the selection without touching any assignments.
func (p *Planner) SaveDraft(ctx context.Context, weekKey string, tellerIDs []bson.ObjectID, count int) (*model.FullWeekSelection, error) {
	if !ValidDayKey(weekKey) {
		return nil, &ValidationError{Msg: "invalid week key"}
	}
	if count < 0 {
		return nil, &ValidationError{Msg: "count cannot be negative"}
	}
	if count > 0 && len(tellerIDs) > count {
		return nil, &ValidationError{Msg: fmt.Sprintf("roster holds %d tellers but count is %d", len(tellerIDs), count)}
	}
	sel := &model.FullWeekSelection{
		WeekKey:   WeekStart(weekKey),
		TellerIDs: tellerIDs,
		Count:     count,
		Status:    model.SelectionStatusDraft,
	}
	if err := p.weeks.SaveSelection(ctx, sel); err != nil {
		return nil, fmt.Errorf("save selection: %w", err)
	}
	return sel, nil
}

// Undo replays an audit's operations in reverse: replaces are swapped back
// to the previous occupant, appends are deleted. An audit reverts at most
// once. A failing step stops the reversal and is reported, never swallowed.
func (p *Planner) Undo(ctx context.Context, auditID bson.ObjectID) (*UndoResult, error) {
	audit, err := p.weeks.GetAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("get audit: %w", err)
	}
	if audit == nil {
		return nil, &NotFoundError{Resource: "audit", ID: auditID.Hex()}
	}
	if audit.Reverted() {
		return nil, &ConflictError{Msg: fmt.Sprintf("audit %s already reverted", auditID.Hex())}
	}

	result := &UndoResult{}
	for i := len(audit.Ops) - 1; i >= 0; i-- {
		op := audit.Ops[i]
		var opErr error
		switch op.Action {
		case model.BatchActionReplace:
			fromFullWeek := op.FromFullWeek
			opErr = p.assignments.Swap(ctx, op.AssignmentID, op.ToTellerID, op.FromTellerID, op.FromTellerName, &fromFullWeek)
		case model.BatchActionAppend:
			var deleted *model.Assignment
			deleted, opErr = p.assignments.Delete(ctx, op.AssignmentID)
			if opErr == nil && deleted == nil {
				opErr = &NotFoundError{Resource: "assignment", ID: op.AssignmentID.Hex()}
			}
		}

		if opErr != nil {
			result.Results = append(result.Results, OpResult{Op: op, Status: "failed", Error: opErr.Error()})
			return result, nil
		}
		result.Results = append(result.Results, OpResult{Op: op, Status: "reverted"})
	}

	consumed, err := p.weeks.MarkReverted(ctx, auditID, time.Now())
	if err != nil {
		return result, fmt.Errorf("mark reverted: %w", err)
	}
	if !consumed {
		return result, &ConflictError{Msg: fmt.Sprintf("audit %s already reverted", auditID.Hex())}
	}
	result.Reverted = true

	p.notify.Publish(ctx, notifier.Event{
		Type:    notifier.EventWeekReverted,
		WeekKey: audit.WeekKey,
		Detail:  fmt.Sprintf("%d operations reverted", len(result.Results)),
	})
	return result, nil
}

// Reset deletes the selection for a week. Assignments already realized stay
// untouched; taking those back is undo's job, not reset's.
func (p *Planner) Reset(ctx context.Context, weekKey string) (int64, error) {
	if !ValidDayKey(weekKey) {
		return 0, &ValidationError{Msg: "invalid week key"}
	}
	n, err := p.weeks.DeleteSelection(ctx, WeekStart(weekKey))
	if err != nil {
		return 0, fmt.Errorf("delete selection: %w", err)
	}
	return n, nil
}

// Selection returns the stored roster for a week, or nil.
func (p *Planner) Selection(ctx context.Context, weekKey string) (*model.FullWeekSelection, error) {
	sel, err := p.weeks.GetSelection(ctx, WeekStart(weekKey))
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	return sel, nil
}

// Audits lists batch audit records, newest first, optionally filtered by
// week.
func (p *Planner) Audits(ctx context.Context, weekKey string) ([]model.BatchAudit, error) {
	if weekKey != "" {
		weekKey = WeekStart(weekKey)
	}
	audits, err := p.weeks.ListAudits(ctx, weekKey)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	return audits, nil
}
