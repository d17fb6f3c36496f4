package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/i18n"
	"tellerops/internal/service"
)

var validate = validator.New()

type ScheduleHandler struct {
	rotation  *service.Rotation
	suggester *service.Suggester
	planner   *service.Planner
	generator *service.Generator
	absences  *service.AbsencePlanner
	loc       *time.Location
	log       *logrus.Logger
}

func NewScheduleHandler(
	rotation *service.Rotation,
	suggester *service.Suggester,
	planner *service.Planner,
	generator *service.Generator,
	absences *service.AbsencePlanner,
	loc *time.Location,
	log *logrus.Logger,
) *ScheduleHandler {
	return &ScheduleHandler{
		rotation:  rotation,
		suggester: suggester,
		planner:   planner,
		generator: generator,
		absences:  absences,
		loc:       loc,
		log:       log,
	}
}

// AssignRequest schedules one or more tellers for a day.
type AssignRequest struct {
	DayKey    string   `json:"dayKey" validate:"required,datetime=2006-01-02"`
	TellerIDs []string `json:"tellerIds" validate:"required,min=1,dive,required"`
}

// MarkAbsentRequest marks a teller absent by day, creating the assignment
// record if the day was never scheduled.
type MarkAbsentRequest struct {
	TellerID    string `json:"tellerId" validate:"required"`
	DayKey      string `json:"dayKey" validate:"required,datetime=2006-01-02"`
	Reason      string `json:"reason" validate:"required"`
	PenaltyDays int    `json:"penaltyDays" validate:"gte=0,lte=30"`
}

// AbsentByIDRequest marks an existing assignment absent.
type AbsentByIDRequest struct {
	Reason      string `json:"reason" validate:"required"`
	PenaltyDays int    `json:"penaltyDays" validate:"gte=0,lte=30"`
}

// ReplaceRequest swaps the teller on an assignment.
type ReplaceRequest struct {
	ReplacementID string `json:"replacementId" validate:"required"`
}

// FullWeekRequest drives the batch planner. Preview returns the op list
// without writing; confirmApply executes it.
type FullWeekRequest struct {
	WeekKey      string   `json:"weekKey" validate:"required,datetime=2006-01-02"`
	TellerIDs    []string `json:"tellerIds" validate:"required,min=1,dive,required"`
	Count        int      `json:"count" validate:"gte=0"` // zero means no cap
	Preview      bool     `json:"preview"`
	ConfirmApply bool     `json:"confirmApply"`
}

// PlanAbsenceRequest records a planned absence for a teller.
type PlanAbsenceRequest struct {
	TellerID   string   `json:"tellerId" validate:"required"`
	StartDate  string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string   `json:"endDate" validate:"required,datetime=2006-01-02"`
	Reason     string   `json:"reason"`
	DaysOfWeek []string `json:"daysOfWeek" validate:"dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Recurring  bool     `json:"recurring"`
}

func (h *ScheduleHandler) today() string {
	return service.DayKey(time.Now(), h.loc)
}

// HandleSuggest returns eligible tellers ranked by weekly workload.
func (h *ScheduleHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	dayKey := r.PathValue("dayKey")
	if !service.ValidDayKey(dayKey) {
		h.writeError(w, r, &service.ValidationError{Msg: "dayKey must be YYYY-MM-DD"})
		return
	}

	candidates, err := h.suggester.Suggest(r.Context(), dayKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dayKey":      dayKey,
		"suggestions": candidates,
	})
}

// HandleListAssignments returns assignments in [start, end] with each
// teller's worked-day count over the same range.
func (h *ScheduleHandler) HandleListAssignments(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	assignments, err := h.rotation.ListForRange(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start":       start,
		"end":         end,
		"assignments": assignments,
	})
}

// HandleAssign adds tellers to a day's roster. Already-assigned tellers
// are skipped, never duplicated.
func (h *ScheduleHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids, err := parseObjectIDs(req.TellerIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.rotation.AssignForDate(r.Context(), req.DayKey, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     i18n.T(r.Context(), "schedule.roster_generated", map[string]any{"Day": req.DayKey}),
		"assignments": created,
	})
}

// HandleMarkPresent records attendance for an assignment.
func (h *ScheduleHandler) HandleMarkPresent(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(r.PathValue("assignmentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.rotation.MarkPresent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    i18n.T(r.Context(), "schedule.marked_present", map[string]any{"Name": a.TellerName}),
		"assignment": a,
	})
}

// HandleMarkAbsentByID marks an existing assignment absent.
func (h *ScheduleHandler) HandleMarkAbsentByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(r.PathValue("assignmentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req AbsentByIDRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.rotation.MarkAbsent(r.Context(), id, req.Reason, req.PenaltyDays, h.today())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    i18n.T(r.Context(), "schedule.marked_absent", map[string]any{"Name": a.TellerName}),
		"assignment": a,
	})
}

// HandleMarkAbsent marks a teller absent for a day, scheduling the day
// first if it never was.
func (h *ScheduleHandler) HandleMarkAbsent(w http.ResponseWriter, r *http.Request) {
	var req MarkAbsentRequest
	if !h.decode(w, r, &req) {
		return
	}

	tellerID, err := parseObjectID(req.TellerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.rotation.MarkAbsentByDay(r.Context(), tellerID, req.DayKey, req.Reason, req.PenaltyDays, h.today())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    i18n.T(r.Context(), "schedule.marked_absent", map[string]any{"Name": a.TellerName}),
		"assignment": a,
	})
}

// HandleReplace swaps the teller on an assignment for a replacement.
func (h *ScheduleHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(r.PathValue("assignmentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req ReplaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	replacementID, err := parseObjectID(req.ReplacementID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.rotation.Replace(r.Context(), id, replacementID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    i18n.T(r.Context(), "schedule.assignment_replaced", map[string]any{"From": id.Hex(), "To": a.TellerName}),
		"assignment": a,
	})
}

// HandleRemoveAssignment deletes an assignment. Attendance history for
// the day survives the removal.
func (h *ScheduleHandler) HandleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(r.PathValue("assignmentId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	a, err := h.rotation.Remove(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    i18n.T(r.Context(), "schedule.assignment_removed"),
		"assignment": a,
	})
}

// HandleFullWeek previews or applies a full-week roster. Without
// confirmApply the request only saves a draft selection and echoes the
// preview back.
func (h *ScheduleHandler) HandleFullWeek(w http.ResponseWriter, r *http.Request) {
	var req FullWeekRequest
	if !h.decode(w, r, &req) {
		return
	}

	ids, err := parseObjectIDs(req.TellerIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	today := h.today()

	if req.Preview {
		ops, err := h.planner.Preview(r.Context(), req.WeekKey, ids, req.Count, today)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"weekKey": req.WeekKey,
			"preview": true,
			"ops":     ops,
		})
		return
	}

	if !req.ConfirmApply {
		sel, err := h.planner.SaveDraft(r.Context(), req.WeekKey, ids, req.Count)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   i18n.T(r.Context(), "schedule.draft_saved"),
			"selection": sel,
		})
		return
	}

	result, err := h.planner.Apply(r.Context(), req.WeekKey, ids, req.Count, today)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	msgID := "schedule.week_applied"
	if len(result.Failed) > 0 {
		msgID = "schedule.week_apply_partial"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": i18n.T(r.Context(), msgID, map[string]any{"Week": req.WeekKey}),
		"auditId": result.AuditID.Hex(),
		"applied": result.Applied,
		"failed":  result.Failed,
	})
}

// HandleListAudits lists batch apply audits, newest first.
func (h *ScheduleHandler) HandleListAudits(w http.ResponseWriter, r *http.Request) {
	audits, err := h.planner.Audits(r.Context(), r.URL.Query().Get("weekKey"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": audits})
}

// HandleGetSelection returns the stored weekly selection.
func (h *ScheduleHandler) HandleGetSelection(w http.ResponseWriter, r *http.Request) {
	weekKey := r.PathValue("weekKey")
	if !service.ValidDayKey(weekKey) {
		h.writeError(w, r, &service.ValidationError{Msg: "weekKey must be YYYY-MM-DD"})
		return
	}

	sel, err := h.planner.Selection(r.Context(), weekKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selection": sel})
}

// HandleResetWeek clears the weekly selection without touching existing
// assignments.
func (h *ScheduleHandler) HandleResetWeek(w http.ResponseWriter, r *http.Request) {
	weekKey := r.PathValue("weekKey")
	if !service.ValidDayKey(weekKey) {
		h.writeError(w, r, &service.ValidationError{Msg: "weekKey must be YYYY-MM-DD"})
		return
	}

	deleted, err := h.planner.Reset(r.Context(), weekKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": i18n.T(r.Context(), "schedule.week_reset"),
		"deleted": deleted,
	})
}

// HandleUndo reverts an applied full-week batch by audit id.
func (h *ScheduleHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(r.PathValue("auditId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.planner.Undo(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	msgID := "schedule.week_reverted"
	if !result.Reverted {
		msgID = "schedule.week_revert_partial"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  i18n.T(r.Context(), msgID),
		"reverted": result.Reverted,
		"results":  result.Results,
	})
}

// HandleGenerate materializes the day's roster on demand, the same path
// the nightly job takes.
func (h *ScheduleHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	dayKey := r.PathValue("dayKey")
	if !service.ValidDayKey(dayKey) {
		h.writeError(w, r, &service.ValidationError{Msg: "dayKey must be YYYY-MM-DD"})
		return
	}

	created, err := h.generator.GenerateDay(r.Context(), dayKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     i18n.T(r.Context(), "schedule.roster_generated", map[string]any{"Day": dayKey}),
		"assignments": created,
	})
}

// HandlePlanAbsence records a future absence.
func (h *ScheduleHandler) HandlePlanAbsence(w http.ResponseWriter, r *http.Request) {
	var req PlanAbsenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	tellerID, err := parseObjectID(req.TellerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	absence, err := h.absences.Plan(r.Context(), tellerID, req.StartDate, req.EndDate, req.Reason, req.DaysOfWeek, req.Recurring)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": i18n.T(r.Context(), "schedule.absence_planned", map[string]any{"Name": absence.TellerName}),
		"absence": absence,
	})
}

// HandleListAbsences lists a teller's planned absences.
func (h *ScheduleHandler) HandleListAbsences(w http.ResponseWriter, r *http.Request) {
	tellerID, err := parseObjectID(r.URL.Query().Get("tellerId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	absences, err := h.absences.ListForTeller(r.Context(), tellerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"absences": absences})
}

// HandleCancelAbsence removes a planned absence.
func (h *ScheduleHandler) HandleCancelAbsence(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID(r.PathValue("absenceId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	absence, err := h.absences.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": i18n.T(r.Context(), "schedule.absence_cancelled"),
		"absence": absence,
	})
}

// RegisterRoutes registers all schedule routes on the given mux.
func (h *ScheduleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schedule/suggest/{dayKey}", h.HandleSuggest)
	mux.HandleFunc("GET /api/schedule/assignments", h.HandleListAssignments)
	mux.HandleFunc("POST /api/schedule/assign", h.HandleAssign)
	mux.HandleFunc("POST /api/schedule/mark-absent", h.HandleMarkAbsent)
	mux.HandleFunc("PUT /api/schedule/mark-present/{assignmentId}", h.HandleMarkPresent)
	mux.HandleFunc("PUT /api/schedule/mark-absent/{assignmentId}", h.HandleMarkAbsentByID)
	mux.HandleFunc("PUT /api/schedule/replace/{assignmentId}", h.HandleReplace)
	mux.HandleFunc("DELETE /api/schedule/assignment/{assignmentId}", h.HandleRemoveAssignment)
	mux.HandleFunc("PUT /api/schedule/full-week", h.HandleFullWeek)
	mux.HandleFunc("GET /api/schedule/full-week/audits", h.HandleListAudits)
	mux.HandleFunc("GET /api/schedule/full-week/{weekKey}", h.HandleGetSelection)
	mux.HandleFunc("DELETE /api/schedule/full-week/{weekKey}", h.HandleResetWeek)
	mux.HandleFunc("POST /api/schedule/full-week/undo/{auditId}", h.HandleUndo)
	mux.HandleFunc("POST /api/schedule/generate/{dayKey}", h.HandleGenerate)
	mux.HandleFunc("POST /api/schedule/absences", h.HandlePlanAbsence)
	mux.HandleFunc("GET /api/schedule/absences", h.HandleListAbsences)
	mux.HandleFunc("DELETE /api/schedule/absences/{absenceId}", h.HandleCancelAbsence)
}

// decode reads and validates the JSON body, writing the error response
// itself when the body is bad. Returns false if the caller should stop.
func (h *ScheduleHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, &service.ValidationError{Msg: "invalid JSON body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.writeError(w, r, &service.ValidationError{Msg: err.Error()})
		return false
	}
	return true
}

func (h *ScheduleHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case service.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": i18n.T(ctx, "err.invalid_request", map[string]any{"Reason": err.Error()}),
		})
	case service.IsNotFound(err):
		var nf *service.NotFoundError
		errors.As(err, &nf)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": i18n.T(ctx, "err.not_found", map[string]any{"Resource": nf.Resource + " " + nf.ID}),
		})
	case service.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{
			"message": i18n.T(ctx, "err.conflict", map[string]any{"Reason": err.Error()}),
		})
	default:
		h.log.WithError(err).Error("schedule request failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"message": i18n.T(ctx, "err.storage"),
		})
	}
}

func parseObjectID(s string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.ObjectID{}, &service.ValidationError{Msg: "invalid id: " + s}
	}
	return id, nil
}

func parseObjectIDs(ss []string) ([]bson.ObjectID, error) {
	ids := make([]bson.ObjectID, 0, len(ss))
	for _, s := range ss {
		id, err := parseObjectID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
