package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"tellerops/internal/model"
)

// Generator materializes a day's roster when none exists yet: full-week
// selection members first, then ranker order up to the target headcount.
// Used by the nightly job and the manual generate endpoint.
type Generator struct {
	ranker    *Ranker
	rotation  *Rotation
	weeks     FullWeekStore
	headcount int
}

func NewGenerator(ranker *Ranker, rotation *Rotation, weeks FullWeekStore, headcount int) *Generator {
	return &Generator{ranker: ranker, rotation: rotation, weeks: weeks, headcount: headcount}
}

// GenerateDay fills dayKey's roster. A day that already has assignments is
// left exactly as it is.
func (g *Generator) GenerateDay(ctx context.Context, dayKey string) ([]model.Assignment, error) {
	if !ValidDayKey(dayKey) {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid day key %q", dayKey)}
	}

	existing, err := g.rotation.assignments.ListDay(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("list day: %w", err)
	}
	if len(existing) > 0 {
		return nil, nil
	}

	ranked, err := g.ranker.RankPool(ctx, dayKey, WeekWindow(dayKey))
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	target := g.headcount
	sel, err := g.weeks.GetSelection(ctx, WeekStart(dayKey))
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	selected := make(map[bson.ObjectID]bool)
	if sel != nil {
		for _, id := range sel.TellerIDs {
			selected[id] = true
		}
		if sel.Count > 0 {
			target = sel.Count
		}
	}

	// Selection members keep their slots regardless of rank; the remainder
	// fills up in fairness order.
	var picks []bson.ObjectID
	for _, c := range ranked {
		if selected[c.Teller.ID] {
			picks = append(picks, c.Teller.ID)
		}
	}
	for _, c := range ranked {
		if len(picks) >= target {
			break
		}
		if !selected[c.Teller.ID] {
			picks = append(picks, c.Teller.ID)
		}
	}
	if len(picks) > target && target > 0 {
		picks = picks[:target]
	}

	return g.rotation.AssignForDate(ctx, dayKey, picks)
}
