package service

import (
	"context"
	"fmt"
	"sort"

	"tellerops/internal/model"
)

// Range is the reporting window worked-day counts are computed over.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeekWindow is the default reporting window: Monday through Sunday of the
// week containing dayKey.
func WeekWindow(dayKey string) Range {
	start := WeekStart(dayKey)
	return Range{Start: start, End: WeekEnd(start)}
}

// Candidate is one ranked suggestion. Breakdown holds worked-day counts for
// Monday..Sunday of the window so the operator can sanity-check the ranking.
type Candidate struct {
	Teller        model.Teller `json:"teller"`
	RangeWorkDays int          `json:"range_work_days"`
	LastWorked    string       `json:"last_worked,omitempty"`
	Breakdown     [7]int       `json:"breakdown"`
}

// Ranker orders candidates by the fairness heuristic: fewest days worked in
// the window first, then longest since last worked. Greedy and local, not a
// solver.
type Ranker struct {
	tellers  TellerDirectory
	ledger   *Ledger
	absences AbsenceStore
}

func NewRanker(tellers TellerDirectory, ledger *Ledger, absences AbsenceStore) *Ranker {
	return &Ranker{tellers: tellers, ledger: ledger, absences: absences}
}

// Rank filters the pool down to tellers eligible on dayKey and orders the
// rest. An empty pool yields an empty list, not an error: "no suggestions"
// is a displayable state.
func (r *Ranker) Rank(ctx context.Context, dayKey string, pool []model.Teller, window Range) ([]Candidate, error) {
	if !ValidDayKey(dayKey) {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid day key %q", dayKey)}
	}

	absences, err := r.absences.ListCovering(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("list planned absences: %w", err)
	}
	plannedOut := make(map[string]bool, len(absences))
	for i := range absences {
		if absences[i].Covers(dayKey) {
			plannedOut[absences[i].TellerID.Hex()] = true
		}
	}

	candidates := make([]Candidate, 0, len(pool))
	for _, teller := range pool {
		if !teller.EligibleOn(dayKey) || plannedOut[teller.ID.Hex()] {
			continue
		}

		days, err := r.ledger.PresentDays(ctx, teller.ID, window.Start, window.End)
		if err != nil {
			return nil, fmt.Errorf("present days for %s: %w", teller.ID.Hex(), err)
		}

		c := Candidate{
			Teller:        teller,
			RangeWorkDays: len(days),
			LastWorked:    teller.LastWorked,
		}
		for _, day := range days {
			if idx := WeekdayIndex(day); idx >= 0 {
				c.Breakdown[idx]++
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.RangeWorkDays != b.RangeWorkDays {
			return a.RangeWorkDays < b.RangeWorkDays
		}
		// Never-worked tellers sort before everyone; otherwise oldest
		// last-worked date first.
		if a.LastWorked != b.LastWorked {
			if a.LastWorked == "" {
				return true
			}
			if b.LastWorked == "" {
				return false
			}
			return a.LastWorked < b.LastWorked
		}
		return a.Teller.ID.Hex() < b.Teller.ID.Hex()
	})

	return candidates, nil
}

// RankPool ranks the full approved teller pool.
func (r *Ranker) RankPool(ctx context.Context, dayKey string, window Range) ([]Candidate, error) {
	pool, err := r.tellers.ListPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teller pool: %w", err)
	}
	return r.Rank(ctx, dayKey, pool, window)
}
