package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Suggester answers "who should replace an absent teller on this day". A
// read-only composition of the ranker and the day's roster. No side effects
// and no caching, so every call reflects current state.
type Suggester struct {
	ranker      *Ranker
	assignments AssignmentStore
}

func NewSuggester(ranker *Ranker, assignments AssignmentStore) *Suggester {
	return &Suggester{ranker: ranker, assignments: assignments}
}

// Suggest ranks the full pool for dayKey and drops anyone already assigned
// that day: a teller cannot be suggested as their own replacement. An empty
// result is valid and displayable.
func (s *Suggester) Suggest(ctx context.Context, dayKey string) ([]Candidate, error) {
	ranked, err := s.ranker.RankPool(ctx, dayKey, WeekWindow(dayKey))
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListDay(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("list day: %w", err)
	}
	assigned := make(map[bson.ObjectID]bool, len(assignments))
	for _, a := range assignments {
		assigned[a.TellerID] = true
	}

	suggestions := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if !assigned[c.Teller.ID] {
			suggestions = append(suggestions, c)
		}
	}
	return suggestions, nil
}
