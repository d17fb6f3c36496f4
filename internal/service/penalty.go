package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PenaltyTracker maintains the skip-until horizon that keeps a teller out of
// rotation after a penalized absence. Horizons only ever move forward; a
// shorter penalty never shortens an active one.
type PenaltyTracker struct {
	tellers TellerDirectory
}

func NewPenaltyTracker(tellers TellerDirectory) *PenaltyTracker {
	return &PenaltyTracker{tellers: tellers}
}

// Apply sets skipUntil = asOf + days and returns the horizon now in effect,
// which may be a later one set previously.
func (p *PenaltyTracker) Apply(ctx context.Context, tellerID bson.ObjectID, asOf string, days int, reason string) (string, error) {
	if days <= 0 {
		return "", &ValidationError{Msg: "penalty days must be positive"}
	}
	if !ValidDayKey(asOf) {
		return "", &ValidationError{Msg: fmt.Sprintf("invalid day key %q", asOf)}
	}

	until := AddDays(asOf, days)
	applied, err := p.tellers.SetSkipUntil(ctx, tellerID, until, reason)
	if err != nil {
		return "", fmt.Errorf("set skip until: %w", err)
	}
	if applied {
		return until, nil
	}

	// A later horizon was already active; report it.
	teller, err := p.tellers.GetTeller(ctx, tellerID)
	if err != nil {
		return "", fmt.Errorf("get teller: %w", err)
	}
	if teller == nil {
		return "", &NotFoundError{Resource: "teller", ID: tellerID.Hex()}
	}
	return teller.SkipUntil, nil
}

// IsEligible reports whether the teller may be scheduled on asOf. Eligibility
// changes are visible to the ranker immediately; there is no cache between
// the two.
func (p *PenaltyTracker) IsEligible(ctx context.Context, tellerID bson.ObjectID, asOf string) (bool, error) {
	teller, err := p.tellers.GetTeller(ctx, tellerID)
	if err != nil {
		return false, fmt.Errorf("get teller: %w", err)
	}
	if teller == nil {
		return false, &NotFoundError{Resource: "teller", ID: tellerID.Hex()}
	}
	return teller.EligibleOn(asOf), nil
}

// Clear removes any active penalty. Admin override, unconditional.
func (p *PenaltyTracker) Clear(ctx context.Context, tellerID bson.ObjectID) error {
	if err := p.tellers.ClearSkipUntil(ctx, tellerID); err != nil {
		return fmt.Errorf("clear skip until: %w", err)
	}
	return nil
}
