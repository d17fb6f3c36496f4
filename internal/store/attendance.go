package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"tellerops/internal/model"
)

// AttendanceStore is the append-style ledger of per-day outcomes. Records
// are keyed by (teller_id, day_key) and survive roster edits, so history
// stays intact when an assignment is swapped or removed.
type AttendanceStore struct {
	coll *mongo.Collection
}

func NewAttendanceStore(ctx context.Context, db *MongoDB) (*AttendanceStore, error) {
	coll := db.Collection("attendance")

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "teller_id", Value: 1}, {Key: "day_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "day_key", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create attendance indexes: %w", err)
	}

	return &AttendanceStore{coll: coll}, nil
}

// Mark upserts the day's record and returns the status it held before the
// write, or "" when the record did not exist. Callers use the prior status
// to keep work-day counters idempotent.
func (s *AttendanceStore) Mark(ctx context.Context, tellerID bson.ObjectID, dayKey string, status model.AttendanceStatus, reason string, penaltyDays int) (model.AttendanceStatus, error) {
	now := time.Now()
	var prev model.AttendanceRecord
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"teller_id": tellerID, "day_key": dayKey},
		bson.M{
			"$set": bson.M{
				"status":       status,
				"reason":       reason,
				"penalty_days": penaltyDays,
				"updated_at":   now,
			},
			"$setOnInsert": bson.M{
				"teller_id":  tellerID,
				"day_key":    dayKey,
				"created_at": now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before),
	).Decode(&prev)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", storageErr("mark attendance", err)
	}
	return prev.Status, nil
}

// EnsurePending creates a pending record for the day if none exists.
// Existing records, whatever their status, are left alone.
func (s *AttendanceStore) EnsurePending(ctx context.Context, tellerID bson.ObjectID, dayKey string) error {
	now := time.Now()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"teller_id": tellerID, "day_key": dayKey},
		bson.M{"$setOnInsert": bson.M{
			"teller_id":  tellerID,
			"day_key":    dayKey,
			"status":     model.AttendanceStatusPending,
			"created_at": now,
			"updated_at": now,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// Lost a race with a concurrent upsert for the same day. The
		// record exists now, which is all this call promises.
		return nil
	}
	if err != nil {
		return storageErr("ensure pending attendance", err)
	}
	return nil
}

func (s *AttendanceStore) CountPresent(ctx context.Context, tellerID bson.ObjectID, start, end string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{
		"teller_id": tellerID,
		"status":    model.AttendanceStatusPresent,
		"day_key":   bson.M{"$gte": start, "$lte": end},
	})
	if err != nil {
		return 0, storageErr("count present days", err)
	}
	return int(n), nil
}

func (s *AttendanceStore) PresentDays(ctx context.Context, tellerID bson.ObjectID, start, end string) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{
		"teller_id": tellerID,
		"status":    model.AttendanceStatusPresent,
		"day_key":   bson.M{"$gte": start, "$lte": end},
	}, options.Find().SetSort(bson.D{{Key: "day_key", Value: 1}}))
	if err != nil {
		return nil, storageErr("list present days", err)
	}
	var records []model.AttendanceRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, storageErr("decode attendance", err)
	}
	days := make([]string, 0, len(records))
	for _, r := range records {
		days = append(days, r.DayKey)
	}
	return days, nil
}
