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

type AbsenceStore struct {
	coll *mongo.Collection
}

func NewAbsenceStore(ctx context.Context, db *MongoDB) (*AbsenceStore, error) {
	coll := db.Collection("planned_absences")

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "teller_id", Value: 1}, {Key: "start_date", Value: 1}}},
		{Keys: bson.D{{Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create absence indexes: %w", err)
	}

	return &AbsenceStore{coll: coll}, nil
}

func (s *AbsenceStore) Insert(ctx context.Context, a *model.PlannedAbsence) error {
	a.CreatedAt = time.Now()
	res, err := s.coll.InsertOne(ctx, a)
	if err != nil {
		return storageErr("insert planned absence", err)
	}
	a.ID = res.InsertedID.(bson.ObjectID)
	return nil
}

func (s *AbsenceStore) ListForTeller(ctx context.Context, tellerID bson.ObjectID) ([]model.PlannedAbsence, error) {
	cur, err := s.coll.Find(ctx, bson.M{"teller_id": tellerID},
		options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
	if err != nil {
		return nil, storageErr("list planned absences", err)
	}
	var absences []model.PlannedAbsence
	if err := cur.All(ctx, &absences); err != nil {
		return nil, storageErr("decode planned absences", err)
	}
	return absences, nil
}

// ListCovering returns absences whose date range contains the day. Weekday
// matching for recurring absences is the caller's concern; the store only
// narrows by range.
func (s *AbsenceStore) ListCovering(ctx context.Context, dayKey string) ([]model.PlannedAbsence, error) {
	cur, err := s.coll.Find(ctx, bson.M{
		"start_date": bson.M{"$lte": dayKey},
		"end_date":   bson.M{"$gte": dayKey},
	})
	if err != nil {
		return nil, storageErr("list covering absences", err)
	}
	var absences []model.PlannedAbsence
	if err := cur.All(ctx, &absences); err != nil {
		return nil, storageErr("decode planned absences", err)
	}
	return absences, nil
}

func (s *AbsenceStore) Delete(ctx context.Context, id bson.ObjectID) (*model.PlannedAbsence, error) {
	var a model.PlannedAbsence
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("delete planned absence", err)
	}
	return &a, nil
}
