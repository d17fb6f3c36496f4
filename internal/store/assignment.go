package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"tellerops/internal/model"
	"tellerops/internal/service"
)

// AssignmentStore holds the day-keyed roster. The unique (teller_id,
// day_key) index is what ultimately guarantees one assignment per teller
// per day, including across concurrent writers.
type AssignmentStore struct {
	coll *mongo.Collection
}

func NewAssignmentStore(ctx context.Context, db *MongoDB) (*AssignmentStore, error) {
	coll := db.Collection("assignments")

	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "teller_id", Value: 1}, {Key: "day_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "day_key", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create assignment indexes: %w", err)
	}

	return &AssignmentStore{coll: coll}, nil
}

func (s *AssignmentStore) Insert(ctx context.Context, a *model.Assignment) error {
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	res, err := s.coll.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return &service.ConflictError{Msg: fmt.Sprintf("teller %s already assigned on %s", a.TellerID.Hex(), a.DayKey)}
	}
	if err != nil {
		return storageErr("insert assignment", err)
	}
	a.ID = res.InsertedID.(bson.ObjectID)
	return nil
}

func (s *AssignmentStore) Get(ctx context.Context, id bson.ObjectID) (*model.Assignment, error) {
	var a model.Assignment
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find assignment", err)
	}
	return &a, nil
}

func (s *AssignmentStore) GetByTellerDay(ctx context.Context, tellerID bson.ObjectID, dayKey string) (*model.Assignment, error) {
	var a model.Assignment
	err := s.coll.FindOne(ctx, bson.M{"teller_id": tellerID, "day_key": dayKey}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find assignment by day", err)
	}
	return &a, nil
}

func (s *AssignmentStore) ListDay(ctx context.Context, dayKey string) ([]model.Assignment, error) {
	return s.list(ctx, bson.M{"day_key": dayKey})
}

func (s *AssignmentStore) ListRange(ctx context.Context, start, end string) ([]model.Assignment, error) {
	return s.list(ctx, bson.M{"day_key": bson.M{"$gte": start, "$lte": end}})
}

func (s *AssignmentStore) list(ctx context.Context, filter bson.M) ([]model.Assignment, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "day_key", Value: 1},
		{Key: "created_at", Value: 1},
	}))
	if err != nil {
		return nil, storageErr("list assignments", err)
	}
	var assignments []model.Assignment
	if err := cur.All(ctx, &assignments); err != nil {
		return nil, storageErr("decode assignments", err)
	}
	return assignments, nil
}

func (s *AssignmentStore) SetStatus(ctx context.Context, id bson.ObjectID, status model.AssignmentStatus) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now()},
	})
	if err != nil {
		return storageErr("set assignment status", err)
	}
	if res.MatchedCount == 0 {
		return &service.NotFoundError{Resource: "assignment", ID: id.Hex()}
	}
	return nil
}

// Swap is a check-and-set on the current occupant: it only matches while
// the assignment still belongs to from, so two racing replacements cannot
// both win. The slot resets to pending for the incoming teller.
func (s *AssignmentStore) Swap(ctx context.Context, id, from, to bson.ObjectID, toName string, fullWeek *bool) error {
	set := bson.M{
		"teller_id":   to,
		"teller_name": toName,
		"status":      model.AssignmentStatusPending,
		"updated_at":  time.Now(),
	}
	if fullWeek != nil {
		set["is_full_week"] = *fullWeek
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "teller_id": from}, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return &service.ConflictError{Msg: fmt.Sprintf("teller %s already assigned on that day", to.Hex())}
	}
	if err != nil {
		return storageErr("swap assignment", err)
	}
	if res.MatchedCount == 0 {
		return &service.ConflictError{Msg: fmt.Sprintf("assignment %s changed concurrently", id.Hex())}
	}
	return nil
}

func (s *AssignmentStore) Delete(ctx context.Context, id bson.ObjectID) (*model.Assignment, error) {
	var a model.Assignment
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("delete assignment", err)
	}
	return &a, nil
}
