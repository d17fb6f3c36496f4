package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"tellerops/internal/model"
)

// TellerStore reads teller profiles owned by the identity subsystem and
// maintains the rotation bookkeeping fields on them.
type TellerStore struct {
	coll *mongo.Collection
}

func NewTellerStore(db *MongoDB) *TellerStore {
	return &TellerStore{coll: db.Collection("tellers")}
}

func (s *TellerStore) GetTeller(ctx context.Context, id bson.ObjectID) (*model.Teller, error) {
	var teller model.Teller
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&teller)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find teller", err)
	}
	return &teller, nil
}

// ListPool returns approved tellers in rotation, supervisor-tellers
// included.
func (s *TellerStore) ListPool(ctx context.Context) ([]model.Teller, error) {
	cur, err := s.coll.Find(ctx, bson.M{
		"role":   bson.M{"$in": []model.TellerRole{model.RoleTeller, model.RoleSupervisorTeller}},
		"status": model.TellerStatusApproved,
	})
	if err != nil {
		return nil, storageErr("list teller pool", err)
	}
	var tellers []model.Teller
	if err := cur.All(ctx, &tellers); err != nil {
		return nil, storageErr("decode teller pool", err)
	}
	return tellers, nil
}

func (s *TellerStore) ListTellers(ctx context.Context, ids []bson.ObjectID) ([]model.Teller, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, storageErr("list tellers", err)
	}
	var tellers []model.Teller
	if err := cur.All(ctx, &tellers); err != nil {
		return nil, storageErr("decode tellers", err)
	}
	return tellers, nil
}

// AddWorkDay bumps the lifetime counter and advances last_worked. $max keeps
// last_worked from moving backwards when an older day is marked late.
func (s *TellerStore) AddWorkDay(ctx context.Context, id bson.ObjectID, dayKey string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$max": bson.M{"last_worked": dayKey},
		"$inc": bson.M{"total_work_days": 1},
	})
	if err != nil {
		return storageErr("add work day", err)
	}
	return nil
}

func (s *TellerStore) RemoveWorkDay(ctx context.Context, id bson.ObjectID) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "total_work_days": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"total_work_days": -1}},
	)
	if err != nil {
		return storageErr("remove work day", err)
	}
	return nil
}

// SetLastWorked overwrites the cached last_worked date, unsetting it when
// dayKey is empty.
func (s *TellerStore) SetLastWorked(ctx context.Context, id bson.ObjectID, dayKey string) error {
	update := bson.M{"$set": bson.M{"last_worked": dayKey}}
	if dayKey == "" {
		update = bson.M{"$unset": bson.M{"last_worked": ""}}
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return storageErr("set last worked", err)
	}
	return nil
}

// SetSkipUntil is a conditional update: it only lands when the new horizon
// is later than the current one, so penalties never shorten.
func (s *TellerStore) SetSkipUntil(ctx context.Context, id bson.ObjectID, until, reason string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$or": []bson.M{
				{"skip_until": bson.M{"$exists": false}},
				{"skip_until": ""},
				{"skip_until": bson.M{"$lt": until}},
			},
		},
		bson.M{"$set": bson.M{"skip_until": until, "last_absent_reason": reason}},
	)
	if err != nil {
		return false, storageErr("set skip until", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *TellerStore) ClearSkipUntil(ctx context.Context, id bson.ObjectID) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$unset": bson.M{"skip_until": ""}},
	)
	if err != nil {
		return storageErr("clear skip until", err)
	}
	return nil
}
