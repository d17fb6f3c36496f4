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

// How long a week apply lock may sit before Mongo expires it. Covers a
// process that died mid-apply without releasing.
const applyLockTTL = 2 * time.Minute

// FullWeekStore keeps the weekly roster selection, the audit trail of
// batch applies, and the short-lived apply locks.
type FullWeekStore struct {
	selections *mongo.Collection
	audits     *mongo.Collection
	locks      *mongo.Collection
}

func NewFullWeekStore(ctx context.Context, db *MongoDB) (*FullWeekStore, error) {
	selections := db.Collection("full_week_selections")
	audits := db.Collection("full_week_audits")
	locks := db.Collection("week_apply_locks")

	if _, err := selections.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "week_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create selection indexes: %w", err)
	}

	if _, err := audits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "week_key", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return nil, fmt.Errorf("create audit indexes: %w", err)
	}

	if _, err := locks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "week_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(applyLockTTL / time.Second)),
		},
	}); err != nil {
		return nil, fmt.Errorf("create lock indexes: %w", err)
	}

	return &FullWeekStore{selections: selections, audits: audits, locks: locks}, nil
}

func (s *FullWeekStore) GetSelection(ctx context.Context, weekKey string) (*model.FullWeekSelection, error) {
	var sel model.FullWeekSelection
	err := s.selections.FindOne(ctx, bson.M{"week_key": weekKey}).Decode(&sel)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find selection", err)
	}
	return &sel, nil
}

// SaveSelection upserts the week's selection by week key.
func (s *FullWeekStore) SaveSelection(ctx context.Context, sel *model.FullWeekSelection) error {
	now := time.Now()
	_, err := s.selections.UpdateOne(ctx,
		bson.M{"week_key": sel.WeekKey},
		bson.M{
			"$set": bson.M{
				"teller_ids": sel.TellerIDs,
				"count":      sel.Count,
				"status":     sel.Status,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"week_key": sel.WeekKey, "created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return storageErr("save selection", err)
	}
	return nil
}

func (s *FullWeekStore) DeleteSelection(ctx context.Context, weekKey string) (int64, error) {
	res, err := s.selections.DeleteOne(ctx, bson.M{"week_key": weekKey})
	if err != nil {
		return 0, storageErr("delete selection", err)
	}
	return res.DeletedCount, nil
}

func (s *FullWeekStore) InsertAudit(ctx context.Context, audit *model.BatchAudit) error {
	audit.CreatedAt = time.Now()
	res, err := s.audits.InsertOne(ctx, audit)
	if err != nil {
		return storageErr("insert audit", err)
	}
	audit.ID = res.InsertedID.(bson.ObjectID)
	return nil
}

func (s *FullWeekStore) GetAudit(ctx context.Context, id bson.ObjectID) (*model.BatchAudit, error) {
	var audit model.BatchAudit
	err := s.audits.FindOne(ctx, bson.M{"_id": id}).Decode(&audit)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("find audit", err)
	}
	return &audit, nil
}

func (s *FullWeekStore) ListAudits(ctx context.Context, weekKey string) ([]model.BatchAudit, error) {
	filter := bson.M{}
	if weekKey != "" {
		filter["week_key"] = weekKey
	}
	cur, err := s.audits.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100))
	if err != nil {
		return nil, storageErr("list audits", err)
	}
	var audits []model.BatchAudit
	if err := cur.All(ctx, &audits); err != nil {
		return nil, storageErr("decode audits", err)
	}
	return audits, nil
}

// MarkReverted stamps the audit exactly once. Returns false when another
// undo already claimed it.
func (s *FullWeekStore) MarkReverted(ctx context.Context, id bson.ObjectID, at time.Time) (bool, error) {
	res, err := s.audits.UpdateOne(ctx,
		bson.M{"_id": id, "reverted_at": nil},
		bson.M{"$set": bson.M{"reverted_at": at}},
	)
	if err != nil {
		return false, storageErr("mark audit reverted", err)
	}
	return res.ModifiedCount > 0, nil
}

// LockWeek takes the apply lock for a week. The unique index makes the
// insert fail while another apply holds it; the TTL index reclaims locks
// from crashed processes.
func (s *FullWeekStore) LockWeek(ctx context.Context, weekKey string) error {
	_, err := s.locks.InsertOne(ctx, bson.M{
		"week_key":   weekKey,
		"created_at": time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return &service.ConflictError{Msg: fmt.Sprintf("week %s is being applied by another request", weekKey)}
	}
	if err != nil {
		return storageErr("lock week", err)
	}
	return nil
}

func (s *FullWeekStore) UnlockWeek(ctx context.Context, weekKey string) error {
	if _, err := s.locks.DeleteOne(ctx, bson.M{"week_key": weekKey}); err != nil {
		return storageErr("unlock week", err)
	}
	return nil
}
