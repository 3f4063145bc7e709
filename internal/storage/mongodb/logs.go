package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/pkg/ebms"
)

// LogRepository stores one kind of message log in a collection. Field names
// are the column names of the kind.
type LogRepository[R messagelog.Record] struct {
	coll *mongo.Collection
	kind messagelog.Kind[R]
}

// NewLogRepository creates a repository over coll
func NewLogRepository[R messagelog.Record](coll *mongo.Collection, kind messagelog.Kind[R]) *LogRepository[R] {
	return &LogRepository[R]{coll: coll, kind: kind}
}

// Insert implements messagelog.Repository.
func (r *LogRepository[R]) Insert(ctx context.Context, rec R) error {
	_, err := r.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return messagelog.ErrDuplicateMessage
	}
	return err
}

// FindByMessageID implements messagelog.Repository.
func (r *LogRepository[R]) FindByMessageID(ctx context.Context, messageID string) (R, error) {
	return r.findOne(ctx, bson.M{"message_id": messageID})
}

// FindByMessageIDAndRole implements messagelog.Repository.
func (r *LogRepository[R]) FindByMessageIDAndRole(ctx context.Context, messageID string, role ebms.Role) (R, error) {
	return r.findOne(ctx, bson.M{"message_id": messageID, "msh_role": role})
}

func (r *LogRepository[R]) findOne(ctx context.Context, filter bson.M) (R, error) {
	rec := r.kind.New()
	err := r.coll.FindOne(ctx, filter).Decode(rec)
	if err == mongo.ErrNoDocuments {
		var zero R
		return zero, messagelog.ErrMessageNotFound
	}
	if err != nil {
		var zero R
		return zero, err
	}
	return rec, nil
}

// ApplyStatus implements messagelog.Repository with a single-document update.
func (r *LogRepository[R]) ApplyStatus(ctx context.Context, messageID string, u messagelog.StatusUpdate) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"message_id": messageID}, statusUpdate(u))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return messagelog.ErrMessageNotFound
	}
	return nil
}

// FindPaged implements messagelog.Repository.
func (r *LogRepository[R]) FindPaged(ctx context.Context, q messagelog.Query) ([]R, error) {
	opts := options.Find()
	if q.SortColumn != "" {
		dir := -1
		if q.Ascending {
			dir = 1
		}
		opts.SetSort(bson.D{{Key: q.SortColumn, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}

	cursor, err := r.coll.Find(ctx, filterFor(q.Predicates), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []R{}
	for cursor.Next(ctx) {
		rec := r.kind.New()
		if err := cursor.Decode(rec); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", r.kind.Name, err)
		}
		records = append(records, rec)
	}
	return records, cursor.Err()
}

// Count implements messagelog.Repository.
func (r *LogRepository[R]) Count(ctx context.Context, preds []messagelog.Predicate) (int64, error) {
	return r.coll.CountDocuments(ctx, filterFor(preds))
}

func statusUpdate(u messagelog.StatusUpdate) bson.M {
	set := bson.M{"status": u.Status}
	switch u.Stamp {
	case messagelog.StampDownloaded:
		set["downloaded"] = u.At
	case messagelog.StampDeleted:
		set["deleted"] = u.At
	case messagelog.StampFailed:
		set["failed"] = u.At
	}
	return bson.M{"$set": set}
}

// filterFor translates predicates into a query document. Predicates on the
// same field are combined.
func filterFor(preds []messagelog.Predicate) bson.M {
	filter := bson.M{}
	for _, p := range preds {
		switch p.Op {
		case messagelog.OpEqual:
			filter[p.Column] = p.Value
		case messagelog.OpLike:
			pattern, _ := p.Value.(string)
			filter[p.Column] = primitive.Regex{Pattern: messagelog.LikePattern(pattern)}
		case messagelog.OpGreaterOrEqual, messagelog.OpLessOrEqual:
			op := "$gte"
			if p.Op == messagelog.OpLessOrEqual {
				op = "$lte"
			}
			cond, ok := filter[p.Column].(bson.M)
			if !ok {
				cond = bson.M{}
				filter[p.Column] = cond
			}
			cond[op] = p.Value
		}
	}
	return filter
}
