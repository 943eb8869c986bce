package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/stats"
)

// TaskRepo persists tasks in the "tasks" collection.  Embedded comments,
// subtasks, attachments and reminders live inside the task document.
type TaskRepo struct{ coll *mongo.Collection }

func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	t.EnsureCollections()
	_, err := r.coll.InsertOne(ctx, t)
	return err
}

func (r *TaskRepo) GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Task, error) {
	var t model.Task
	if err := r.coll.FindOne(ctx, ownerFilter(id, userID)).Decode(&t); err != nil {
		return nil, notFound(err)
	}
	t.EnsureCollections()
	return &t, nil
}

// Update replaces the whole document; an empty category drops the field.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	t.EnsureCollections()
	res, err := r.coll.ReplaceOne(ctx, ownerFilter(t.ID, t.UserID), t)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.coll.DeleteOne(ctx, ownerFilter(id, userID))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TaskRepo) List(ctx context.Context, q query.TaskQuery) ([]*model.Task, int64, error) {
	filter := TaskFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	page := query.NewPage(q.Page, q.PageSize, total)
	tasks, err := r.find(ctx, filter, pageOptions(page.Page, page.Size,
		bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *TaskRepo) ListOverdue(ctx context.Context, userID string, now time.Time, limit int) ([]*model.Task, error) {
	filter := bson.D{
		{Key: "user", Value: userID},
		{Key: "isArchived", Value: false},
		{Key: "deadline", Value: bson.D{{Key: "$lt", Value: now}, {Key: "$ne", Value: nil}}},
		{Key: "status", Value: bson.D{{Key: "$ne", Value: string(model.StatusCompleted)}}},
	}
	return r.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "deadline", Value: 1}}).
		SetLimit(int64(limit)))
}

func (r *TaskRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*model.Task, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	tasks := []*model.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.EnsureCollections()
	}
	return tasks, nil
}

func (r *TaskRepo) UserStats(ctx context.Context, userID string, now time.Time) (stats.Raw, error) {
	return r.aggregate(ctx, UserPipeline(userID, now))
}

func (r *TaskRepo) CategoryStats(ctx context.Context, userID, categoryID string, now time.Time) (stats.Raw, error) {
	return r.aggregate(ctx, CategoryPipeline(userID, categoryID, now))
}

// aggregate runs a grouping pipeline; no matching task yields zero sums.
func (r *TaskRepo) aggregate(ctx context.Context, p mongo.Pipeline) (stats.Raw, error) {
	cur, err := r.coll.Aggregate(ctx, p)
	if err != nil {
		return stats.Raw{}, err
	}
	var out []stats.Raw
	if err := cur.All(ctx, &out); err != nil {
		return stats.Raw{}, err
	}
	if len(out) == 0 {
		return stats.Raw{}, nil
	}
	return out[0], nil
}

func (r *TaskRepo) DetachCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "user", Value: userID}, {Key: "category", Value: categoryID}},
		bson.D{
			{Key: "$unset", Value: bson.D{{Key: "category", Value: ""}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *TaskRepo) ArchiveCompletedBefore(ctx context.Context, userID, categoryID string, cutoff, now time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.D{
			{Key: "user", Value: userID},
			{Key: "category", Value: categoryID},
			{Key: "status", Value: string(model.StatusCompleted)},
			{Key: "isArchived", Value: false},
			{Key: "completedAt", Value: bson.D{{Key: "$lt", Value: cutoff}, {Key: "$ne", Value: nil}}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "isArchived", Value: true},
			{Key: "archivedAt", Value: now},
			{Key: "updatedAt", Value: now},
		}}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
