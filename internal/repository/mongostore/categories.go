package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
)

// CategoryRepo persists categories in "categories" and counts tasks in the
// tasks collection.
type CategoryRepo struct {
	coll  *mongo.Collection
	tasks *mongo.Collection
}

func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	c.NameKey = model.NameKey(c.Name)
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateMany inserts cs in order.  On failure the documents this call
// inserted are removed again.
func (r *CategoryRepo) CreateMany(ctx context.Context, cs []*model.Category) error {
	docs := make([]any, 0, len(cs))
	ids := make(bson.A, 0, len(cs))
	for _, c := range cs {
		c.NameKey = model.NameKey(c.Name)
		docs = append(docs, c)
		ids = append(ids, c.ID)
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}
	if _, derr := r.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}); derr != nil {
		return fmt.Errorf("rollback categories: %v (insert: %w)", derr, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (r *CategoryRepo) GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Category, error) {
	var c model.Category
	if err := r.coll.FindOne(ctx, ownerFilter(id, userID)).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Update writes the mutable fields of c.  taskCount is left untouched.
func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) error {
	c.NameKey = model.NameKey(c.Name)
	res, err := r.coll.UpdateOne(ctx, ownerFilter(c.ID, c.UserID), bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: c.Name},
		{Key: "nameKey", Value: c.NameKey},
		{Key: "description", Value: c.Description},
		{Key: "color", Value: c.Color},
		{Key: "icon", Value: c.Icon},
		{Key: "isDefault", Value: c.IsDefault},
		{Key: "isActive", Value: c.IsActive},
		{Key: "sortOrder", Value: c.SortOrder},
		{Key: "settings", Value: c.Settings},
		{Key: "updatedAt", Value: c.UpdatedAt},
	}}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.coll.DeleteOne(ctx, ownerFilter(id, userID))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CategoryRepo) List(ctx context.Context, q query.CategoryQuery) ([]*model.Category, int64, error) {
	filter := CategoryFilter(q)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	sort := bson.D{{Key: "sortOrder", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}
	opts := options.Find().SetSort(sort)
	if q.Paged {
		page := query.NewPage(q.Page, q.PageSize, total)
		opts = pageOptions(page.Page, page.Size, sort)
	}
	cats, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return cats, total, nil
}

func (r *CategoryRepo) ExistsByName(ctx context.Context, userID, name, excludeID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{
		{Key: "user", Value: userID},
		{Key: "nameKey", Value: model.NameKey(name)},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}},
	})
	return n > 0, err
}

func (r *CategoryRepo) HasDefaults(ctx context.Context, userID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.D{{Key: "user", Value: userID}, {Key: "isDefault", Value: true}},
		options.Count().SetLimit(1))
	return n > 0, err
}

// RefreshTaskCount recounts non-archived tasks and sets only taskCount.
func (r *CategoryRepo) RefreshTaskCount(ctx context.Context, id, userID string) (int64, error) {
	count, err := r.tasks.CountDocuments(ctx, bson.D{
		{Key: "user", Value: userID},
		{Key: "category", Value: id},
		{Key: "isArchived", Value: false},
	})
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	res, err := r.coll.UpdateOne(ctx, ownerFilter(id, userID),
		bson.D{{Key: "$set", Value: bson.D{{Key: "taskCount", Value: count}}}})
	if err != nil {
		return 0, err
	}
	if res.MatchedCount == 0 {
		return 0, repository.ErrNotFound
	}
	return count, nil
}

func (r *CategoryRepo) ListAutoArchive(ctx context.Context) ([]*model.Category, error) {
	return r.find(ctx, bson.D{{Key: "settings.autoArchive", Value: true}},
		options.Find().SetSort(bson.D{{Key: "user", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *CategoryRepo) ListAll(ctx context.Context) ([]*model.Category, error) {
	return r.find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "user", Value: 1}, {Key: "_id", Value: 1}}))
}

func (r *CategoryRepo) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*model.Category, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	cats := []*model.Category{}
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}
