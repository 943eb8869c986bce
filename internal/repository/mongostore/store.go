// Package mongostore implements the repository contracts on MongoDB.
// Statistics run as native aggregation pipelines; listings use find
// filters built from the query package.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iliyamo/task-management-api/internal/repository"
)

const (
	usersCollection      = "users"
	tokensCollection     = "refresh_tokens"
	tasksCollection      = "tasks"
	categoriesCollection = "categories"
)

// New ensures indexes and returns the stores backed by db.
func New(ctx context.Context, db *mongo.Database) (*repository.Store, error) {
	if err := EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &repository.Store{
		Users:      &UserRepo{coll: db.Collection(usersCollection)},
		Tokens:     &TokenRepo{coll: db.Collection(tokensCollection)},
		Tasks:      &TaskRepo{coll: db.Collection(tasksCollection)},
		Categories: &CategoryRepo{coll: db.Collection(categoriesCollection), tasks: db.Collection(tasksCollection)},
		Lifecycle:  lifecycle{db: db},
	}, nil
}

// EnsureIndexes creates the unique and lookup indexes.  It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		tokensCollection: {
			{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user", Value: 1}}},
		},
		categoriesCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "nameKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "sortOrder", Value: 1}}},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "deadline", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

type lifecycle struct{ db *mongo.Database }

func (l lifecycle) Close(ctx context.Context) error { return l.db.Client().Disconnect(ctx) }

func (l lifecycle) Reset(ctx context.Context) error {
	for _, coll := range []string{tasksCollection, categoriesCollection, tokensCollection, usersCollection} {
		if _, err := l.db.Collection(coll).DeleteMany(ctx, bson.D{}); err != nil {
			return err
		}
	}
	return nil
}

// notFound maps mongo.ErrNoDocuments to repository.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

// ownerFilter scopes a document lookup to its owner.
func ownerFilter(id, userID string) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user", Value: userID}}
}

func pageOptions(page, size int, sort bson.D) *options.FindOptions {
	return options.Find().
		SetSort(sort).
		SetSkip(int64((page - 1) * size)).
		SetLimit(int64(size))
}
