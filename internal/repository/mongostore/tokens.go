package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/repository"
)

// TokenRepo persists refresh token hashes in "refresh_tokens".
type TokenRepo struct{ coll *mongo.Collection }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.coll.InsertOne(ctx, model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var rt model.RefreshToken
	if err := r.coll.FindOne(ctx, bson.D{{Key: "tokenHash", Value: tokenHash}}).Decode(&rt); err != nil {
		return "", notFound(err)
	}
	if rt.RevokedAt != nil || time.Now().UTC().After(rt.ExpiresAt) {
		return "", repository.ErrNotFound
	}
	return rt.UserID, nil
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	return r.revoke(ctx, bson.D{{Key: "tokenHash", Value: tokenHash}, {Key: "revokedAt", Value: nil}})
}

func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	return r.revoke(ctx, bson.D{{Key: "user", Value: userID}, {Key: "revokedAt", Value: nil}})
}

func (r *TokenRepo) revoke(ctx context.Context, filter bson.D) error {
	_, err := r.coll.UpdateMany(ctx, filter,
		bson.D{{Key: "$set", Value: bson.D{{Key: "revokedAt", Value: time.Now().UTC()}}}})
	return err
}
