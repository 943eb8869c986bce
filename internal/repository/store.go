package repository

import (
	"context"
	"time"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/stats"
)

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	List(ctx context.Context, q query.UserQuery) ([]*model.User, int64, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// TokenStore persists and validates refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	// ValidateRefresh returns the owner of a non-revoked, non-expired token
	// or ErrNotFound.
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// TaskStore persists tasks.  Every read and write is scoped to the owning
// user; a task owned by someone else behaves as if it did not exist.
type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id, userID string) error
	List(ctx context.Context, q query.TaskQuery) ([]*model.Task, int64, error)
	ListOverdue(ctx context.Context, userID string, now time.Time, limit int) ([]*model.Task, error)
	UserStats(ctx context.Context, userID string, now time.Time) (stats.Raw, error)
	CategoryStats(ctx context.Context, userID, categoryID string, now time.Time) (stats.Raw, error)
	// DetachCategory clears the category reference on every task of the
	// owner that points at categoryID and reports how many were changed.
	DetachCategory(ctx context.Context, userID, categoryID string) (int64, error)
	// ArchiveCompletedBefore archives the owner's completed tasks in
	// categoryID whose completion precedes cutoff.
	ArchiveCompletedBefore(ctx context.Context, userID, categoryID string, cutoff, now time.Time) (int64, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	Create(ctx context.Context, c *model.Category) error
	// CreateMany inserts all categories or none of them.
	CreateMany(ctx context.Context, cs []*model.Category) error
	GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Category, error)
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id, userID string) error
	List(ctx context.Context, q query.CategoryQuery) ([]*model.Category, int64, error)
	ExistsByName(ctx context.Context, userID, name, excludeID string) (bool, error)
	HasDefaults(ctx context.Context, userID string) (bool, error)
	// RefreshTaskCount recounts the non-archived tasks of the category and
	// writes only the taskCount field.  It is idempotent.
	RefreshTaskCount(ctx context.Context, id, userID string) (int64, error)
	ListAutoArchive(ctx context.Context) ([]*model.Category, error)
	ListAll(ctx context.Context) ([]*model.Category, error)
}

// Lifecycle is implemented by every backend.
type Lifecycle interface {
	Close(ctx context.Context) error
	// Reset removes every record; used by the seeder.
	Reset(ctx context.Context) error
}

// Store bundles the stores of one backend.
type Store struct {
	Users      UserStore
	Tokens     TokenStore
	Tasks      TaskStore
	Categories CategoryStore
	Lifecycle
}
