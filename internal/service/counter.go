package service

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/repository"
)

// CategoryCounter refreshes the denormalized task count of categories
// after task writes.  The refresh runs after the write has been committed
// and its failure is only logged, so a count may lag until the next
// refresh.
type CategoryCounter struct {
	Categories repository.CategoryStore
	Log        log.FieldLogger
}

// NewCategoryCounter returns a counter backed by categories.
func NewCategoryCounter(categories repository.CategoryStore, logger log.FieldLogger) *CategoryCounter {
	return &CategoryCounter{Categories: categories, Log: logger}
}

// Recount recomputes the count of one category and returns it.  A missing
// category reports repository.ErrNotFound.
func (c *CategoryCounter) Recount(ctx context.Context, userID, categoryID string) (int64, error) {
	return c.Categories.RefreshTaskCount(ctx, categoryID, userID)
}

// Refresh recounts every non-empty category id once.  Categories deleted
// in the meantime are skipped silently.
func (c *CategoryCounter) Refresh(ctx context.Context, userID string, categoryIDs ...string) {
	seen := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := c.Recount(ctx, userID, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			c.Log.WithError(err).WithFields(log.Fields{"user_id": userID, "category_id": id}).
				Warn("tasks.count.refresh_failed")
		}
	}
}

// RecountAll recomputes every category of every user and returns how many
// were refreshed.
func (c *CategoryCounter) RecountAll(ctx context.Context) (int, error) {
	cats, err := c.Categories.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, cat := range cats {
		if _, err := c.Recount(ctx, cat.UserID, cat.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
