// Package handler implements the HTTP endpoints of the API.  Handlers bind
// and validate the request, call the stores under a 5 second timeout and
// return domain failures as errors for ErrorHandler to render.
package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/queue"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/service"
	"github.com/iliyamo/task-management-api/internal/validation"
)

const requestTimeout = 5 * time.Second

// Deps bundles what every handler needs.
type Deps struct {
	Cfg     config.Config
	Store   *repository.Store
	Events  service.Publisher
	Counter *service.CategoryCounter
	Log     log.FieldLogger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// publish sends ev without failing the request; the publisher logs errors.
func (d Deps) publish(ctx context.Context, ev queue.TaskEvent) {
	if d.Events == nil {
		return
	}
	_ = d.Events.Publish(context.WithoutCancel(ctx), ev)
}

// refreshCounts recounts the given categories of the user.
func (d Deps) refreshCounts(ctx context.Context, userID string, categoryIDs ...string) {
	if d.Counter == nil {
		return
	}
	d.Counter.Refresh(ctx, userID, categoryIDs...)
}

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// normalizer is implemented by request bodies that trim or case-fold their
// fields before validation.
type normalizer interface{ normalize() }

// bind decodes the body into dst and runs its validation rules.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	return validation.Struct(dst)
}

func newID() string { return uuid.NewString() }
