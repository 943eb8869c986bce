package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/middleware"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/validation"
)

const serverErrorMessage = "Server Error"

// ErrorHandler renders every error returned by a handler or middleware as
// {"message": ...}.  Validation failures add an "errors" object keyed by
// field.  In debug mode 5xx responses also carry the error text.
func ErrorHandler(debug bool, logger log.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := renderError(err, c)
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithFields(log.Fields{
				"request_id": middleware.RequestID(c),
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
			}).Error("http.unhandled_error")
			if debug {
				body["stack"] = err.Error()
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WithError(err).Warn("http.error_response_failed")
		}
	}
}

func renderError(err error, c echo.Context) (int, echo.Map) {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, echo.Map{"message": verrs.First(), "errors": verrs.Fields}
	}
	var ae *apperror.Error
	if errors.As(err, &ae) {
		msg := ae.Message
		if ae.Status >= http.StatusInternalServerError && msg == "" {
			msg = serverErrorMessage
		}
		return ae.Status, echo.Map{"message": msg}
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, echo.Map{"message": "Resource not found"}
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusBadRequest, echo.Map{"message": "Duplicate field value entered"}
	case errors.Is(err, repository.ErrDefaultsExist):
		return http.StatusBadRequest, echo.Map{"message": msgDefaultsExist}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusNotFound {
			return he.Code, echo.Map{"message": "Not Found - " + c.Request().URL.RequestURI()}
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, echo.Map{"message": msg}
	}
	return http.StatusInternalServerError, echo.Map{"message": serverErrorMessage}
}
