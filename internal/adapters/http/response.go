package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/tasq/core/internal/adapters/storage"
	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/ports"
)

// Response is the envelope every API endpoint answers with
type Response struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message"`
	Data       interface{}           `json:"data,omitempty"`
	Pagination *Pagination           `json:"pagination,omitempty"`
	Errors     []entities.FieldError `json:"errors,omitempty"`
}

// Pagination describes the page carried by a list response
type Pagination struct {
	TotalCount  int `json:"totalCount"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
}

func success(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Response{Success: true, Message: message, Data: data})
}

func paginated(c echo.Context, message string, page *ports.TaskPage) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    page.Items,
		Pagination: &Pagination{
			TotalCount:  page.TotalCount,
			TotalPages:  page.TotalPages,
			CurrentPage: page.CurrentPage,
			Limit:       page.Limit,
		},
	})
}

// errorResponse maps an error to its status code and envelope.
// NotFound 404, ValidationFailure 400, UpstreamStorageFailure 502, anything else 500.
func errorResponse(err error) (int, Response) {
	var (
		he   *echo.HTTPError
		verr *entities.ValidationError
		serr *entities.StorageError
		vErr validator.ValidationErrors
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, Response{Message: "Validation failed", Errors: verr.Fields}
	case errors.As(err, &vErr):
		fields := make([]entities.FieldError, 0, len(vErr))
		for _, fe := range vErr {
			fields = append(fields, entities.FieldError{Field: fe.Field(), Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag())})
		}
		return http.StatusBadRequest, Response{Message: "Validation failed", Errors: fields}
	case errors.Is(err, entities.ErrTaskNotFound):
		return http.StatusNotFound, Response{Message: "Task not found"}
	case errors.Is(err, entities.ErrUserNotFound):
		return http.StatusNotFound, Response{Message: "User not found"}
	case errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound, Response{Message: "File not found"}
	case errors.As(err, &serr):
		return http.StatusBadGateway, Response{Message: fmt.Sprintf("Failed to upload %q", serr.Filename)}
	case errors.Is(err, entities.ErrUpstreamStorage):
		return http.StatusBadGateway, Response{Message: "Attachment storage failure"}
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, Response{Message: msg}
	}

	return http.StatusInternalServerError, Response{Message: "Internal server error"}
}

// ErrorHandler is the echo HTTPErrorHandler for the API
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := errorResponse(err)

		if code >= http.StatusInternalServerError {
			l := log.WithError(err)
			if claims, ok := c.Get(ClaimsKey).(*ports.Claims); ok {
				l = l.WithUserID(claims.UserID.String())
			}
			l.Errorw("Request failed",
				"status", code,
				"path", c.Request().URL.Path,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
		}

		if c.Response().Committed {
			return
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.WithError(err).Errorw("Error sending response")
		}
	}
}
