package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvote-dapp/dvote/internal/domain"
)

// Response is the envelope of every JSON reply.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// OK wraps a successful response.
func OK(c echo.Context, payload any, message string) error {
	return respond(c, http.StatusOK, payload, message)
}

func Created(c echo.Context, payload any, message string) error {
	return respond(c, http.StatusCreated, payload, message)
}

func BadRequestMessage(c echo.Context, msg string) error {
	return respond(c, http.StatusBadRequest, nil, msg)
}

func Unauthorized(c echo.Context, msg string) error {
	return respond(c, http.StatusUnauthorized, nil, msg)
}

func InternalError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	trace.SpanFromContext(ctx).RecordError(err)
	slog.ErrorContext(ctx, "internal error",
		slog.String("error", err.Error()),
		slog.String("path", c.Path()),
		slog.String("module", "rest"),
	)
	return respond(c, http.StatusInternalServerError, nil, "Internal server error.")
}

// StatusOf maps a domain error kind to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes err with the status of its kind. Unclassified errors are logged
// and reported without detail.
func Error(c echo.Context, err error) error {
	status := StatusOf(err)
	switch status {
	case http.StatusInternalServerError:
		return InternalError(c, err)
	case http.StatusBadGateway:
		slog.WarnContext(c.Request().Context(), "upstream failure",
			slog.String("error", err.Error()),
			slog.String("module", "rest"),
		)
	}
	return respond(c, status, nil, err.Error())
}
