package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/woventales/backend/internal/apperrors"
	"go.uber.org/zap"
)

// statusOf maps an error kind to its HTTP status
func statusOf(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindPermission:
		return http.StatusForbidden
	case apperrors.KindInvalidState, apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// appError converts a service error into an echo.HTTPError carrying it as Internal
func appError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(statusOf(apperrors.KindOf(err)), apperrors.MessageOf(err)).SetInternal(err)
}

func codeOf(he *echo.HTTPError) string {
	var appErr *apperrors.Error
	if he.Internal != nil && errors.As(he.Internal, &appErr) {
		return string(appErr.Kind)
	}
	switch he.Code {
	case http.StatusBadRequest:
		return string(apperrors.KindValidation)
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return string(apperrors.KindPermission)
	case http.StatusNotFound:
		return string(apperrors.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	}
	if he.Code >= http.StatusInternalServerError {
		return string(apperrors.KindInternal)
	}
	return "http_error"
}

// NewErrorHandler renders every error in the response envelope
func NewErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	logger = logger.Named("HTTPErrorHandler")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = appError(err).(*echo.HTTPError)
		}

		code := codeOf(he)
		message := fmt.Sprint(he.Message)
		if he.Code >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("code", code),
				zap.String("path", c.Path()),
				zap.Error(err))
			message = apperrors.MessageOf(he.Internal)
		}

		body := map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": code, "message": message},
		}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(he.Code)
		} else {
			writeErr = c.JSON(he.Code, body)
		}
		if writeErr != nil {
			logger.Warn("Failed to write error response", zap.Error(writeErr))
		}
	}
}
